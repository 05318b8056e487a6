package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Record outcomes counted per source
const (
	RecordExtracted       = "extracted"
	RecordFailed          = "failed"
	RecordSparse          = "sparse"
	RecordMergeSkipped    = "merge_skipped"
	RecordBandInserted    = "band_inserted"
	RecordBandUpdated     = "band_updated"
	RecordLineupUpserted  = "lineup_upserted"
	RecordReconcileSkip   = "reconcile_skipped"
	RecordReconcileFailed = "reconcile_error"
)

// Report is the JSON document written at the end of a run
type Report struct {
	RunID             string         `json:"run_id"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time,omitempty"`
	TerminationReason string         `json:"termination_reason,omitempty"`
	PagesFetched      int            `json:"pages_fetched"`
	PagesFailed       int            `json:"pages_failed"`
	TotalFetchTimeMs  int64          `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64          `json:"avg_fetch_time_ms"`
	Records           map[string]int `json:"records"`
	Enrichment        map[string]int `json:"enrichment"`
	Summary           any            `json:"summary,omitempty"`
}

// Tracker keeps the run counters and mirrors them into a dedicated
// Prometheus registry. A nil *Tracker is a valid no-op.
type Tracker struct {
	Registry *prometheus.Registry

	pagesFetched  *prometheus.CounterVec
	pagesFailed   *prometheus.CounterVec
	records       *prometheus.CounterVec
	enrichment    *prometheus.CounterVec
	fetchDuration prometheus.Histogram

	mu               sync.Mutex
	data             Report
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a tracker and registers its collectors
func NewTracker(runID string) *Tracker {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineup_pages_fetched_total",
			Help: "Pages fetched successfully, by source and page kind.",
		},
		[]string{"source", "kind"},
	)
	pagesFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineup_pages_failed_total",
			Help: "Page fetches that failed, by source and page kind.",
		},
		[]string{"source", "kind"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineup_records_total",
			Help: "Artist records by source and pipeline outcome.",
		},
		[]string{"source", "outcome"},
	)
	enrichment := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineup_enrichment_total",
			Help: "Catalog lookups by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lineup_fetch_duration_seconds",
			Help:    "Latency of page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(pagesFetched, pagesFailed, records, enrichment, fetchDuration)

	return &Tracker{
		Registry:      registry,
		pagesFetched:  pagesFetched,
		pagesFailed:   pagesFailed,
		records:       records,
		enrichment:    enrichment,
		fetchDuration: fetchDuration,
		data: Report{
			RunID:      runID,
			StartTime:  time.Now(),
			Records:    map[string]int{},
			Enrichment: map[string]int{},
		},
	}
}

// ObserveFetch records one page fetch
func (t *Tracker) ObserveFetch(source, kind string, elapsed time.Duration, err error) {
	if t == nil {
		return
	}
	t.fetchDuration.Observe(elapsed.Seconds())
	if err != nil {
		t.pagesFailed.WithLabelValues(source, kind).Inc()
	} else {
		t.pagesFetched.WithLabelValues(source, kind).Inc()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.data.PagesFailed++
	} else {
		t.data.PagesFetched++
	}
	t.totalFetchTimeMs += elapsed.Milliseconds()
	t.fetchCount++
}

// AddRecords adds n records with the given outcome for source
func (t *Tracker) AddRecords(source, outcome string, n int) {
	if t == nil || n <= 0 {
		return
	}
	t.records.WithLabelValues(source, outcome).Add(float64(n))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Records[outcome] += n
}

// ObserveEnrichment records one catalog lookup outcome
func (t *Tracker) ObserveEnrichment(outcome string) {
	if t == nil {
		return
	}
	t.enrichment.WithLabelValues(outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Enrichment[outcome]++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Report {
	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	snapshot.Records = copyCounts(t.data.Records)
	snapshot.Enrichment = copyCounts(t.data.Enrichment)
	return snapshot
}

// WriteToFile finalizes the report and writes it as JSON. summary is
// embedded as-is.
func (t *Tracker) WriteToFile(path, reason string, summary any) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	report := t.snapshotLocked()
	t.mu.Unlock()

	report.Summary = summary
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// WriteTextfile writes the registry in Prometheus text format, for the node
// exporter textfile collector
func (t *Tracker) WriteTextfile(path string) error {
	if t == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// LogProgress returns a one-line progress summary
func (t *Tracker) LogProgress() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Pages: %d fetched, %d failed | Records: %d extracted, %d lineups | Enrichment: %d matched",
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.Records[RecordExtracted],
		t.data.Records[RecordLineupUpserted],
		t.data.Enrichment["matched"],
	)
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
