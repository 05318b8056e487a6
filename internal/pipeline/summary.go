package pipeline

import (
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/crawler"
	"github.com/alvmarrod/lineup-weaver/internal/enrich"
	"github.com/alvmarrod/lineup-weaver/internal/reconcile"
)

// maxFailureSamples caps the failures carried per source in a summary
const maxFailureSamples = 5

// SourceSummary reports one source's run
type SourceSummary struct {
	Source         string                  `json:"source"`
	FestivalID     string                  `json:"festivalId"`
	Scraped        bool                    `json:"scraped"`
	Links          int                     `json:"links"`
	NewLinks       int                     `json:"newLinks"`
	Details        int                     `json:"details"`
	StoredDetails  int                     `json:"storedDetails"`
	Failures       int                     `json:"failures"`
	FailureSamples []crawler.ScrapeFailure `json:"failureSamples,omitempty"`
	MergeSkipped   int                     `json:"mergeSkipped"`
	SparseDetails  int                     `json:"sparseDetails"`
	LowYield       bool                    `json:"lowYield"`
	Reconcile      reconcile.Result        `json:"reconcile"`
	Error          string                  `json:"error,omitempty"`
	DurationMs     int64                   `json:"durationMs"`
}

// Failed reports whether the source hit a source-level failure
func (s SourceSummary) Failed() bool {
	return s.Error != ""
}

// Totals sums the per-source counters
type Totals struct {
	Links         int              `json:"links"`
	Details       int              `json:"details"`
	Failures      int              `json:"failures"`
	MergeSkipped  int              `json:"mergeSkipped"`
	FailedSources int              `json:"failedSources"`
	Reconcile     reconcile.Result `json:"reconcile"`
}

// Summary is the structured result of one pipeline run
type Summary struct {
	RunID           string          `json:"runId"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt"`
	Sources         []SourceSummary `json:"sources"`
	Enrichment      *enrich.Result  `json:"enrichment,omitempty"`
	EnrichmentError string          `json:"enrichmentError,omitempty"`
	Totals          Totals          `json:"totals"`
}

// AllSourcesFailed reports whether no selected source completed
func (s *Summary) AllSourcesFailed() bool {
	if len(s.Sources) == 0 {
		return false
	}
	for _, src := range s.Sources {
		if !src.Failed() {
			return false
		}
	}
	return true
}

func (s *Summary) computeTotals() {
	var t Totals
	for _, src := range s.Sources {
		t.Links += src.Links
		t.Details += src.Details
		t.Failures += src.Failures
		t.MergeSkipped += src.MergeSkipped
		if src.Failed() {
			t.FailedSources++
		}
		t.Reconcile.Add(src.Reconcile)
	}
	s.Totals = t
}

func failureSamples(failures []crawler.ScrapeFailure) []crawler.ScrapeFailure {
	if len(failures) > maxFailureSamples {
		failures = failures[:maxFailureSamples]
	}
	return append([]crawler.ScrapeFailure(nil), failures...)
}
