package metrics

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker("run-1")

	tr.ObserveFetch("rfp", "index", 100*time.Millisecond, nil)
	tr.ObserveFetch("rfp", "detail", 300*time.Millisecond, nil)
	tr.ObserveFetch("rfp", "detail", 50*time.Millisecond, errors.New("404"))
	tr.AddRecords("rfp", RecordExtracted, 2)
	tr.AddRecords("rfp", RecordFailed, 1)
	tr.AddRecords("rfp", RecordMergeSkipped, 0)
	tr.ObserveEnrichment("matched")

	snap := tr.GetSnapshot()
	if snap.PagesFetched != 2 || snap.PagesFailed != 1 {
		t.Fatalf("pages=%d/%d, want 2/1", snap.PagesFetched, snap.PagesFailed)
	}
	if snap.AvgFetchTimeMs != 150 {
		t.Fatalf("AvgFetchTimeMs=%d, want 150", snap.AvgFetchTimeMs)
	}
	if snap.Records[RecordExtracted] != 2 || snap.Records[RecordFailed] != 1 {
		t.Fatalf("records=%v", snap.Records)
	}
	if _, ok := snap.Records[RecordMergeSkipped]; ok {
		t.Fatal("zero adds should not create an entry")
	}

	if got := testutil.ToFloat64(tr.pagesFetched.WithLabelValues("rfp", "detail")); got != 1 {
		t.Fatalf("lineup_pages_fetched_total{detail}=%v, want 1", got)
	}
	if got := testutil.ToFloat64(tr.records.WithLabelValues("rfp", RecordExtracted)); got != 2 {
		t.Fatalf("lineup_records_total{extracted}=%v, want 2", got)
	}
	if !strings.Contains(tr.LogProgress(), "2 fetched, 1 failed") {
		t.Fatalf("LogProgress=%q", tr.LogProgress())
	}
}

func TestNilTrackerIsNoop(t *testing.T) {
	var tr *Tracker
	tr.ObserveFetch("rfp", "index", time.Second, nil)
	tr.AddRecords("rfp", RecordExtracted, 3)
	tr.ObserveEnrichment("matched")
	if err := tr.WriteToFile(filepath.Join(t.TempDir(), "m.json"), "done", nil); err != nil {
		t.Fatal(err)
	}
	if tr.GetSnapshot().PagesFetched != 0 {
		t.Fatal("nil tracker reported data")
	}
}

func TestWriteToFileAndTextfile(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker("run-2")
	tr.ObserveFetch("novarock", "detail", 10*time.Millisecond, nil)

	path := filepath.Join(dir, "sync-metrics.json")
	if err := tr.WriteToFile(path, "completed", map[string]int{"sources": 1}); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatal(err)
	}
	if report.RunID != "run-2" || report.TerminationReason != "completed" || report.EndTime.IsZero() {
		t.Fatalf("report=%+v", report)
	}

	prom := filepath.Join(dir, "lineup.prom")
	if err := tr.WriteTextfile(prom); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	text, err := os.ReadFile(prom)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), `lineup_pages_fetched_total{kind="detail",source="novarock"} 1`) {
		t.Fatalf("textfile missing counter:\n%s", text)
	}
}
