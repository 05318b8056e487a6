package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/crawler"
	"github.com/alvmarrod/lineup-weaver/internal/metrics"
	"github.com/alvmarrod/lineup-weaver/internal/pipeline"
	"github.com/alvmarrod/lineup-weaver/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	calls []pipeline.Options
	err   error
}

func (f *fakeRunner) Run(_ context.Context, opts pipeline.Options) (*pipeline.Summary, error) {
	f.calls = append(f.calls, opts)
	if errors.Is(f.err, pipeline.ErrRunInProgress) {
		return nil, f.err
	}
	summary := &pipeline.Summary{RunID: "run-1"}
	for _, p := range opts.Sources {
		var failures []crawler.ScrapeFailure
		for i := 0; i < 7; i++ {
			failures = append(failures, crawler.ScrapeFailure{URL: p.BaseURL, Reason: "boom"})
		}
		summary.Sources = append(summary.Sources, pipeline.SourceSummary{
			Source:         p.ID,
			FestivalID:     p.FestivalID,
			Links:          10,
			Failures:       len(failures),
			FailureSamples: failures[:5],
			Reconcile:      reconcile.Result{BandsInserted: 3, LineupsUpserted: 3},
		})
	}
	return summary, f.err
}

func newTestServer(t *testing.T, runner Runner, secret string) *gin.Engine {
	t.Helper()
	reg, err := config.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	log, _ := test.NewNullLogger()
	return New(runner, reg, metrics.NewTracker("test"), secret, log).Router()
}

func do(router http.Handler, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScrapeLineupsAuth(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestServer(t, runner, "s3cret")

	tests := []struct {
		name string
		auth string
		want int
	}{
		{name: "missing", auth: "", want: http.StatusUnauthorized},
		{name: "wrong", auth: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", auth: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(router, "/cron/scrape-lineups", tt.auth); rec.Code != tt.want {
				t.Fatalf("status=%d, want %d", rec.Code, tt.want)
			}
		})
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.calls))
	}
}

func TestScrapeLineupsParams(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestServer(t, runner, "")

	if rec := do(router, "/cron/scrape-lineups?festival=glastonbury", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown festival status=%d", rec.Code)
	}
	if rec := do(router, "/cron/scrape-lineups?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", rec.Code)
	}

	rec := do(router, "/cron/scrape-lineups?festival=NovaRock&limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	opts := runner.calls[len(runner.calls)-1]
	if len(opts.Sources) != 1 || opts.Sources[0].ID != "novarock" || opts.Limit != 3 || !opts.SkipEnrich {
		t.Fatalf("options=%+v", opts)
	}

	var body struct {
		OK      bool             `json:"ok"`
		Results []festivalResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.OK || len(body.Results) != 1 {
		t.Fatalf("body=%+v", body)
	}
	r := body.Results[0]
	if r.BandsInserted != 3 || r.ScrapeFailures != 7 || len(r.ScrapeFailureSamples) != 5 {
		t.Fatalf("result=%+v", r)
	}
}

func TestScrapeLineupsErrors(t *testing.T) {
	rec := do(newTestServer(t, &fakeRunner{err: pipeline.ErrRunInProgress}, ""), "/cron/scrape-lineups", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("locked status=%d", rec.Code)
	}

	rec = do(newTestServer(t, &fakeRunner{err: pipeline.ErrAllSourcesFailed}, ""), "/cron/scrape-lineups", "")
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), `"ok":false`) {
		t.Fatalf("all failed status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestServer(t, &fakeRunner{}, "s3cret")

	if rec := do(router, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	rec := do(router, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lineup_fetch_duration_seconds") {
		t.Fatalf("metrics body missing histogram:\n%s", rec.Body)
	}
}
