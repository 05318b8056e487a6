package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/crawler"
	"github.com/alvmarrod/lineup-weaver/internal/metrics"
	"github.com/alvmarrod/lineup-weaver/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Runner executes a pipeline run
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Summary, error)
}

// Server exposes the scheduled-trigger endpoint plus health and metrics
type Server struct {
	runner   Runner
	registry *config.Registry
	tracker  *metrics.Tracker
	secret   string
	log      logrus.FieldLogger
}

// New creates a server. An empty secret disables bearer authentication.
func New(runner Runner, registry *config.Registry, tracker *metrics.Tracker, secret string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{runner: runner, registry: registry, tracker: tracker, secret: secret, log: log}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.tracker != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.tracker.Registry, promhttp.HandlerOpts{})))
	}

	cron := router.Group("/cron", s.requireSecret())
	cron.GET("/scrape-lineups", s.scrapeLineups)
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.secret == "" {
			c.Next()
			return
		}
		want := "Bearer " + s.secret
		got := c.GetHeader("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond),
		}).Debug("HTTP request")
	}
}

type festivalResult struct {
	Festival             string                  `json:"festival"`
	FestivalRowID        string                  `json:"festivalRowId"`
	BandsInserted        int                     `json:"bandsInserted"`
	BandsUpdated         int                     `json:"bandsUpdated"`
	LineupsUpserted      int                     `json:"lineupsUpserted"`
	Skipped              int                     `json:"skipped"`
	ScrapedLinks         int                     `json:"scrapedLinks"`
	ScrapeFailures       int                     `json:"scrapeFailures"`
	ScrapeFailureSamples []crawler.ScrapeFailure `json:"scrapeFailureSamples"`
	LowYield             bool                    `json:"lowYield"`
	Error                string                  `json:"error,omitempty"`
}

func (s *Server) scrapeLineups(c *gin.Context) {
	targets := s.registry.All()
	if festival := strings.ToLower(strings.TrimSpace(c.Query("festival"))); festival != "" {
		p := s.registry.Lookup(festival)
		if p == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown festival param"})
			return
		}
		targets = []*config.SiteProfile{p}
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit param"})
			return
		}
		limit = n
	}

	summary, err := s.runner.Run(c.Request.Context(), pipeline.Options{
		Sources:    targets,
		SkipEnrich: true,
		Limit:      limit,
	})
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case summary == nil:
		s.log.Errorf("Triggered run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]festivalResult, 0, len(summary.Sources))
	for _, src := range summary.Sources {
		samples := src.FailureSamples
		if samples == nil {
			samples = []crawler.ScrapeFailure{}
		}
		results = append(results, festivalResult{
			Festival:             src.Source,
			FestivalRowID:        src.FestivalID,
			BandsInserted:        src.Reconcile.BandsInserted,
			BandsUpdated:         src.Reconcile.BandsUpdated,
			LineupsUpserted:      src.Reconcile.LineupsUpserted,
			Skipped:              src.Reconcile.Skipped,
			ScrapedLinks:         src.Links,
			ScrapeFailures:       src.Failures,
			ScrapeFailureSamples: samples,
			LowYield:             src.LowYield,
			Error:                src.Error,
		})
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"ok": err == nil, "runId": summary.RunID, "results": results})
}
