package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/catalog"
	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/crawler"
	"github.com/alvmarrod/lineup-weaver/internal/enrich"
	"github.com/alvmarrod/lineup-weaver/internal/metrics"
	"github.com/alvmarrod/lineup-weaver/internal/reconcile"
	"github.com/alvmarrod/lineup-weaver/internal/snapshot"
	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// minLowYieldSample is the smallest fresh batch judged by the low-yield alarm
const minLowYieldSample = 5

// ErrAllSourcesFailed is returned when every selected source failed
var ErrAllSourcesFailed = errors.New("all sources failed")

// Options controls one run
type Options struct {
	// RunID labels the run; a random id is used when empty
	RunID      string
	Sources    []*config.SiteProfile
	SkipScrape bool
	SkipEnrich bool
	// Limit caps detail fetches per source; 0 means all links
	Limit       int
	EnrichLimit int
	Force       bool
	BandName    string
}

// Deps are the collaborators of an Orchestrator. Searcher may be nil when
// enrichment is never requested; Transport overrides the fetch transport.
type Deps struct {
	Config    *config.Config
	Store     storage.Store
	Searcher  catalog.Searcher
	Tracker   *metrics.Tracker
	Transport http.RoundTripper
	Log       logrus.FieldLogger
}

// Orchestrator runs collect, merge, extract, merge, reconcile per source and
// one enrichment pass at the end
type Orchestrator struct {
	cfg       *config.Config
	store     storage.Store
	snapshots *snapshot.Store
	seeder    *reconcile.Seeder
	searcher  catalog.Searcher
	tracker   *metrics.Tracker
	transport http.RoundTripper
	log       logrus.FieldLogger

	// reconcileMu serializes writes of concurrent sources; bands are shared
	reconcileMu sync.Mutex
}

// New creates an orchestrator
func New(deps Deps) (*Orchestrator, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		cfg:       deps.Config,
		store:     deps.Store,
		snapshots: snapshot.NewStore(deps.Config.DataDir),
		seeder:    reconcile.NewSeeder(deps.Store, log),
		searcher:  deps.Searcher,
		tracker:   deps.Tracker,
		transport: deps.Transport,
		log:       log,
	}, nil
}

// Run executes the pipeline. Source-level failures are reported in the
// summary; the error is reserved for whole-run failures.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("no sources selected")
	}
	if !opts.SkipEnrich && o.searcher == nil {
		if err := o.cfg.ValidateCatalogCredentials(); err != nil {
			return nil, err
		}
		return nil, errors.New("enrichment requested without a catalog client")
	}

	release, err := acquireLock(o.cfg.LockPath)
	if err != nil {
		return nil, err
	}
	defer release()

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	summary := &Summary{
		RunID:     opts.RunID,
		StartedAt: time.Now().UTC(),
		Sources:   make([]SourceSummary, len(opts.Sources)),
	}
	log := o.log.WithField("run_id", summary.RunID)
	log.WithField("sources", len(opts.Sources)).Info("Starting lineup sync")

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxConcurrentSources)
	for i, p := range opts.Sources {
		i, p := i, p
		g.Go(func() error {
			summary.Sources[i] = o.runSource(ctx, p, opts)
			return nil
		})
	}
	_ = g.Wait()

	var runErr error
	if summary.AllSourcesFailed() {
		runErr = ErrAllSourcesFailed
	}

	if !opts.SkipEnrich && ctx.Err() == nil {
		res, err := o.enrich(ctx, opts)
		if err != nil {
			summary.EnrichmentError = err.Error()
			log.Errorf("Enrichment failed: %v", err)
			runErr = errors.Join(runErr, err)
		} else {
			summary.Enrichment = &res
		}
	}

	summary.computeTotals()
	summary.FinishedAt = time.Now().UTC()
	if err := ctx.Err(); err != nil && runErr == nil {
		runErr = err
	}

	log.WithFields(logrus.Fields{
		"failed_sources":   summary.Totals.FailedSources,
		"details":          summary.Totals.Details,
		"lineups_upserted": summary.Totals.Reconcile.LineupsUpserted,
	}).Info("Lineup sync finished")
	return summary, runErr
}

func (o *Orchestrator) runSource(ctx context.Context, p *config.SiteProfile, opts Options) SourceSummary {
	start := time.Now()
	ss := SourceSummary{Source: p.ID, FestivalID: p.FestivalID, Scraped: !opts.SkipScrape}
	log := o.log.WithField("source", p.ID)

	defer func() {
		ss.DurationMs = time.Since(start).Milliseconds()
		if ss.Failed() {
			log.Errorf("Source failed: %s", ss.Error)
		}
	}()

	snap, err := o.snapshots.Load(p.ID)
	if err != nil {
		ss.Error = err.Error()
		return ss
	}

	if opts.SkipScrape {
		if !o.snapshots.Exists(p.ID) {
			log.Warn("No stored snapshot, reconciling an empty detail set")
		}
	} else {
		snap, err = o.scrape(ctx, p, opts, snap, &ss)
		if err != nil {
			ss.Error = err.Error()
			return ss
		}
	}
	ss.Links = len(snap.Links)
	ss.StoredDetails = len(snap.Details)

	o.reconcileMu.Lock()
	res, err := o.seeder.Reconcile(ctx, p, snap.Details)
	o.reconcileMu.Unlock()
	ss.Reconcile = res
	o.tracker.AddRecords(p.ID, metrics.RecordBandInserted, res.BandsInserted)
	o.tracker.AddRecords(p.ID, metrics.RecordBandUpdated, res.BandsUpdated)
	o.tracker.AddRecords(p.ID, metrics.RecordLineupUpserted, res.LineupsUpserted)
	o.tracker.AddRecords(p.ID, metrics.RecordReconcileSkip, res.Skipped)
	o.tracker.AddRecords(p.ID, metrics.RecordReconcileFailed, res.Errors)
	if err != nil {
		ss.Error = fmt.Sprintf("reconcile: %v", err)
	}
	return ss
}

// scrape collects and extracts one source and persists both merges
func (o *Orchestrator) scrape(ctx context.Context, p *config.SiteProfile, opts Options, snap snapshot.Snapshot, ss *SourceSummary) (snapshot.Snapshot, error) {
	log := o.log.WithField("source", p.ID)

	fetcher, err := crawler.NewFetcher(crawler.FetcherOptions{
		UserAgent: o.cfg.UserAgent,
		Timeout:   o.cfg.RequestTimeout(),
		Delay:     o.cfg.DetailDelay(),
		Transport: o.transport,
	}, log)
	if err != nil {
		return snap, err
	}

	links, err := crawler.NewLinkCollector(fetcher, o.tracker, log).Collect(ctx, p)
	if err != nil {
		return snap, err
	}
	snap, stats := snap.Merge(links, nil)
	ss.NewLinks = stats.NewLinks
	if err := o.snapshots.Save(p.ID, snap); err != nil {
		return snap, err
	}

	targets := snap.Links
	if opts.Limit > 0 && len(targets) > opts.Limit {
		targets = targets[:opts.Limit]
	}

	result := crawler.ScrapeResult{Festival: p.ID, Links: targets}
	result.Details, result.Failures, err = crawler.NewExtractor(fetcher, o.tracker, log).ExtractAll(ctx, p, targets)
	ss.Details = len(result.Details)
	ss.Failures = len(result.Failures)
	ss.FailureSamples = failureSamples(result.Failures)
	o.tracker.AddRecords(p.ID, metrics.RecordExtracted, ss.Details)
	o.tracker.AddRecords(p.ID, metrics.RecordFailed, ss.Failures)
	if err != nil {
		return snap, err
	}

	snap, stats = snap.Merge(nil, result.Details)
	ss.MergeSkipped = stats.Skipped
	o.tracker.AddRecords(p.ID, metrics.RecordMergeSkipped, stats.Skipped)
	if stats.Skipped > 0 {
		log.Warnf("%d details had no slug, url or name and were skipped", stats.Skipped)
	}
	if err := o.snapshots.Save(p.ID, snap); err != nil {
		return snap, err
	}

	ss.SparseDetails, ss.LowYield = lowYield(result.Details, o.cfg.LowYieldThreshold)
	o.tracker.AddRecords(p.ID, metrics.RecordSparse, ss.SparseDetails)
	if ss.LowYield {
		log.WithFields(logrus.Fields{
			"sparse":  ss.SparseDetails,
			"details": ss.Details,
		}).Warn("Low yield: most pages had no day, stage or time; the site markup may have changed")
	}

	log.WithFields(logrus.Fields{
		"links":     len(snap.Links),
		"new_links": ss.NewLinks,
		"extracted": ss.Details,
		"failures":  ss.Failures,
		"new":       stats.NewDetails,
		"updated":   stats.UpdatedDetails,
		"snapshot":  len(snap.Details),
	}).Info("Scraped source")
	return snap, nil
}

// lowYield reports the sparse count and whether it exceeds threshold
func lowYield(details []crawler.ArtistDetail, threshold float64) (int, bool) {
	sparse := 0
	for _, d := range details {
		if d.Sparse() {
			sparse++
		}
	}
	if len(details) < minLowYieldSample {
		return sparse, false
	}
	return sparse, float64(sparse)/float64(len(details)) > threshold
}

func (o *Orchestrator) enrich(ctx context.Context, opts Options) (enrich.Result, error) {
	m := enrich.NewMatcher(o.store, o.searcher, o.log,
		enrich.WithDelay(o.cfg.EnrichDelay()),
		enrich.WithObserver(o.tracker),
	)
	return m.Run(ctx, enrich.Options{
		Force:    opts.Force,
		BandName: opts.BandName,
		Limit:    opts.EnrichLimit,
	})
}
