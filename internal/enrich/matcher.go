package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/catalog"
	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Outcomes reported to an Observer
const (
	OutcomeMatched     = "matched"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Result counts what one enrichment pass did
type Result struct {
	Processed   int `json:"processed"`
	Matched     int `json:"matched"`
	NotFound    int `json:"notFound"`
	Errors      int `json:"errors"`
	RateLimited int `json:"rateLimited"`
}

// Options selects the bands to enrich
type Options struct {
	Force    bool
	BandName string
	Limit    int
}

// Observer receives one outcome per lookup
type Observer interface {
	ObserveEnrichment(outcome string)
}

// Matcher attaches catalog metadata to stored bands
type Matcher struct {
	store    storage.Store
	searcher catalog.Searcher
	delay    time.Duration
	sleep    func(context.Context, time.Duration) error
	observer Observer
	log      logrus.FieldLogger
}

// Option configures a Matcher
type Option func(*Matcher)

// WithDelay sets the pause between consecutive lookups
func WithDelay(d time.Duration) Option {
	return func(m *Matcher) { m.delay = d }
}

// WithSleep replaces the wait used for the lookup delay
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(m *Matcher) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithObserver reports outcomes to o
func WithObserver(o Observer) Option {
	return func(m *Matcher) { m.observer = o }
}

// NewMatcher creates a matcher
func NewMatcher(store storage.Store, searcher catalog.Searcher, log logrus.FieldLogger, opts ...Option) *Matcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Matcher{
		store:    store,
		searcher: searcher,
		delay:    100 * time.Millisecond,
		sleep:    sleepContext,
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run enriches the selected bands. Token and listing failures abort the
// pass; failures on a single band are counted and the pass continues.
func (m *Matcher) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	if _, err := m.searcher.Token(ctx); err != nil {
		return res, fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	bands, err := m.store.ListBandsForEnrichment(ctx, storage.EnrichmentFilter{
		Force:    opts.Force,
		BandName: opts.BandName,
		Limit:    opts.Limit,
	})
	if err != nil {
		return res, fmt.Errorf("failed to list bands for enrichment: %w", err)
	}
	m.log.WithField("bands", len(bands)).Info("Starting enrichment")

	for i, band := range bands {
		if i > 0 && m.delay > 0 {
			if err := m.sleep(ctx, m.delay); err != nil {
				return res, err
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Processed++
		outcome := m.enrichBand(ctx, band, &res)
		m.observe(outcome)
	}

	m.log.WithFields(logrus.Fields{
		"matched":      res.Matched,
		"not_found":    res.NotFound,
		"errors":       res.Errors,
		"rate_limited": res.RateLimited,
	}).Info("Enrichment finished")
	return res, nil
}

func (m *Matcher) enrichBand(ctx context.Context, band *storage.Band, res *Result) string {
	log := m.log.WithField("band", band.Name)

	found, err := m.searcher.SearchArtists(ctx, band.Name)
	if found != nil && found.Retried {
		res.RateLimited++
		m.observe(OutcomeRateLimited)
	}
	if err != nil {
		res.Errors++
		log.Errorf("Catalog search failed: %v", err)
		return OutcomeError
	}

	artist, ok := catalog.BestMatch(band.Name, found.Artists)
	if !ok {
		res.NotFound++
		log.Info("Not found in catalog")
		return OutcomeNotFound
	}

	match := storage.CatalogMatch{
		SpotifyID:  artist.ID,
		SpotifyURL: artist.ExternalURLs.Spotify,
		Popularity: artist.Popularity,
		Genres:     artist.Genres,
	}
	if img, ok := artist.ImageURL(); ok {
		match.ImageURL = &img
	}
	if err := m.store.UpdateBandCatalog(ctx, band.ID, match); err != nil {
		res.Errors++
		log.Errorf("Catalog update failed: %v", err)
		return OutcomeError
	}

	res.Matched++
	log.WithFields(logrus.Fields{"spotify_id": artist.ID, "spotify_name": artist.Name, "popularity": artist.Popularity}).Info("Matched")
	return OutcomeMatched
}

func (m *Matcher) observe(outcome string) {
	if m.observer != nil {
		m.observer.ObserveEnrichment(outcome)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
