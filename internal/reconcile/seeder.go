package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/crawler"
	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Result counts what one reconciliation pass did
type Result struct {
	BandsInserted   int `json:"bandsInserted"`
	BandsUpdated    int `json:"bandsUpdated"`
	LineupsUpserted int `json:"lineupsUpserted"`
	Skipped         int `json:"skipped"`
	Errors          int `json:"errors"`
}

// Add accumulates o into r
func (r *Result) Add(o Result) {
	r.BandsInserted += o.BandsInserted
	r.BandsUpdated += o.BandsUpdated
	r.LineupsUpserted += o.LineupsUpserted
	r.Skipped += o.Skipped
	r.Errors += o.Errors
}

// DateResult counts what a date recompute pass did
type DateResult struct {
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Unparseable int `json:"unparseable"`
}

// Seeder writes merged artist details into the relational store
type Seeder struct {
	store storage.Store
	log   logrus.FieldLogger
}

// NewSeeder creates a seeder backed by store
func NewSeeder(store storage.Store, log logrus.FieldLogger) *Seeder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Seeder{store: store, log: log}
}

// EnsureFestival returns the festival row for p, inserting it on first use
func (s *Seeder) EnsureFestival(ctx context.Context, p *config.SiteProfile) (*storage.Festival, error) {
	existing, err := s.store.GetFestivalByID(ctx, p.FestivalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up festival %s: %w", p.ID, err)
	}
	if existing != nil {
		return existing, nil
	}

	inserted, err := s.store.InsertFestival(ctx, storage.Festival{
		ID:   p.FestivalID,
		Name: p.Name,
		Year: p.Year,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert festival %s: %w", p.ID, err)
	}
	s.log.WithFields(logrus.Fields{"source": p.ID, "festival_id": p.FestivalID}).Info("Created festival")
	return inserted, nil
}

// Reconcile upserts every named detail as a band plus lineup slot. Storage
// failures on one record are counted and the batch continues; the returned
// error is reserved for festival setup and cancellation.
func (s *Seeder) Reconcile(ctx context.Context, p *config.SiteProfile, details []crawler.ArtistDetail) (Result, error) {
	var res Result

	festival, err := s.EnsureFestival(ctx, p)
	if err != nil {
		return res, err
	}
	log := s.log.WithField("source", p.ID)

	for _, d := range details {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if d.Name == "" {
			res.Skipped++
			continue
		}

		bandID, inserted, err := s.upsertBand(ctx, d)
		if err != nil {
			res.Errors++
			log.WithField("band", d.Name).Errorf("Band upsert failed: %v", err)
			continue
		}
		if inserted {
			res.BandsInserted++
		} else {
			res.BandsUpdated++
		}

		if err := s.store.UpsertLineupSlot(ctx, buildSlot(festival, bandID, d)); err != nil {
			res.Errors++
			log.WithField("band", d.Name).Errorf("Lineup upsert failed: %v", err)
			continue
		}
		res.LineupsUpserted++
	}

	log.WithFields(logrus.Fields{
		"bands_inserted":   res.BandsInserted,
		"bands_updated":    res.BandsUpdated,
		"lineups_upserted": res.LineupsUpserted,
		"skipped":          res.Skipped,
		"errors":           res.Errors,
	}).Info("Reconciled lineup")

	return res, nil
}

// upsertBand inserts a band by exact name or merges into the existing row:
// URLs are unioned, country and slug are only filled when still null
func (s *Seeder) upsertBand(ctx context.Context, d crawler.ArtistDetail) (string, bool, error) {
	existing, err := s.store.GetBandByName(ctx, d.Name)
	if err != nil {
		return "", false, err
	}

	if existing == nil {
		var urls []string
		if d.URL != "" {
			urls = []string{d.URL}
		}
		b, err := s.store.InsertBand(ctx, storage.Band{
			Name:         d.Name,
			Country:      optional(d.Country),
			Slug:         optional(d.Slug),
			FestivalURLs: urls,
		})
		if err != nil {
			return "", false, err
		}
		return b.ID, true, nil
	}

	update := storage.BandUpdate{
		FestivalURLs: unionURLs(existing.FestivalURLs, d.URL),
		Country:      existing.Country,
		Slug:         existing.Slug,
	}
	if update.Country == nil {
		update.Country = optional(d.Country)
	}
	if update.Slug == nil {
		update.Slug = optional(d.Slug)
	}

	if !bandChanged(existing, update) {
		return existing.ID, false, nil
	}
	if err := s.store.UpdateBand(ctx, existing.ID, update); err != nil {
		return "", false, err
	}
	return existing.ID, false, nil
}

func buildSlot(f *storage.Festival, bandID string, d crawler.ArtistDetail) storage.LineupSlot {
	slot := storage.LineupSlot{
		FestivalID: f.ID,
		BandID:     bandID,
		Slug:       optional(d.Slug),
		SourceURL:  d.URL,
		DayLabel:   optional(d.Day),
		Stage:      optional(d.Stage),
		StageLabel: optional(d.Stage),
		TimeLabel:  optional(d.Time),
	}
	if t, ok := ParsePerformanceTime(d.Time); ok {
		slot.PerformanceTime = &t
	}
	slot.PerformanceDate, slot.DayNumber = resolveDay(d.Day, f)
	return slot
}

// resolveDay needs both a day label and a festival start date
func resolveDay(label string, f *storage.Festival) (*time.Time, *int) {
	if label == "" || f.StartDate == nil {
		return nil, nil
	}
	date, ok := ParseDayLabel(label, f.Year)
	if !ok {
		return nil, nil
	}
	n := DayNumber(date, *f.StartDate)
	return &date, &n
}

// RecomputeDates re-derives performance dates and day numbers of every
// stored slot of p from its day label and the festival's start date
func (s *Seeder) RecomputeDates(ctx context.Context, p *config.SiteProfile) (DateResult, error) {
	var res DateResult

	festival, err := s.store.GetFestivalByID(ctx, p.FestivalID)
	if err != nil {
		return res, fmt.Errorf("failed to look up festival %s: %w", p.ID, err)
	}
	if festival == nil {
		return res, fmt.Errorf("festival %s has not been seeded", p.ID)
	}
	if festival.StartDate == nil {
		return res, fmt.Errorf("festival %s has no start date", p.ID)
	}

	slots, err := s.store.ListLineupSlots(ctx, festival.ID)
	if err != nil {
		return res, fmt.Errorf("failed to list lineups for %s: %w", p.ID, err)
	}

	log := s.log.WithField("source", p.ID)
	for _, slot := range slots {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		label := ""
		if slot.DayLabel != nil {
			label = *slot.DayLabel
		}
		date, day := resolveDay(label, festival)
		if date == nil {
			res.Unparseable++
			log.WithFields(logrus.Fields{"band": slot.BandName, "day_label": label}).Debug("Day label not parseable")
			continue
		}
		if sameDate(slot.PerformanceDate, date) && slot.DayNumber != nil && *slot.DayNumber == *day {
			res.Unchanged++
			continue
		}
		if err := s.store.UpdateLineupDates(ctx, slot.ID, date, day); err != nil {
			return res, fmt.Errorf("failed to update lineup %s: %w", slot.ID, err)
		}
		res.Updated++
	}

	return res, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func unionURLs(existing []string, url string) []string {
	out := make([]string, 0, len(existing)+1)
	seen := make(map[string]bool, len(existing)+1)
	for _, u := range append(append([]string{}, existing...), url) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func bandChanged(b *storage.Band, u storage.BandUpdate) bool {
	if len(b.FestivalURLs) != len(u.FestivalURLs) {
		return true
	}
	for i := range u.FestivalURLs {
		if b.FestivalURLs[i] != u.FestivalURLs[i] {
			return true
		}
	}
	return !samePtr(b.Country, u.Country) || !samePtr(b.Slug, u.Slug)
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
