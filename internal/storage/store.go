package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/config"
)

// Store is the relational system of record for festivals, bands and lineups.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	GetFestivalByID(ctx context.Context, id string) (*Festival, error)
	InsertFestival(ctx context.Context, f Festival) (*Festival, error)
	SetFestivalStartDate(ctx context.Context, id string, start time.Time) error

	GetBandByName(ctx context.Context, name string) (*Band, error)
	InsertBand(ctx context.Context, b Band) (*Band, error)
	UpdateBand(ctx context.Context, id string, u BandUpdate) error
	ListBandsForEnrichment(ctx context.Context, f EnrichmentFilter) ([]*Band, error)
	UpdateBandCatalog(ctx context.Context, id string, m CatalogMatch) error

	UpsertLineupSlot(ctx context.Context, slot LineupSlot) error
	ListLineupSlots(ctx context.Context, festivalID string) ([]*LineupSlot, error)
	UpdateLineupDates(ctx context.Context, id string, date *time.Time, dayNumber *int) error

	Close() error
}

// Open returns the store selected by cfg.DBDriver
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.PGDSN, cfg.PGMaxConns)
	case config.DriverSQLite:
		return NewStorage(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(DateLayout)
	return &s
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	raw := *s
	if len(raw) > len(DateLayout) {
		raw = raw[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
