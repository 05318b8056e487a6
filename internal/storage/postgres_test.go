package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Runs against a live database only when LINEUP_TEST_PG_DSN is set.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("LINEUP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LINEUP_TEST_PG_DSN not set")
	}
	p, err := NewPostgres(context.Background(), dsn, 2)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPostgres(t)

	festivalID := uuid.NewString()
	if _, err := p.InsertFestival(ctx, Festival{ID: festivalID, Name: "Nova Rock", Year: 2026}); err != nil {
		t.Fatalf("InsertFestival: %v", err)
	}
	start := time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)
	if err := p.SetFestivalStartDate(ctx, festivalID, start); err != nil {
		t.Fatal(err)
	}

	name := "Architects " + festivalID[:8]
	b, err := p.InsertBand(ctx, Band{Name: name, FestivalURLs: []string{"https://a.test/1"}})
	if err != nil {
		t.Fatalf("InsertBand: %v", err)
	}
	if err := p.UpdateBand(ctx, b.ID, BandUpdate{FestivalURLs: []string{"https://a.test/1", "https://b.test/2"}, Country: strPtr("GB")}); err != nil {
		t.Fatal(err)
	}

	day := 2
	date := time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC)
	slot := LineupSlot{FestivalID: festivalID, BandID: b.ID, SourceURL: "https://a.test/1",
		Stage: strPtr("Blue Stage"), PerformanceDate: &date, DayNumber: &day}
	if err := p.UpsertLineupSlot(ctx, slot); err != nil {
		t.Fatalf("UpsertLineupSlot: %v", err)
	}
	slot.Stage = strPtr("Red Stage")
	if err := p.UpsertLineupSlot(ctx, slot); err != nil {
		t.Fatal(err)
	}

	slots, err := p.ListLineupSlots(ctx, festivalID)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || *slots[0].Stage != "Red Stage" || slots[0].BandName != name {
		t.Fatalf("slots=%+v", slots)
	}
	if slots[0].PerformanceDate == nil || !slots[0].PerformanceDate.Equal(date) {
		t.Fatalf("PerformanceDate=%v", slots[0].PerformanceDate)
	}

	got, err := p.GetBandByName(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.FestivalURLs) != 2 || got.Country == nil || *got.Country != "GB" {
		t.Fatalf("band=%+v", got)
	}
}
