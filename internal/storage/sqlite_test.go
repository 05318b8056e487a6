package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

const testFestivalID = "7dfcafdf-32e2-4fb1-8c29-af94f25a800e"

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "lineups.db"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestFestivalLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	got, err := s.GetFestivalByID(ctx, testFestivalID)
	if err != nil || got != nil {
		t.Fatalf("GetFestivalByID on empty db = %v, %v; want nil, nil", got, err)
	}

	inserted, err := s.InsertFestival(ctx, Festival{ID: testFestivalID, Name: "Nova Rock", Year: 2026})
	if err != nil {
		t.Fatalf("InsertFestival: %v", err)
	}
	if inserted.StartDate != nil {
		t.Fatalf("StartDate=%v, want nil", inserted.StartDate)
	}

	start := time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)
	if err := s.SetFestivalStartDate(ctx, testFestivalID, start); err != nil {
		t.Fatalf("SetFestivalStartDate: %v", err)
	}
	got, err = s.GetFestivalByID(ctx, testFestivalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Fatalf("StartDate=%v, want %v", got.StartDate, start)
	}

	if err := s.SetFestivalStartDate(ctx, "00000000-0000-0000-0000-000000000000", start); err == nil {
		t.Fatal("expected error for unknown festival")
	}
}

func TestBandInsertUpdateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	b, err := s.InsertBand(ctx, Band{Name: "Architects", Country: strPtr("GB"), FestivalURLs: []string{"https://a.test/1"}})
	if err != nil {
		t.Fatalf("InsertBand: %v", err)
	}
	if b.ID == "" {
		t.Fatal("InsertBand did not assign an id")
	}

	if _, err := s.InsertBand(ctx, Band{Name: "Architects"}); err == nil {
		t.Fatal("expected unique violation on duplicate name")
	}

	err = s.UpdateBand(ctx, b.ID, BandUpdate{
		FestivalURLs: []string{"https://a.test/1", "https://b.test/2"},
		Country:      strPtr("GB"),
		Slug:         strPtr("architects"),
	})
	if err != nil {
		t.Fatalf("UpdateBand: %v", err)
	}

	got, err := s.GetBandByName(ctx, "Architects")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.FestivalURLs) != 2 || *got.Slug != "architects" {
		t.Fatalf("band=%+v, want 2 urls and slug architects", got)
	}
	if got.SpotifyID != nil {
		t.Fatal("SpotifyID should be nil before enrichment")
	}

	missing, err := s.GetBandByName(ctx, "architects")
	if err != nil || missing != nil {
		t.Fatalf("lookup must be exact: got %v, %v", missing, err)
	}
}

func TestListBandsForEnrichment(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	for _, name := range []string{"Slipknot", "Architects", "Bring Me The Horizon"} {
		if _, err := s.InsertBand(ctx, Band{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	arch, _ := s.GetBandByName(ctx, "Architects")
	img := "https://img.test/a.jpg"
	if err := s.UpdateBandCatalog(ctx, arch.ID, CatalogMatch{
		SpotifyID: "sp1", SpotifyURL: "https://open.spotify.test/sp1", ImageURL: &img,
		Popularity: 71, Genres: []string{"metalcore"},
	}); err != nil {
		t.Fatalf("UpdateBandCatalog: %v", err)
	}

	tests := []struct {
		name   string
		filter EnrichmentFilter
		want   []string
	}{
		{name: "unmatched only", filter: EnrichmentFilter{}, want: []string{"Bring Me The Horizon", "Slipknot"}},
		{name: "force", filter: EnrichmentFilter{Force: true}, want: []string{"Architects", "Bring Me The Horizon", "Slipknot"}},
		{name: "force with limit", filter: EnrichmentFilter{Force: true, Limit: 1}, want: []string{"Architects"}},
		{name: "named band ignores case", filter: EnrichmentFilter{BandName: "ARCHITECTS"}, want: []string{"Architects"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands, err := s.ListBandsForEnrichment(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(bands) != len(tt.want) {
				t.Fatalf("got %d bands, want %d", len(bands), len(tt.want))
			}
			for i, b := range bands {
				if b.Name != tt.want[i] {
					t.Fatalf("bands[%d]=%q, want %q", i, b.Name, tt.want[i])
				}
			}
		})
	}

	got, _ := s.GetBandByName(ctx, "Architects")
	if got.SpotifyPopularity == nil || *got.SpotifyPopularity != 71 || len(got.SpotifyGenres) != 1 {
		t.Fatalf("catalog fields not persisted: %+v", got)
	}
}

func TestUpsertLineupSlotReplacesFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.InsertFestival(ctx, Festival{ID: testFestivalID, Name: "Nova Rock", Year: 2026}); err != nil {
		t.Fatal(err)
	}
	b, err := s.InsertBand(ctx, Band{Name: "Architects"})
	if err != nil {
		t.Fatal(err)
	}

	date := time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC)
	day := 2
	first := LineupSlot{
		FestivalID: testFestivalID, BandID: b.ID, SourceURL: "https://n.test/artist/architects",
		DayLabel: strPtr("Fri, 12. June"), Stage: strPtr("Blue Stage"), StageLabel: strPtr("Blue Stage"),
		TimeLabel: strPtr("20:30"), PerformanceTime: strPtr("20:30"), PerformanceDate: &date, DayNumber: &day,
	}
	if err := s.UpsertLineupSlot(ctx, first); err != nil {
		t.Fatalf("UpsertLineupSlot: %v", err)
	}

	second := first
	second.Stage = strPtr("Red Stage")
	second.StageLabel = strPtr("Red Stage")
	second.PerformanceTime = nil
	second.TimeLabel = strPtr("TBA")
	if err := s.UpsertLineupSlot(ctx, second); err != nil {
		t.Fatalf("UpsertLineupSlot second: %v", err)
	}

	slots, err := s.ListLineupSlots(ctx, testFestivalID)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	got := slots[0]
	if *got.Stage != "Red Stage" || got.PerformanceTime != nil || *got.TimeLabel != "TBA" {
		t.Fatalf("slot not replaced: %+v", got)
	}
	if got.BandName != "Architects" {
		t.Fatalf("BandName=%q", got.BandName)
	}
	if got.PerformanceDate == nil || !got.PerformanceDate.Equal(date) || *got.DayNumber != 2 {
		t.Fatalf("dates=%v/%v", got.PerformanceDate, got.DayNumber)
	}

	if err := s.UpdateLineupDates(ctx, got.ID, nil, nil); err != nil {
		t.Fatalf("UpdateLineupDates: %v", err)
	}
	slots, _ = s.ListLineupSlots(ctx, testFestivalID)
	if slots[0].PerformanceDate != nil || slots[0].DayNumber != nil {
		t.Fatal("dates should be cleared")
	}
}
