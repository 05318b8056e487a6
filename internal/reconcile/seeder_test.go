package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/crawler"
	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/sirupsen/logrus/hooks/test"
)

func newTestSeeder(t *testing.T) (*Seeder, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "lineups.db"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	log, _ := test.NewNullLogger()
	return NewSeeder(store, log), store
}

func testProfile() *config.SiteProfile {
	return &config.SiteProfile{
		ID:         "novarock",
		FestivalID: "7dfcafdf-32e2-4fb1-8c29-af94f25a800e",
		Name:       "Nova Rock",
		Year:       2026,
	}
}

func testDetails() []crawler.ArtistDetail {
	return []crawler.ArtistDetail{
		{Festival: "novarock", URL: "https://n.test/en/artist/architects", Slug: "architects", Name: "Architects", Country: "GB", Day: "Fri, 12. June", Stage: "Blue Stage", Time: "20:30"},
		{Festival: "novarock", URL: "https://n.test/en/artist/gojira", Slug: "gojira", Name: "Gojira", Day: "Thu, 10. June", Stage: "TBA", Time: "TBA"},
		{Festival: "novarock", URL: "https://n.test/en/artist/unnamed", Slug: "unnamed"},
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSeeder(t)
	p := testProfile()

	first, err := s.Reconcile(ctx, p, testDetails())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := Result{BandsInserted: 2, LineupsUpserted: 2, Skipped: 1}
	if first != want {
		t.Fatalf("first run=%+v, want %+v", first, want)
	}

	before, _ := store.ListLineupSlots(ctx, p.FestivalID)

	second, err := s.Reconcile(ctx, p, testDetails())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want = Result{BandsUpdated: 2, LineupsUpserted: 2, Skipped: 1}
	if second != want {
		t.Fatalf("second run=%+v, want %+v", second, want)
	}

	after, _ := store.ListLineupSlots(ctx, p.FestivalID)
	if len(after) != len(before) || len(after) != 2 {
		t.Fatalf("slot count changed: %d -> %d", len(before), len(after))
	}
	for i := range after {
		if after[i].ID != before[i].ID || *after[i].Stage != *before[i].Stage {
			t.Fatalf("slot %d changed between runs", i)
		}
	}
}

func TestReconcileMergesExistingBand(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSeeder(t)

	rfp := &config.SiteProfile{ID: "rfp", FestivalID: "64d1f7b0-8003-437b-bf72-fac602140673", Name: "Rock for People", Year: 2026}
	if _, err := s.Reconcile(ctx, rfp, []crawler.ArtistDetail{
		{URL: "https://r.test/lineup/architects", Name: "Architects"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reconcile(ctx, testProfile(), testDetails()[:1]); err != nil {
		t.Fatal(err)
	}

	band, err := store.GetBandByName(ctx, "Architects")
	if err != nil || band == nil {
		t.Fatalf("GetBandByName: %v, %v", band, err)
	}
	if len(band.FestivalURLs) != 2 {
		t.Fatalf("FestivalURLs=%v, want union of both sources", band.FestivalURLs)
	}
	if band.Country == nil || *band.Country != "GB" || band.Slug == nil || *band.Slug != "architects" {
		t.Fatalf("null country/slug not filled: %+v", band)
	}
}

func TestReconcileComputesDatesFromStartDate(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSeeder(t)
	p := testProfile()

	if _, err := s.EnsureFestival(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := store.SetFestivalStartDate(ctx, p.FestivalID, time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reconcile(ctx, p, testDetails()); err != nil {
		t.Fatal(err)
	}

	slots, err := store.ListLineupSlots(ctx, p.FestivalID)
	if err != nil {
		t.Fatal(err)
	}
	days := map[string]int{}
	for _, slot := range slots {
		if slot.DayNumber == nil {
			t.Fatalf("%s has no day number", slot.BandName)
		}
		days[slot.BandName] = *slot.DayNumber
	}
	if days["Architects"] != 2 || days["Gojira"] != 0 {
		t.Fatalf("day numbers=%v, want Architects=2 Gojira=0", days)
	}
	for _, slot := range slots {
		if slot.BandName == "Architects" && (slot.PerformanceTime == nil || *slot.PerformanceTime != "20:30") {
			t.Fatalf("PerformanceTime=%v", slot.PerformanceTime)
		}
		if slot.BandName == "Gojira" && slot.PerformanceTime != nil {
			t.Fatalf("placeholder time must not produce a performance time")
		}
	}
}

func TestRecomputeDates(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSeeder(t)
	p := testProfile()

	if _, err := s.RecomputeDates(ctx, p); err == nil {
		t.Fatal("expected error before festival exists")
	}

	if _, err := s.Reconcile(ctx, p, append(testDetails(), crawler.ArtistDetail{Slug: "x", Name: "Mystery", Day: "soon"})); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecomputeDates(ctx, p); err == nil {
		t.Fatal("expected error without start date")
	}

	if err := store.SetFestivalStartDate(ctx, p.FestivalID, time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	got, err := s.RecomputeDates(ctx, p)
	if err != nil {
		t.Fatalf("RecomputeDates: %v", err)
	}
	if got != (DateResult{Updated: 2, Unparseable: 1}) {
		t.Fatalf("first recompute=%+v", got)
	}

	got, err = s.RecomputeDates(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got != (DateResult{Unchanged: 2, Unparseable: 1}) {
		t.Fatalf("second recompute=%+v", got)
	}
}
