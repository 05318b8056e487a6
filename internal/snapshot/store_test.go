package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvmarrod/lineup-weaver/internal/crawler"
)

func TestStoreLoadMissingIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"))

	snap, err := s.Load("novarock")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Links) != 0 || len(snap.Details) != 0 {
		t.Fatalf("snapshot=%+v, want empty", snap)
	}
	if s.Exists("novarock") {
		t.Fatal("Exists=true for missing snapshot")
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	want := Snapshot{
		Links: []string{"https://x.test/artist/a", "https://x.test/artist/b"},
		Details: []crawler.ArtistDetail{
			{Festival: "novarock", URL: "https://x.test/artist/a", Slug: "a", Name: "A", Country: "AT", Day: "Thu, 11. June", Stage: "Blue Stage", Time: "18:00"},
		},
	}
	if err := s.Save("novarock", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("novarock")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Links) != 2 || got.Details[0] != want.Details[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	raw, err := os.ReadFile(s.DetailsPath("novarock"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n  {\n    \"festival\": \"novarock\"") {
		t.Fatalf("details not two-space indented:\n%s", raw)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStoreSaveEmptyWritesArrays(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Save("rfp", Snapshot{}); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(s.LinksPath("rfp"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" {
		t.Fatalf("links=%q, want []", raw)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := os.WriteFile(s.LinksPath("rfp"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("rfp"); err == nil {
		t.Fatal("expected parse error")
	}
}
