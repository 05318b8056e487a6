package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alvmarrod/lineup-weaver/internal/crawler"
)

// Store persists snapshots as two JSON documents per source:
// <dir>/<source>-links.json and <dir>/<source>-details.json
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir; the directory is created on first save
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// LinksPath returns the link document path for a source
func (s *Store) LinksPath(source string) string {
	return filepath.Join(s.dir, source+"-links.json")
}

// DetailsPath returns the detail document path for a source
func (s *Store) DetailsPath(source string) string {
	return filepath.Join(s.dir, source+"-details.json")
}

// Load reads a source's snapshot. Missing documents load as empty.
func (s *Store) Load(source string) (Snapshot, error) {
	var snap Snapshot
	if err := readJSON(s.LinksPath(source), &snap.Links); err != nil {
		return Snapshot{}, err
	}
	if err := readJSON(s.DetailsPath(source), &snap.Details); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Exists reports whether a detail document has ever been written for source
func (s *Store) Exists(source string) bool {
	_, err := os.Stat(s.DetailsPath(source))
	return err == nil
}

// Save replaces both documents of a source
func (s *Store) Save(source string, snap Snapshot) error {
	links := snap.Links
	if links == nil {
		links = []string{}
	}
	details := snap.Details
	if details == nil {
		details = []crawler.ArtistDetail{}
	}
	if err := writeJSON(s.LinksPath(source), links); err != nil {
		return err
	}
	return writeJSON(s.DetailsPath(source), details)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return nil
}

// writeJSON writes to a temp file in the same directory and renames it into
// place so a crash never leaves a truncated document behind
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", path, err)
	}
	return nil
}
