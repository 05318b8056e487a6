package storage

import "time"

// DateLayout is the calendar-date format used for start and performance dates
const DateLayout = "2006-01-02"

// Festival is one festival edition; its ID is pre-assigned per source
type Festival struct {
	ID        string
	Name      string
	Year      int
	StartDate *time.Time
	CreatedAt time.Time
}

// Band is a unique-by-name artist known from one or more festivals
type Band struct {
	ID           string
	Name         string
	Country      *string
	Slug         *string
	FestivalURLs []string

	SpotifyID         *string
	SpotifyURL        *string
	SpotifyImageURL   *string
	SpotifyPopularity *int
	SpotifyGenres     []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BandUpdate carries the reconciliation-owned band columns
type BandUpdate struct {
	FestivalURLs []string
	Country      *string
	Slug         *string
}

// CatalogMatch carries the enrichment-owned band columns
type CatalogMatch struct {
	SpotifyID  string
	SpotifyURL string
	ImageURL   *string
	Popularity int
	Genres     []string
}

// LineupSlot is one band's appearance at a festival
type LineupSlot struct {
	ID              string
	FestivalID      string
	BandID          string
	BandName        string // populated on reads only
	Slug            *string
	SourceURL       string
	DayLabel        *string
	Stage           *string
	StageLabel      *string
	TimeLabel       *string
	PerformanceTime *string
	PerformanceDate *time.Time
	DayNumber       *int
	UpdatedAt       time.Time
}

// EnrichmentFilter selects bands for a catalog pass
type EnrichmentFilter struct {
	Force    bool   // include bands that already have a catalog id
	BandName string // case-insensitive exact name; overrides Force
	Limit    int    // 0 means unlimited
}
