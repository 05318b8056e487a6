package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the Store implementation for a hosted Postgres database.
// It expects festival_urls and spotify_genres as text[] and dates as date.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens a connection pool and ensures the schema exists
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)
	// Connection poolers in transaction mode reject prepared statements.
	if strings.Contains(dsn, "pgbouncer=true") || strings.Contains(dsn, ":6543") {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS festivals (
		id uuid PRIMARY KEY,
		name text NOT NULL,
		year integer NOT NULL,
		start_date date,
		created_at timestamptz NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS bands (
		id uuid PRIMARY KEY,
		name text UNIQUE NOT NULL,
		country text,
		slug text,
		festival_urls text[] NOT NULL DEFAULT '{}',
		spotify_id text,
		spotify_url text,
		spotify_image_url text,
		spotify_popularity integer,
		spotify_genres text[],
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS lineups (
		id uuid PRIMARY KEY,
		festival_id uuid NOT NULL REFERENCES festivals(id),
		band_id uuid NOT NULL REFERENCES bands(id),
		slug text,
		source_url text NOT NULL,
		day_label text,
		stage text,
		stage_label text,
		time_label text,
		performance_time text,
		performance_date date,
		day_number integer,
		updated_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (festival_id, band_id)
	);
	`)
	return err
}

// GetFestivalByID retrieves a festival, returns nil if not found
func (p *Postgres) GetFestivalByID(ctx context.Context, id string) (*Festival, error) {
	var f Festival
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, name, year, start_date, created_at
		FROM festivals WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.Year, &f.StartDate, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get festival: %w", err)
	}
	f.StartDate = utcDate(f.StartDate)
	return &f, nil
}

// InsertFestival creates a festival row with its pre-assigned id
func (p *Postgres) InsertFestival(ctx context.Context, f Festival) (*Festival, error) {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO festivals (id, name, year, start_date) VALUES ($1, $2, $3, $4)
	`, f.ID, f.Name, f.Year, utcDate(f.StartDate))
	if err != nil {
		return nil, fmt.Errorf("failed to insert festival: %w", err)
	}
	return p.GetFestivalByID(ctx, f.ID)
}

// SetFestivalStartDate records the first festival day
func (p *Postgres) SetFestivalStartDate(ctx context.Context, id string, start time.Time) error {
	tag, err := p.pool.Exec(ctx, "UPDATE festivals SET start_date = $1 WHERE id = $2", utcDate(&start), id)
	if err != nil {
		return fmt.Errorf("failed to set festival start date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("festival %s does not exist", id)
	}
	return nil
}

const pgBandColumns = `id::text, name, country, slug, festival_urls, spotify_id, spotify_url,
	spotify_image_url, spotify_popularity, spotify_genres, created_at, updated_at`

func scanPgBand(row pgx.Row) (*Band, error) {
	var b Band
	if err := row.Scan(&b.ID, &b.Name, &b.Country, &b.Slug, &b.FestivalURLs, &b.SpotifyID, &b.SpotifyURL,
		&b.SpotifyImageURL, &b.SpotifyPopularity, &b.SpotifyGenres, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBandByName retrieves a band by exact name, returns nil if not found
func (p *Postgres) GetBandByName(ctx context.Context, name string) (*Band, error) {
	b, err := scanPgBand(p.pool.QueryRow(ctx, "SELECT "+pgBandColumns+" FROM bands WHERE name = $1", name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get band: %w", err)
	}
	return b, nil
}

// InsertBand creates a band; an empty ID is replaced with a new UUID
func (p *Postgres) InsertBand(ctx context.Context, b Band) (*Band, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.FestivalURLs == nil {
		b.FestivalURLs = []string{}
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO bands (id, name, country, slug, festival_urls)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, b.ID, b.Name, b.Country, b.Slug, b.FestivalURLs).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert band: %w", err)
	}
	return &b, nil
}

// UpdateBand writes the reconciliation-owned columns of a band
func (p *Postgres) UpdateBand(ctx context.Context, id string, u BandUpdate) error {
	urls := u.FestivalURLs
	if urls == nil {
		urls = []string{}
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE bands SET festival_urls = $1, country = $2, slug = $3, updated_at = now()
		WHERE id = $4
	`, urls, u.Country, u.Slug, id)
	if err != nil {
		return fmt.Errorf("failed to update band: %w", err)
	}
	return nil
}

// ListBandsForEnrichment returns the bands a catalog pass should look up, ordered by name
func (p *Postgres) ListBandsForEnrichment(ctx context.Context, f EnrichmentFilter) ([]*Band, error) {
	query := "SELECT " + pgBandColumns + " FROM bands"
	var args []any
	switch {
	case f.BandName != "":
		args = append(args, f.BandName)
		query += " WHERE lower(name) = lower($1)"
	case !f.Force:
		query += " WHERE spotify_id IS NULL"
	}
	query += " ORDER BY name ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bands: %w", err)
	}
	defer rows.Close()

	var bands []*Band
	for rows.Next() {
		b, err := scanPgBand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan band: %w", err)
		}
		bands = append(bands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bands: %w", err)
	}
	return bands, nil
}

// UpdateBandCatalog overwrites the catalog columns of a band
func (p *Postgres) UpdateBandCatalog(ctx context.Context, id string, m CatalogMatch) error {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE bands SET
			spotify_id = $1, spotify_url = $2, spotify_image_url = $3,
			spotify_popularity = $4, spotify_genres = $5, updated_at = now()
		WHERE id = $6
	`, m.SpotifyID, m.SpotifyURL, m.ImageURL, m.Popularity, genres, id)
	if err != nil {
		return fmt.Errorf("failed to update band %s: %w", id, err)
	}
	return nil
}

// UpsertLineupSlot inserts a lineup slot or replaces every non-identity
// column of the existing (festival, band) row
func (p *Postgres) UpsertLineupSlot(ctx context.Context, slot LineupSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO lineups (
			id, festival_id, band_id, slug, source_url, day_label, stage, stage_label,
			time_label, performance_time, performance_date, day_number, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (festival_id, band_id) DO UPDATE SET
			slug = EXCLUDED.slug,
			source_url = EXCLUDED.source_url,
			day_label = EXCLUDED.day_label,
			stage = EXCLUDED.stage,
			stage_label = EXCLUDED.stage_label,
			time_label = EXCLUDED.time_label,
			performance_time = EXCLUDED.performance_time,
			performance_date = EXCLUDED.performance_date,
			day_number = EXCLUDED.day_number,
			updated_at = EXCLUDED.updated_at
	`, slot.ID, slot.FestivalID, slot.BandID, slot.Slug, slot.SourceURL, slot.DayLabel,
		slot.Stage, slot.StageLabel, slot.TimeLabel, slot.PerformanceTime,
		utcDate(slot.PerformanceDate), slot.DayNumber)
	if err != nil {
		return fmt.Errorf("failed to upsert lineup slot: %w", err)
	}
	return nil
}

// ListLineupSlots returns a festival's lineup ordered by day, time and band name
func (p *Postgres) ListLineupSlots(ctx context.Context, festivalID string) ([]*LineupSlot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT l.id::text, l.festival_id::text, l.band_id::text, b.name, l.slug, l.source_url,
			l.day_label, l.stage, l.stage_label, l.time_label, l.performance_time,
			l.performance_date, l.day_number, l.updated_at
		FROM lineups l
		JOIN bands b ON b.id = l.band_id
		WHERE l.festival_id = $1
		ORDER BY l.day_number NULLS LAST, l.performance_time, b.name
	`, festivalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lineup slots: %w", err)
	}
	defer rows.Close()

	var slots []*LineupSlot
	for rows.Next() {
		var l LineupSlot
		if err := rows.Scan(&l.ID, &l.FestivalID, &l.BandID, &l.BandName, &l.Slug, &l.SourceURL,
			&l.DayLabel, &l.Stage, &l.StageLabel, &l.TimeLabel, &l.PerformanceTime,
			&l.PerformanceDate, &l.DayNumber, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lineup slot: %w", err)
		}
		l.PerformanceDate = utcDate(l.PerformanceDate)
		slots = append(slots, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineup slots: %w", err)
	}
	return slots, nil
}

// UpdateLineupDates rewrites the derived calendar columns of one lineup slot
func (p *Postgres) UpdateLineupDates(ctx context.Context, id string, date *time.Time, dayNumber *int) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE lineups SET performance_date = $1, day_number = $2, updated_at = now()
		WHERE id = $3
	`, utcDate(date), dayNumber, id)
	if err != nil {
		return fmt.Errorf("failed to update lineup dates: %w", err)
	}
	return nil
}

// Close releases the pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// utcDate pins a scanned date column to midnight UTC
func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
