package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Storage is the SQLite implementation of Store
type Storage struct {
	db *sql.DB
}

var _ Store = (*Storage)(nil)

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; concurrent sources queue here instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist.
// Calendar dates are TEXT (YYYY-MM-DD) so the driver never shifts them through a time zone.
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS festivals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		year INTEGER NOT NULL,
		start_date TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bands (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		country TEXT,
		slug TEXT,
		festival_urls TEXT NOT NULL DEFAULT '[]',
		spotify_id TEXT,
		spotify_url TEXT,
		spotify_image_url TEXT,
		spotify_popularity INTEGER,
		spotify_genres TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS lineups (
		id TEXT PRIMARY KEY,
		festival_id TEXT NOT NULL,
		band_id TEXT NOT NULL,
		slug TEXT,
		source_url TEXT NOT NULL,
		day_label TEXT,
		stage TEXT,
		stage_label TEXT,
		time_label TEXT,
		performance_time TEXT,
		performance_date TEXT,
		day_number INTEGER,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (festival_id) REFERENCES festivals(id),
		FOREIGN KEY (band_id) REFERENCES bands(id),
		UNIQUE(festival_id, band_id)
	);

	CREATE INDEX IF NOT EXISTS idx_bands_spotify ON bands(spotify_id);
	CREATE INDEX IF NOT EXISTS idx_lineups_festival ON lineups(festival_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetFestivalByID retrieves a festival, returns nil if not found
func (s *Storage) GetFestivalByID(ctx context.Context, id string) (*Festival, error) {
	var (
		f     Festival
		start sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, year, start_date, created_at
		FROM festivals
		WHERE id = ?
	`, id).Scan(&f.ID, &f.Name, &f.Year, &start, &f.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get festival: %w", err)
	}

	if f.StartDate, err = parseDate(nullString(start)); err != nil {
		return nil, fmt.Errorf("festival %s has invalid start_date: %w", id, err)
	}
	return &f, nil
}

// InsertFestival creates a festival row with its pre-assigned id
func (s *Storage) InsertFestival(ctx context.Context, f Festival) (*Festival, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO festivals (id, name, year, start_date)
		VALUES (?, ?, ?, ?)
	`, f.ID, f.Name, f.Year, formatDate(f.StartDate))
	if err != nil {
		return nil, fmt.Errorf("failed to insert festival: %w", err)
	}
	return s.GetFestivalByID(ctx, f.ID)
}

// SetFestivalStartDate records the first festival day
func (s *Storage) SetFestivalStartDate(ctx context.Context, id string, start time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE festivals SET start_date = ? WHERE id = ?", formatDate(&start), id)
	if err != nil {
		return fmt.Errorf("failed to set festival start date: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("festival %s does not exist", id)
	}
	return nil
}

const bandColumns = `id, name, country, slug, festival_urls, spotify_id, spotify_url,
	spotify_image_url, spotify_popularity, spotify_genres, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBand(row rowScanner) (*Band, error) {
	var (
		b                     Band
		country, slug         sql.NullString
		urls                  string
		spotifyID, spotifyURL sql.NullString
		imageURL, genres      sql.NullString
		popularity            sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.Name, &country, &slug, &urls, &spotifyID, &spotifyURL,
		&imageURL, &popularity, &genres, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	b.Country = nullString(country)
	b.Slug = nullString(slug)
	b.SpotifyID = nullString(spotifyID)
	b.SpotifyURL = nullString(spotifyURL)
	b.SpotifyImageURL = nullString(imageURL)
	if popularity.Valid {
		p := int(popularity.Int64)
		b.SpotifyPopularity = &p
	}

	var err error
	if b.FestivalURLs, err = decodeList(urls); err != nil {
		return nil, fmt.Errorf("band %s has invalid festival_urls: %w", b.ID, err)
	}
	if genres.Valid {
		if b.SpotifyGenres, err = decodeList(genres.String); err != nil {
			return nil, fmt.Errorf("band %s has invalid spotify_genres: %w", b.ID, err)
		}
	}
	return &b, nil
}

// GetBandByName retrieves a band by exact name, returns nil if not found
func (s *Storage) GetBandByName(ctx context.Context, name string) (*Band, error) {
	b, err := scanBand(s.db.QueryRowContext(ctx, "SELECT "+bandColumns+" FROM bands WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get band: %w", err)
	}
	return b, nil
}

// InsertBand creates a band; an empty ID is replaced with a new UUID
func (s *Storage) InsertBand(ctx context.Context, b Band) (*Band, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	urls, err := encodeList(b.FestivalURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode festival urls: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bands (id, name, country, slug, festival_urls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Name, b.Country, b.Slug, urls, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert band: %w", err)
	}

	b.CreatedAt, b.UpdatedAt = now, now
	return &b, nil
}

// UpdateBand writes the reconciliation-owned columns of a band
func (s *Storage) UpdateBand(ctx context.Context, id string, u BandUpdate) error {
	urls, err := encodeList(u.FestivalURLs)
	if err != nil {
		return fmt.Errorf("failed to encode festival urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE bands SET festival_urls = ?, country = ?, slug = ?, updated_at = ?
		WHERE id = ?
	`, urls, u.Country, u.Slug, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update band: %w", err)
	}
	return nil
}

// ListBandsForEnrichment returns the bands a catalog pass should look up, ordered by name
func (s *Storage) ListBandsForEnrichment(ctx context.Context, f EnrichmentFilter) ([]*Band, error) {
	var (
		where []string
		args  []any
	)
	switch {
	case f.BandName != "":
		where = append(where, "name = ? COLLATE NOCASE")
		args = append(args, f.BandName)
	case !f.Force:
		where = append(where, "spotify_id IS NULL")
	}

	query := "SELECT " + bandColumns + " FROM bands"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bands: %w", err)
	}
	defer rows.Close()

	var bands []*Band
	for rows.Next() {
		b, err := scanBand(rows)
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
func (s *Storage) UpdateBandCatalog(ctx context.Context, id string, m CatalogMatch) error {
	genres, err := encodeList(m.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE bands SET
			spotify_id = ?, spotify_url = ?, spotify_image_url = ?,
			spotify_popularity = ?, spotify_genres = ?, updated_at = ?
		WHERE id = ?
	`, m.SpotifyID, m.SpotifyURL, m.ImageURL, m.Popularity, genres, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update band %s: %w", id, err)
	}
	return nil
}

// UpsertLineupSlot inserts a lineup slot or replaces every non-identity
// column of the existing (festival, band) row
func (s *Storage) UpsertLineupSlot(ctx context.Context, slot LineupSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lineups (
			id, festival_id, band_id, slug, source_url, day_label, stage, stage_label,
			time_label, performance_time, performance_date, day_number, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(festival_id, band_id) DO UPDATE SET
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
		formatDate(slot.PerformanceDate), slot.DayNumber, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to upsert lineup slot: %w", err)
	}
	return nil
}

// ListLineupSlots returns a festival's lineup ordered by day, time and band name
func (s *Storage) ListLineupSlots(ctx context.Context, festivalID string) ([]*LineupSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.festival_id, l.band_id, b.name, l.slug, l.source_url, l.day_label,
			l.stage, l.stage_label, l.time_label, l.performance_time, l.performance_date,
			l.day_number, l.updated_at
		FROM lineups l
		JOIN bands b ON b.id = l.band_id
		WHERE l.festival_id = ?
		ORDER BY l.day_number IS NULL, l.day_number, l.performance_time, b.name
	`, festivalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lineup slots: %w", err)
	}
	defer rows.Close()

	var slots []*LineupSlot
	for rows.Next() {
		var (
			l                             LineupSlot
			slug, day, stage, stageLabel  sql.NullString
			timeLabel, perfTime, perfDate sql.NullString
			dayNumber                     sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.FestivalID, &l.BandID, &l.BandName, &slug, &l.SourceURL, &day,
			&stage, &stageLabel, &timeLabel, &perfTime, &perfDate, &dayNumber, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lineup slot: %w", err)
		}
		l.Slug = nullString(slug)
		l.DayLabel = nullString(day)
		l.Stage = nullString(stage)
		l.StageLabel = nullString(stageLabel)
		l.TimeLabel = nullString(timeLabel)
		l.PerformanceTime = nullString(perfTime)
		if l.PerformanceDate, err = parseDate(nullString(perfDate)); err != nil {
			return nil, fmt.Errorf("lineup %s has invalid performance_date: %w", l.ID, err)
		}
		if dayNumber.Valid {
			n := int(dayNumber.Int64)
			l.DayNumber = &n
		}
		slots = append(slots, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineup slots: %w", err)
	}
	return slots, nil
}

// UpdateLineupDates rewrites the derived calendar columns of one lineup slot
func (s *Storage) UpdateLineupDates(ctx context.Context, id string, date *time.Time, dayNumber *int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lineups SET performance_date = ?, day_number = ?, updated_at = ?
		WHERE id = ?
	`, formatDate(date), dayNumber, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update lineup dates: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
