package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// development runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS booths (
	id             TEXT PRIMARY KEY,
	normalized_key TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL,
	latitude       REAL,
	longitude      REAL,
	geo_source     TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'unknown',
	booth_type     TEXT NOT NULL DEFAULT 'analog',
	source_names   TEXT NOT NULL DEFAULT '[]',
	source_urls    TEXT NOT NULL DEFAULT '[]',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_booths_city_country ON booths(city, country);

CREATE TABLE IF NOT EXISTS source_runs (
	id          TEXT PRIMARY KEY,
	source_name TEXT NOT NULL,
	candidates  INTEGER NOT NULL DEFAULT 0,
	inserted    INTEGER NOT NULL DEFAULT 0,
	merged      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_source_runs_source ON source_runs(source_name, started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetBoothByKey(ctx context.Context, key string) (*model.StoredBooth, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, normalized_key, name, address, city, state, country, latitude, longitude,
			geo_source, description, status, booth_type, source_names, source_urls, created_at, updated_at
		FROM booths WHERE normalized_key = ?`, key)
	booth, err := scanSQLiteBooth(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get booth by key")
	}
	return booth, nil
}

func (s *SQLiteStore) InsertBooth(ctx context.Context, b *model.StoredBooth) error {
	names, urls, err := marshalProvenance(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO booths (id, normalized_key, name, address, city, state, country, latitude, longitude,
			geo_source, description, status, booth_type, source_names, source_urls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.NormalizedKey, b.Name, b.Address, b.City, b.State, b.Country,
		nullFloat(b.Latitude), nullFloat(b.Longitude), b.GeoSource, b.Description,
		string(b.Status), string(b.BoothType), names, urls, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert booth %s", b.NormalizedKey)
	}
	return nil
}

func (s *SQLiteStore) UpdateBooth(ctx context.Context, b *model.StoredBooth) error {
	names, urls, err := marshalProvenance(b)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE booths SET name = ?, address = ?, city = ?, state = ?, country = ?,
			latitude = ?, longitude = ?, geo_source = ?, description = ?,
			status = ?, booth_type = ?, source_names = ?, source_urls = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Address, b.City, b.State, b.Country,
		nullFloat(b.Latitude), nullFloat(b.Longitude), b.GeoSource, b.Description,
		string(b.Status), string(b.BoothType), names, urls, b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update booth %s", b.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: update booth %s: no such row", b.ID)
	}
	return nil
}

func (s *SQLiteStore) ListBoothsMissingCoordinates(ctx context.Context, limit int) ([]model.StoredBooth, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, normalized_key, name, address, city, state, country, latitude, longitude,
			geo_source, description, status, booth_type, source_names, source_urls, created_at, updated_at
		FROM booths WHERE latitude IS NULL OR longitude IS NULL ORDER BY updated_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list booths missing coordinates")
	}
	defer rows.Close()

	var booths []model.StoredBooth
	for rows.Next() {
		b, err := scanSQLiteBooth(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan booth")
		}
		booths = append(booths, *b)
	}
	return booths, rows.Err()
}

func (s *SQLiteStore) SetBoothCoordinates(ctx context.Context, id string, lat, lon float64, source string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE booths SET latitude = ?, longitude = ?, geo_source = ?, updated_at = ?
		WHERE id = ? AND latitude IS NULL`,
		lat, lon, source, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set coordinates for %s", id)
	}
	return nil
}

func (s *SQLiteStore) CountBooths(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM booths`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count booths")
	}
	return n, nil
}

func (s *SQLiteStore) RecordRunOutcome(ctx context.Context, o model.SourceRunOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_runs (id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.SourceName, o.Candidates, o.Inserted, o.Merged, o.Skipped, o.Rejected,
		o.Duration.Milliseconds(), o.Error, o.StartedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record run outcome for %s", o.SourceName)
	}
	return nil
}

func (s *SQLiteStore) PreviousRunOutcome(ctx context.Context, sourceName string) (*model.SourceRunOutcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at
		FROM source_runs WHERE source_name = ? ORDER BY started_at DESC LIMIT 1`, sourceName)
	o, err := scanSQLiteRunOutcome(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: previous run outcome for %s", sourceName)
	}
	return o, nil
}

func (s *SQLiteStore) ListRunOutcomes(ctx context.Context, sourceName string, limit int) ([]model.SourceRunOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if sourceName == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at
			FROM source_runs ORDER BY started_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at
			FROM source_runs WHERE source_name = ? ORDER BY started_at DESC LIMIT ?`, sourceName, limit)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run outcomes")
	}
	defer rows.Close()

	var outcomes []model.SourceRunOutcome
	for rows.Next() {
		o, err := scanSQLiteRunOutcome(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run outcome")
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBooth(row rowScanner) (*model.StoredBooth, error) {
	var b model.StoredBooth
	var lat, lon sql.NullFloat64
	var status, boothType, names, urls string
	err := row.Scan(
		&b.ID, &b.NormalizedKey, &b.Name, &b.Address, &b.City, &b.State, &b.Country,
		&lat, &lon, &b.GeoSource, &b.Description, &status, &boothType,
		&names, &urls, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		b.Latitude = &lat.Float64
	}
	if lon.Valid {
		b.Longitude = &lon.Float64
	}
	b.Status = model.BoothStatus(status)
	b.BoothType = model.BoothType(boothType)
	if err := json.Unmarshal([]byte(names), &b.SourceNames); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode source_names")
	}
	if err := json.Unmarshal([]byte(urls), &b.SourceURLs); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode source_urls")
	}
	return &b, nil
}

func scanSQLiteRunOutcome(row rowScanner) (*model.SourceRunOutcome, error) {
	var o model.SourceRunOutcome
	var durationMS int64
	err := row.Scan(
		&o.ID, &o.SourceName, &o.Candidates, &o.Inserted, &o.Merged, &o.Skipped, &o.Rejected,
		&durationMS, &o.Error, &o.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Duration = time.Duration(durationMS) * time.Millisecond
	return &o, nil
}

func marshalProvenance(b *model.StoredBooth) (names string, urls string, err error) {
	nb, err := json.Marshal(emptyIfNil(b.SourceNames))
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: encode source_names")
	}
	ub, err := json.Marshal(emptyIfNil(b.SourceURLs))
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: encode source_urls")
	}
	return string(nb), string(ub), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
