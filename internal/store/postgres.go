package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS booths (
	id             TEXT PRIMARY KEY,
	normalized_key TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL,
	latitude       DOUBLE PRECISION,
	longitude      DOUBLE PRECISION,
	geo_source     TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'unknown',
	booth_type     TEXT NOT NULL DEFAULT 'analog',
	source_names   TEXT[] NOT NULL DEFAULT '{}',
	source_urls    TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_booths_city_country ON booths(city, country);
CREATE INDEX IF NOT EXISTS idx_booths_missing_geo ON booths(updated_at) WHERE latitude IS NULL;

CREATE TABLE IF NOT EXISTS source_runs (
	id          TEXT PRIMARY KEY,
	source_name TEXT NOT NULL,
	candidates  INTEGER NOT NULL DEFAULT 0,
	inserted    INTEGER NOT NULL DEFAULT 0,
	merged      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_source_runs_source ON source_runs(source_name, started_at DESC);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const boothColumns = `id, normalized_key, name, address, city, state, country, latitude, longitude, geo_source, description, status, booth_type, source_names, source_urls, created_at, updated_at`

// GetBoothByKey returns the booth with the given normalized key, or
// (nil, nil) when no such booth exists.
func (s *PostgresStore) GetBoothByKey(ctx context.Context, key string) (*model.StoredBooth, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+boothColumns+` FROM booths WHERE normalized_key = $1`, key)
	booth, err := scanBooth(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get booth by key")
	}
	return booth, nil
}

// InsertBooth persists a new booth.
func (s *PostgresStore) InsertBooth(ctx context.Context, b *model.StoredBooth) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO booths (`+boothColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		b.ID, b.NormalizedKey, b.Name, b.Address, b.City, b.State, b.Country,
		b.Latitude, b.Longitude, b.GeoSource, b.Description,
		string(b.Status), string(b.BoothType),
		b.SourceNames, b.SourceURLs, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert booth %s", b.NormalizedKey)
	}
	return nil
}

// UpdateBooth writes back a merged booth. The id and created_at are
// immutable; everything else reflects the merge result.
func (s *PostgresStore) UpdateBooth(ctx context.Context, b *model.StoredBooth) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE booths SET name = $1, address = $2, city = $3, state = $4, country = $5,
			latitude = $6, longitude = $7, geo_source = $8, description = $9,
			status = $10, booth_type = $11, source_names = $12, source_urls = $13, updated_at = $14
		WHERE id = $15`,
		b.Name, b.Address, b.City, b.State, b.Country,
		b.Latitude, b.Longitude, b.GeoSource, b.Description,
		string(b.Status), string(b.BoothType), b.SourceNames, b.SourceURLs, b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update booth %s", b.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: update booth %s: no such row", b.ID)
	}
	return nil
}

// ListBoothsMissingCoordinates returns booths with no geocode yet,
// oldest-updated first.
func (s *PostgresStore) ListBoothsMissingCoordinates(ctx context.Context, limit int) ([]model.StoredBooth, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+boothColumns+` FROM booths WHERE latitude IS NULL OR longitude IS NULL ORDER BY updated_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list booths missing coordinates")
	}
	defer rows.Close()

	var booths []model.StoredBooth
	for rows.Next() {
		b, err := scanBooth(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan booth")
		}
		booths = append(booths, *b)
	}
	return booths, rows.Err()
}

// SetBoothCoordinates assigns a geocoded position. Only rows still
// missing coordinates are touched, so a concurrent crawl can never be
// overwritten by a stale geocode.
func (s *PostgresStore) SetBoothCoordinates(ctx context.Context, id string, lat, lon float64, source string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE booths SET latitude = $1, longitude = $2, geo_source = $3, updated_at = now()
		WHERE id = $4 AND latitude IS NULL`,
		lat, lon, source, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set coordinates for %s", id)
	}
	return nil
}

// CountBooths returns the total number of stored booths.
func (s *PostgresStore) CountBooths(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM booths`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count booths")
	}
	return n, nil
}

// RecordRunOutcome appends a source run record.
func (s *PostgresStore) RecordRunOutcome(ctx context.Context, o model.SourceRunOutcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_runs (id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.SourceName, o.Candidates, o.Inserted, o.Merged, o.Skipped, o.Rejected,
		o.Duration.Milliseconds(), o.Error, o.StartedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record run outcome for %s", o.SourceName)
	}
	return nil
}

// PreviousRunOutcome returns the most recent recorded run for the
// source, or (nil, nil) when the source has never run.
func (s *PostgresStore) PreviousRunOutcome(ctx context.Context, sourceName string) (*model.SourceRunOutcome, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at
		FROM source_runs WHERE source_name = $1 ORDER BY started_at DESC LIMIT 1`,
		sourceName)
	outcome, err := scanRunOutcome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: previous run outcome for %s", sourceName)
	}
	return outcome, nil
}

// ListRunOutcomes returns recent runs for a source, newest first. An
// empty sourceName lists runs across all sources.
func (s *PostgresStore) ListRunOutcomes(ctx context.Context, sourceName string, limit int) ([]model.SourceRunOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows pgx.Rows
		err  error
	)
	if sourceName == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at
			FROM source_runs ORDER BY started_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, source_name, candidates, inserted, merged, skipped, rejected, duration_ms, error, started_at
			FROM source_runs WHERE source_name = $1 ORDER BY started_at DESC LIMIT $2`, sourceName, limit)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run outcomes")
	}
	defer rows.Close()

	var outcomes []model.SourceRunOutcome
	for rows.Next() {
		o, err := scanRunOutcome(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run outcome")
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, rows.Err()
}

func scanBooth(row pgx.Row) (*model.StoredBooth, error) {
	var b model.StoredBooth
	var status, boothType string
	err := row.Scan(
		&b.ID, &b.NormalizedKey, &b.Name, &b.Address, &b.City, &b.State, &b.Country,
		&b.Latitude, &b.Longitude, &b.GeoSource, &b.Description,
		&status, &boothType, &b.SourceNames, &b.SourceURLs,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.BoothStatus(status)
	b.BoothType = model.BoothType(boothType)
	return &b, nil
}

func scanRunOutcome(row pgx.Row) (*model.SourceRunOutcome, error) {
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
