package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/db"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

// PostgresStore implements Store over the locations, tenants and categories
// tables. Fragment search uses pg_trgm similarity alongside a substring match.
type PostgresStore struct {
	pool          db.Pool
	closeFn       func()
	maxCandidates int
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Seeder = (*PostgresStore)(nil)
)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// TrigramThreshold is the minimum pg_trgm similarity for a fuzzy hit.
const TrigramThreshold = 0.3

var (
	pgFindLocations = fmt.Sprintf(`SELECT %s FROM locations
WHERE lower(name) LIKE $1 ESCAPE '\' OR similarity(lower(name), $2) >= $3
ORDER BY similarity(lower(name), $2) DESC, name, id
LIMIT $4`, selectList("", locationColumns))

	pgAllLocationsLimited = fmt.Sprintf(`SELECT %s FROM locations ORDER BY name, id LIMIT $1`,
		selectList("", locationColumns))

	pgGetLocation = fmt.Sprintf(`SELECT %s FROM locations WHERE id = $1`, selectList("", locationColumns))

	pgListLocations = fmt.Sprintf(`SELECT %s FROM locations ORDER BY name, id`, selectList("", locationColumns))

	pgGetTenants = `SELECT t.id, t.location_id, t.name, t.category, t.is_anchor,
	c.id, c.name, c.tier, p.name
FROM tenants t
LEFT JOIN categories c ON c.id = t.category_id
LEFT JOIN categories p ON p.id = c.parent_id
WHERE t.location_id = $1
ORDER BY t.name, t.id`
)

// preparedStatements are prepared on each new connection so a bad query
// fails at connect time rather than on first use.
var preparedStatements = map[string]string{
	"find_locations": pgFindLocations,
	"get_location":   pgGetLocation,
	"list_locations": pgListLocations,
	"get_tenants":    pgGetTenants,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, maxCandidates int) (*PostgresStore, error) {
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewPostgresFromPool(pool, pool.Close, maxCandidates), nil
}

// NewPostgresFromPool wraps an existing pool. closeFn may be nil.
func NewPostgresFromPool(pool db.Pool, closeFn func(), maxCandidates int) *PostgresStore {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &PostgresStore{pool: pool, closeFn: closeFn, maxCandidates: maxCandidates}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS locations (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	county           TEXT NOT NULL DEFAULT '',
	postcode         TEXT NOT NULL DEFAULT '',
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	website          TEXT,
	phone            TEXT,
	instagram        TEXT,
	facebook         TEXT,
	tiktok           TEXT,
	youtube          TEXT,
	twitter          TEXT,
	parking_spaces   INTEGER,
	opened_year      INTEGER,
	total_floor_area DOUBLE PRECISION,
	number_of_stores INTEGER,
	owner            TEXT,
	management       TEXT,
	footfall         BIGINT,
	google_rating    DOUBLE PRECISION,
	google_reviews   INTEGER,
	population       BIGINT,
	median_age       DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_locations_name_trgm ON locations USING gin (lower(name) gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_locations_type ON locations(type);

CREATE TABLE IF NOT EXISTS categories (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	tier      INTEGER NOT NULL,
	parent_id TEXT REFERENCES categories(id)
);

CREATE TABLE IF NOT EXISTS tenants (
	id          TEXT PRIMARY KEY,
	location_id TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	category    TEXT,
	category_id TEXT REFERENCES categories(id),
	is_anchor   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_tenants_location_id ON tenants(location_id);
`

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// FindLocationsByNameFragment implements LocationReader.
func (s *PostgresStore) FindLocationsByNameFragment(ctx context.Context, fragment string, limit int) ([]model.Location, error) {
	if limit <= 0 {
		limit = s.maxCandidates
	}
	frag := normalize.Fold(fragment)

	var (
		rows pgx.Rows
		err  error
	)
	if frag == "" {
		rows, err = s.pool.Query(ctx, pgAllLocationsLimited, limit)
	} else {
		rows, err = s.pool.Query(ctx, pgFindLocations, "%"+escapeLike(frag)+"%", frag, TrigramThreshold, limit)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find locations")
	}
	locs, err := collectLocations(rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find locations")
	}
	zap.L().Debug("postgres: fragment search",
		zap.String("fragment", frag),
		zap.Int("results", len(locs)),
	)
	return locs, nil
}

// GetLocation implements LocationReader.
func (s *PostgresStore) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	l, err := scanLocation(s.pool.QueryRow(ctx, pgGetLocation, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get location %s", id)
	}
	return &l, nil
}

// GetTenants implements LocationReader.
func (s *PostgresStore) GetTenants(ctx context.Context, locationID string) ([]model.Tenant, error) {
	rows, err := s.pool.Query(ctx, pgGetTenants, locationID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get tenants %s", locationID)
	}
	defer rows.Close()

	out := []model.Tenant{}
	for rows.Next() {
		var r tenantRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan tenant for %s", locationID)
		}
		out = append(out, r.model())
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: get tenants %s", locationID)
	}
	return out, nil
}

// ListLocations implements LocationReader.
func (s *PostgresStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.pool.Query(ctx, pgListLocations)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	locs, err := collectLocations(rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	return locs, nil
}

func collectLocations(rows pgx.Rows) ([]model.Location, error) {
	defer rows.Close()
	out := []model.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Seed upserts the fixture's categories, locations and tenants.
func (s *PostgresStore) Seed(ctx context.Context, f *Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := s.seedCategories(ctx, fixtureCategories(f)); err != nil {
		return err
	}

	locRows := make([][]any, len(f.Locations))
	for i, l := range f.Locations {
		locRows[i] = locationValues(l)
	}
	if err := s.upsert(ctx, db.UpsertConfig{Table: "locations", Columns: locationColumns, ConflictKeys: []string{"id"}}, locRows); err != nil {
		return err
	}

	tenantRows := make([][]any, len(f.Tenants))
	for i, t := range f.Tenants {
		tenantRows[i] = tenantValues(t)
	}
	return s.upsert(ctx, db.UpsertConfig{Table: "tenants", Columns: tenantColumns, ConflictKeys: []string{"id"}}, tenantRows)
}

// seedCategories upserts one tier at a time so every parent row exists
// before the rows referencing it.
func (s *PostgresStore) seedCategories(ctx context.Context, cats []categoryRow) error {
	cfg := db.UpsertConfig{Table: "categories", Columns: categoryColumns, ConflictKeys: []string{"id"}}
	var batch [][]any
	for i, c := range cats {
		batch = append(batch, c.values())
		if i == len(cats)-1 || cats[i+1].Tier != c.Tier {
			if err := s.upsert(ctx, cfg, batch); err != nil {
				return err
			}
			batch = nil
		}
	}
	return nil
}

func (s *PostgresStore) upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) error {
	res, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: seed %s", cfg.Table)
	}
	zap.L().Info("postgres: seeded",
		zap.String("table", cfg.Table),
		zap.Int64("staged", res.Staged),
		zap.Int64("written", res.Written),
	)
	return nil
}
