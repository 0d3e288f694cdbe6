package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite. SQLite has no
// Unicode-aware lower(), so a folded copy of each name is stored at seed
// time and fragment search matches against it.
type SQLiteStore struct {
	db            *sql.DB
	maxCandidates int
}

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Seeder = (*SQLiteStore)(nil)
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, maxCandidates int) (*SQLiteStore, error) {
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
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &SQLiteStore{db: db, maxCandidates: maxCandidates}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS locations (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	name_folded      TEXT NOT NULL DEFAULT '',
	type             TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	county           TEXT NOT NULL DEFAULT '',
	postcode         TEXT NOT NULL DEFAULT '',
	latitude         REAL,
	longitude        REAL,
	website          TEXT,
	phone            TEXT,
	instagram        TEXT,
	facebook         TEXT,
	tiktok           TEXT,
	youtube          TEXT,
	twitter          TEXT,
	parking_spaces   INTEGER,
	opened_year      INTEGER,
	total_floor_area REAL,
	number_of_stores INTEGER,
	owner            TEXT,
	management       TEXT,
	footfall         INTEGER,
	google_rating    REAL,
	google_reviews   INTEGER,
	population       INTEGER,
	median_age       REAL
);

CREATE INDEX IF NOT EXISTS idx_locations_name_folded ON locations(name_folded);

CREATE TABLE IF NOT EXISTS categories (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	tier      INTEGER NOT NULL,
	parent_id TEXT REFERENCES categories(id)
);

CREATE TABLE IF NOT EXISTS tenants (
	id          TEXT PRIMARY KEY,
	location_id TEXT NOT NULL REFERENCES locations(id),
	name        TEXT NOT NULL,
	category    TEXT,
	category_id TEXT REFERENCES categories(id),
	is_anchor   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tenants_location_id ON tenants(location_id);
`

var (
	sqliteFindLocations = fmt.Sprintf(`SELECT %s FROM locations
WHERE name_folded LIKE ? ESCAPE '\'
ORDER BY name, id
LIMIT ?`, selectList("", locationColumns))

	sqliteGetLocation = fmt.Sprintf(`SELECT %s FROM locations WHERE id = ?`, selectList("", locationColumns))

	sqliteListLocations = fmt.Sprintf(`SELECT %s FROM locations ORDER BY name, id`, selectList("", locationColumns))

	sqliteGetTenants = `SELECT t.id, t.location_id, t.name, t.category, t.is_anchor,
	c.id, c.name, c.tier, p.name
FROM tenants t
LEFT JOIN categories c ON c.id = t.category_id
LEFT JOIN categories p ON p.id = c.parent_id
WHERE t.location_id = ?
ORDER BY t.name, t.id`
)

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindLocationsByNameFragment implements LocationReader.
func (s *SQLiteStore) FindLocationsByNameFragment(ctx context.Context, fragment string, limit int) ([]model.Location, error) {
	if limit <= 0 {
		limit = s.maxCandidates
	}
	pattern := "%" + escapeLike(normalize.Fold(fragment)) + "%"

	rows, err := s.db.QueryContext(ctx, sqliteFindLocations, pattern, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find locations")
	}
	locs, err := collectSQLLocations(rows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find locations")
	}
	return locs, nil
}

// GetLocation implements LocationReader.
func (s *SQLiteStore) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, sqliteGetLocation, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get location %s", id)
	}
	return &l, nil
}

// GetTenants implements LocationReader.
func (s *SQLiteStore) GetTenants(ctx context.Context, locationID string) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, sqliteGetTenants, locationID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tenants %s", locationID)
	}
	defer rows.Close()

	out := []model.Tenant{}
	for rows.Next() {
		var r tenantRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan tenant for %s", locationID)
		}
		out = append(out, r.model())
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tenants %s", locationID)
	}
	return out, nil
}

// ListLocations implements LocationReader.
func (s *SQLiteStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListLocations)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	locs, err := collectSQLLocations(rows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	return locs, nil
}

func collectSQLLocations(rows *sql.Rows) ([]model.Location, error) {
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

// Seed upserts the fixture in a single transaction.
func (s *SQLiteStore) Seed(ctx context.Context, f *Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	cats := fixtureCategories(f)
	catSQL := upsertSQL("categories", categoryColumns)
	for _, c := range cats {
		if _, err := tx.ExecContext(ctx, catSQL, c.values()...); err != nil {
			return eris.Wrapf(err, "sqlite: seed category %s", c.ID)
		}
	}

	locCols := append(append([]string{}, locationColumns...), "name_folded")
	locSQL := upsertSQL("locations", locCols)
	for _, l := range f.Locations {
		args := append(locationValues(l), normalize.Fold(l.Name))
		if _, err := tx.ExecContext(ctx, locSQL, args...); err != nil {
			return eris.Wrapf(err, "sqlite: seed location %s", l.ID)
		}
	}

	tenantSQL := upsertSQL("tenants", tenantColumns)
	for _, t := range f.Tenants {
		if _, err := tx.ExecContext(ctx, tenantSQL, tenantValues(t)...); err != nil {
			return eris.Wrapf(err, "sqlite: seed tenant %s", t.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: seed: commit")
	}
	zap.L().Info("sqlite: seeded",
		zap.Int("categories", len(cats)),
		zap.Int("locations", len(f.Locations)),
		zap.Int("tenants", len(f.Tenants)),
	)
	return nil
}

// upsertSQL builds INSERT ... ON CONFLICT(id) DO UPDATE for the columns.
func upsertSQL(table string, cols []string) string {
	placeholders := make([]string, len(cols))
	var sets []string
	for i, c := range cols {
		placeholders[i] = "?"
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))
}
