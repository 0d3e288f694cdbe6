package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes one keyed bulk write.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified ("gapcore.tenants")
	Columns      []string // every column carried by each row, in row order
	ConflictKeys []string // unique key; must be a subset of Columns
	UpdateCols   []string // columns rewritten on conflict; nil means every non-key column
}

// UpsertResult counts what a BulkUpsert did.
type UpsertResult struct {
	// Staged is the number of rows copied into the staging table.
	Staged int64
	// Written is the number of target rows inserted or changed. Rows whose
	// values already match are left alone and not counted.
	Written int64
}

// validate checks the config against the rows and returns the columns to
// rewrite on conflict.
func (c UpsertConfig) validate(rows [][]any) ([]string, error) {
	if strings.TrimSpace(c.Table) == "" {
		return nil, eris.New("db: upsert: no table specified")
	}
	if len(c.Columns) == 0 {
		return nil, eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return nil, eris.New("db: upsert: no conflict keys specified")
	}

	cols := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		cols[col] = true
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		if !cols[k] {
			return nil, eris.Errorf("db: upsert: conflict key %q is not a column of %s", k, c.Table)
		}
		keys[k] = true
	}

	for i, r := range rows {
		if len(r) != len(c.Columns) {
			return nil, eris.Errorf("db: upsert: row %d of %s has %d values, want %d", i, c.Table, len(r), len(c.Columns))
		}
	}

	if c.UpdateCols != nil {
		for _, u := range c.UpdateCols {
			if !cols[u] || keys[u] {
				return nil, eris.Errorf("db: upsert: update column %q must be a non-key column of %s", u, c.Table)
			}
		}
		return c.UpdateCols, nil
	}
	var update []string
	for _, col := range c.Columns {
		if !keys[col] {
			update = append(update, col)
		}
	}
	return update, nil
}

// stagingTable names the per-transaction table rows are copied into.
func stagingTable(table string) string {
	return "_seed_" + strings.ReplaceAll(table, ".", "_")
}

// upsertSQL moves staged rows into the target. Conflicting rows are only
// rewritten when at least one update column differs, so re-seeding the same
// data writes nothing.
func upsertSQL(cfg UpsertConfig, staging string, update []string) string {
	cols := quoteAndJoin(cfg.Columns)
	insert := fmt.Sprintf("INSERT INTO %s AS t (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		sanitizeTable(cfg.Table), cols, cols,
		pgx.Identifier{staging}.Sanitize(), quoteAndJoin(cfg.ConflictKeys))
	if len(update) == 0 {
		return insert + " DO NOTHING"
	}

	set := make([]string, len(update))
	current := make([]string, len(update))
	incoming := make([]string, len(update))
	for i, col := range update {
		q := pgx.Identifier{col}.Sanitize()
		set[i] = q + " = EXCLUDED." + q
		current[i] = "t." + q
		incoming[i] = "EXCLUDED." + q
	}
	return fmt.Sprintf("%s DO UPDATE SET %s WHERE (%s) IS DISTINCT FROM (%s)",
		insert, strings.Join(set, ", "), strings.Join(current, ", "), strings.Join(incoming, ", "))
}

// BulkUpsert writes rows in one transaction: the rows are COPYed into a
// temporary staging table shaped like the target, then merged with
// INSERT ... ON CONFLICT. The staging table is dropped on commit.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (UpsertResult, error) {
	if len(rows) == 0 {
		return UpsertResult{}, nil
	}
	update, err := cfg.validate(rows)
	if err != nil {
		return UpsertResult{}, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return UpsertResult{}, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := stagingTable(cfg.Table)
	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return UpsertResult{}, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}

	staged, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, cfg.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return UpsertResult{}, eris.Wrapf(err, "db: upsert: copy rows for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, upsertSQL(cfg, staging, update))
	if err != nil {
		return UpsertResult{}, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, eris.Wrap(err, "db: upsert: commit tx")
	}
	return UpsertResult{Staged: staged, Written: tag.RowsAffected()}, nil
}

// sanitizeTable quotes a possibly schema-qualified table name.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
