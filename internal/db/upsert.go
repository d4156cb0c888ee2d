package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a keyed bulk write into one table.
type UpsertConfig struct {
	Table   string   // target table, optionally schema-qualified
	Columns []string // columns present in every row
	Keys    []string // unique key of the table, e.g. run_id + cell_id

	// Scope lists key columns that partition the table (run_id for grid
	// cells). When set, rows of every partition present in the batch that
	// the batch does not contain are deleted, so the batch replaces the
	// partition. Empty means rows are only inserted or updated.
	Scope []string
}

// UpsertResult reports what a BulkUpsert changed.
type UpsertResult struct {
	Written int64 // rows inserted or updated
	Pruned  int64 // stale rows removed from scoped partitions
}

func (cfg UpsertConfig) validate() error {
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.Keys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	cols := make(map[string]bool, len(cfg.Columns))
	for _, c := range cfg.Columns {
		cols[c] = true
	}
	for _, k := range append(append([]string{}, cfg.Keys...), cfg.Scope...) {
		if !cols[k] {
			return eris.Errorf("db: upsert: key column %q is not in columns", k)
		}
	}
	return nil
}

// stagingTable names the temp table a batch for table is copied into.
func stagingTable(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

// insertSQL moves staged rows into the target, updating every non-key
// column on conflict.
func insertSQL(cfg UpsertConfig, stage string) string {
	keys := make(map[string]bool, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys[k] = true
	}
	var set []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			q := pgx.Identifier{c}.Sanitize()
			set = append(set, q+" = EXCLUDED."+q)
		}
	}
	action := "DO NOTHING"
	if len(set) > 0 {
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	cols := quoteAndJoin(cfg.Columns)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table), cols, cols, pgx.Identifier{stage}.Sanitize(), quoteAndJoin(cfg.Keys), action)
}

// pruneSQL deletes rows of the staged partitions whose key is absent from
// the stage.
func pruneSQL(cfg UpsertConfig, stage string) string {
	st := pgx.Identifier{stage}.Sanitize()
	var keyMatch []string
	for _, k := range cfg.Keys {
		q := pgx.Identifier{k}.Sanitize()
		keyMatch = append(keyMatch, "s."+q+" = t."+q)
	}
	scope := quoteAndJoin(cfg.Scope)
	return fmt.Sprintf("DELETE FROM %s AS t WHERE (%s) IN (SELECT DISTINCT %s FROM %s) AND NOT EXISTS (SELECT 1 FROM %s AS s WHERE %s)",
		sanitizeTable(cfg.Table), prefixed("t.", cfg.Scope), scope, st, st, strings.Join(keyMatch, " AND "))
}

// BulkUpsert writes rows in one transaction: COPY into a temp staging
// table, INSERT ... ON CONFLICT into the target, then prune stale rows of
// the scoped partitions.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (UpsertResult, error) {
	var res UpsertResult
	if len(rows) == 0 {
		return res, nil
	}
	if err := cfg.validate(); err != nil {
		return res, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stage := stagingTable(cfg.Table)
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return res, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return res, eris.Wrapf(err, "db: upsert: COPY into stage for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, insertSQL(cfg, stage))
	if err != nil {
		return res, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}
	res.Written = tag.RowsAffected()

	if len(cfg.Scope) > 0 {
		tag, err := tx.Exec(ctx, pruneSQL(cfg, stage))
		if err != nil {
			return res, eris.Wrapf(err, "db: upsert: prune %s", cfg.Table)
		}
		res.Pruned = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return res, eris.Wrap(err, "db: upsert: commit tx")
	}
	return res, nil
}

// sanitizeTable quotes a possibly schema-qualified table name.
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	return prefixed("", cols)
}

func prefixed(prefix string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = prefix + pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
