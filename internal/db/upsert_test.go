package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gridCfg = UpsertConfig{
	Table:   "grid_cells",
	Columns: []string{"run_id", "cell_id", "unit_type"},
	Keys:    []string{"run_id", "cell_id"},
	Scope:   []string{"run_id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	res, err := BulkUpsert(context.TODO(), nil, gridCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, UpsertResult{}, res)
}

func TestUpsertConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no columns", UpsertConfig{Table: "grid_cells", Keys: []string{"id"}}, "no columns specified"},
		{"no keys", UpsertConfig{Table: "grid_cells", Columns: []string{"id"}}, "no conflict keys specified"},
		{"key not a column", UpsertConfig{Table: "grid_cells", Columns: []string{"id"}, Keys: []string{"cell_id"}}, `"cell_id" is not in columns`},
		{"scope not a column", UpsertConfig{Table: "grid_cells", Columns: []string{"id"}, Keys: []string{"id"}, Scope: []string{"run_id"}}, `"run_id" is not in columns`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BulkUpsert(context.TODO(), nil, tt.cfg, [][]any{{1}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, gridCfg.validate())
}

func TestInsertSQL(t *testing.T) {
	got := insertSQL(gridCfg, "_stage_grid_cells")
	assert.Equal(t,
		`INSERT INTO "grid_cells" ("run_id", "cell_id", "unit_type") SELECT "run_id", "cell_id", "unit_type" FROM "_stage_grid_cells" ON CONFLICT ("run_id", "cell_id") DO UPDATE SET "unit_type" = EXCLUDED."unit_type"`,
		got)

	keysOnly := UpsertConfig{Table: "t", Columns: []string{"id"}, Keys: []string{"id"}}
	assert.Contains(t, insertSQL(keysOnly, "_stage_t"), "DO NOTHING")
}

func TestPruneSQL(t *testing.T) {
	got := pruneSQL(gridCfg, "_stage_grid_cells")
	assert.Equal(t,
		`DELETE FROM "grid_cells" AS t WHERE (t."run_id") IN (SELECT DISTINCT "run_id" FROM "_stage_grid_cells") AND NOT EXISTS (SELECT 1 FROM "_stage_grid_cells" AS s WHERE s."run_id" = t."run_id" AND s."cell_id" = t."cell_id")`,
		got)
}

func TestBulkUpsert_ReplacesPartition(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_grid_cells" \(LIKE "grid_cells"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_grid_cells"}, gridCfg.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "grid_cells" .* ON CONFLICT \("run_id", "cell_id"\) DO UPDATE SET "unit_type" = EXCLUDED."unit_type"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`DELETE FROM "grid_cells" AS t WHERE \(t."run_id"\) IN`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectCommit()
	mock.ExpectRollback()

	res, err := BulkUpsert(context.Background(), mock, gridCfg, [][]any{{"r", 0, "donor"}, {"r", 1, "treated"}})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Written: 2, Pruned: 7}, res)
}

func TestBulkUpsert_UnscopedSkipsPrune(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cfg := gridCfg
	cfg.Scope = nil

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_grid_cells"}, cfg.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "grid_cells"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	res, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{"r", 0, "donor"}})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Written: 1}, res)
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_grid_cells"}, gridCfg.Columns).
		WillReturnError(fmt.Errorf("boom"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, gridCfg, [][]any{{"r", 0, "donor"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into stage for grid_cells")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"grid_cells", `"grid_cells"`},
		{"hexpanel.grid_cells", `"hexpanel"."grid_cells"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"run_id", "cell_id", "period"`, quoteAndJoin([]string{"run_id", "cell_id", "period"}))
	assert.Equal(t, `t."run_id"`, prefixed("t.", []string{"run_id"}))
}
