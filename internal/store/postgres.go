package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/db"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	gridColumns  = []string{"run_id", "cell_id", "center_x", "center_y", "unit_type", "geom"}
	panelColumns = []string{"run_id", "cell_id", "period", "value", "unit_type"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	treatment_date  TEXT NOT NULL,
	radius          DOUBLE PRECISION NOT NULL,
	srid            INTEGER NOT NULL,
	treated_cell_id INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grid_cells (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	cell_id   INTEGER NOT NULL,
	center_x  DOUBLE PRECISION NOT NULL,
	center_y  DOUBLE PRECISION NOT NULL,
	unit_type TEXT NOT NULL,
	geom      BYTEA NOT NULL,
	PRIMARY KEY (run_id, cell_id)
);

CREATE TABLE IF NOT EXISTS panel_rows (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	cell_id   INTEGER NOT NULL,
	period    INTEGER NOT NULL,
	value     BIGINT NOT NULL,
	unit_type TEXT NOT NULL,
	PRIMARY KEY (run_id, cell_id, period)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, treatment_date, radius, srid, treated_cell_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET treatment_date = EXCLUDED.treatment_date,
			radius = EXCLUDED.radius, srid = EXCLUDED.srid, treated_cell_id = EXCLUDED.treated_cell_id`,
		run.ID, run.TreatmentDate, run.Radius, run.SRID, run.TreatedCellID, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: create run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, treatment_date, radius, srid, treated_cell_id, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.TreatmentDate, &r.Radius, &r.SRID, &r.TreatedCellID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, treatment_date, radius, srid, treated_cell_id, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.TreatmentDate, &r.Radius, &r.SRID, &r.TreatedCellID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

// SaveGrid replaces the cells of a run: existing cells are updated in place
// and cells the new grid no longer has are removed.
func (s *PostgresStore) SaveGrid(ctx context.Context, runID string, srid int, cells []model.HexCell) error {
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		wkb, err := encodePolygon(c.Polygon, srid)
		if err != nil {
			return eris.Wrapf(err, "postgres: cell %d", c.ID)
		}
		rows = append(rows, []any{runID, c.ID, c.Center[0], c.Center[1], string(c.UnitType), wkb})
	}
	res, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:   "grid_cells",
		Columns: gridColumns,
		Keys:    []string{"run_id", "cell_id"},
		Scope:   []string{"run_id"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: save grid")
	}
	zap.L().Debug("postgres: grid saved",
		zap.String("run_id", runID),
		zap.Int64("written", res.Written),
		zap.Int64("pruned", res.Pruned),
	)
	return nil
}

func (s *PostgresStore) LoadGrid(ctx context.Context, runID string) ([]model.HexCell, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cell_id, center_x, center_y, unit_type, geom FROM grid_cells WHERE run_id = $1 ORDER BY cell_id`,
		runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load grid")
	}
	defer rows.Close()

	var cells []model.HexCell
	for rows.Next() {
		var (
			c    model.HexCell
			x, y float64
			ut   string
			wkb  []byte
		)
		if err := rows.Scan(&c.ID, &x, &y, &ut, &wkb); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cell")
		}
		if c.Polygon, err = decodePolygon(wkb); err != nil {
			return nil, eris.Wrapf(err, "postgres: cell %d", c.ID)
		}
		c.Center = geom.Coord{x, y}
		if c.UnitType, err = unitType(ut); err != nil {
			return nil, eris.Wrapf(err, "postgres: cell %d", c.ID)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate grid")
	}
	if len(cells) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: grid for run %s", runID)
	}
	return cells, nil
}

// SavePanel replaces the panel of a run using COPY.
func (s *PostgresStore) SavePanel(ctx context.Context, runID string, rows []model.PanelRow) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM panel_rows WHERE run_id = $1`, runID); err != nil {
		return eris.Wrap(err, "postgres: clear panel")
	}
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{runID, r.CellID, r.Period, r.Value, string(r.UnitType)}
	}
	_, err := db.CopyFrom(ctx, s.pool, "panel_rows", panelColumns, data)
	return eris.Wrap(err, "postgres: save panel")
}

func (s *PostgresStore) LoadPanel(ctx context.Context, runID string) ([]model.PanelRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cell_id, period, value, unit_type FROM panel_rows WHERE run_id = $1 ORDER BY cell_id, period`,
		runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load panel")
	}
	defer rows.Close()

	var out []model.PanelRow
	for rows.Next() {
		var (
			r  model.PanelRow
			ut string
		)
		if err := rows.Scan(&r.CellID, &r.Period, &r.Value, &ut); err != nil {
			return nil, eris.Wrap(err, "postgres: scan panel row")
		}
		if r.UnitType, err = unitType(ut); err != nil {
			return nil, eris.Wrapf(err, "postgres: panel row cell %d period %d", r.CellID, r.Period)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate panel")
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: panel for run %s", runID)
	}
	return out, nil
}
