package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	treatment_date  TEXT NOT NULL,
	radius          REAL NOT NULL,
	srid            INTEGER NOT NULL,
	treated_cell_id INTEGER NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS grid_cells (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	cell_id   INTEGER NOT NULL,
	center_x  REAL NOT NULL,
	center_y  REAL NOT NULL,
	unit_type TEXT NOT NULL,
	geom      BLOB NOT NULL,
	PRIMARY KEY (run_id, cell_id)
);

CREATE TABLE IF NOT EXISTS panel_rows (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	cell_id   INTEGER NOT NULL,
	period    INTEGER NOT NULL,
	value     INTEGER NOT NULL,
	unit_type TEXT NOT NULL,
	PRIMARY KEY (run_id, cell_id, period)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, treatment_date, radius, srid, treated_cell_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET treatment_date = excluded.treatment_date,
			radius = excluded.radius, srid = excluded.srid, treated_cell_id = excluded.treated_cell_id`,
		run.ID, run.TreatmentDate, run.Radius, run.SRID, run.TreatedCellID, run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: create run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, treatment_date, radius, srid, treated_cell_id, created_at FROM runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.TreatmentDate, &r.Radius, &r.SRID, &r.TreatedCellID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, treatment_date, radius, srid, treated_cell_id, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.TreatmentDate, &r.Radius, &r.SRID, &r.TreatedCellID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveGrid(ctx context.Context, runID string, srid int, cells []model.HexCell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save grid")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_cells WHERE run_id = ?`, runID); err != nil {
		return eris.Wrap(err, "sqlite: clear grid")
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO grid_cells (run_id, cell_id, center_x, center_y, unit_type, geom) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare grid insert")
	}
	defer stmt.Close()

	for _, c := range cells {
		wkb, err := encodePolygon(c.Polygon, srid)
		if err != nil {
			return eris.Wrapf(err, "sqlite: cell %d", c.ID)
		}
		if _, err := stmt.ExecContext(ctx, runID, c.ID, c.Center[0], c.Center[1], string(c.UnitType), wkb); err != nil {
			return eris.Wrapf(err, "sqlite: insert cell %d", c.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit grid")
}

func (s *SQLiteStore) LoadGrid(ctx context.Context, runID string) ([]model.HexCell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cell_id, center_x, center_y, unit_type, geom FROM grid_cells WHERE run_id = ? ORDER BY cell_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load grid")
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
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		if c.Polygon, err = decodePolygon(wkb); err != nil {
			return nil, eris.Wrapf(err, "sqlite: cell %d", c.ID)
		}
		c.Center = geom.Coord{x, y}
		if c.UnitType, err = unitType(ut); err != nil {
			return nil, eris.Wrapf(err, "sqlite: cell %d", c.ID)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate grid")
	}
	if len(cells) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: grid for run %s", runID)
	}
	return cells, nil
}

func (s *SQLiteStore) SavePanel(ctx context.Context, runID string, rows []model.PanelRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save panel")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM panel_rows WHERE run_id = ?`, runID); err != nil {
		return eris.Wrap(err, "sqlite: clear panel")
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO panel_rows (run_id, cell_id, period, value, unit_type) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare panel insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, r.CellID, r.Period, r.Value, string(r.UnitType)); err != nil {
			return eris.Wrapf(err, "sqlite: insert panel row (%d, %d)", r.CellID, r.Period)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit panel")
}

func (s *SQLiteStore) LoadPanel(ctx context.Context, runID string) ([]model.PanelRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cell_id, period, value, unit_type FROM panel_rows WHERE run_id = ? ORDER BY cell_id, period`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load panel")
	}
	defer rows.Close()

	var out []model.PanelRow
	for rows.Next() {
		var (
			r  model.PanelRow
			ut string
		)
		if err := rows.Scan(&r.CellID, &r.Period, &r.Value, &ut); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan panel row")
		}
		if r.UnitType, err = unitType(ut); err != nil {
			return nil, eris.Wrapf(err, "sqlite: panel row cell %d period %d", r.CellID, r.Period)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate panel")
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: panel for run %s", runID)
	}
	return out, nil
}
