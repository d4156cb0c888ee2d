// Package store persists classified grids and panels keyed by run id.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for pipeline artifacts.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Artifacts
	SaveGrid(ctx context.Context, runID string, srid int, cells []model.HexCell) error
	LoadGrid(ctx context.Context, runID string) ([]model.HexCell, error)
	SavePanel(ctx context.Context, runID string, rows []model.PanelRow) error
	LoadPanel(ctx context.Context, runID string) ([]model.PanelRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a Store for the named driver: "sqlite" takes a file path,
// "postgres" a connection string.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}

// unitType converts a stored unit_type value, rejecting unknown labels.
func unitType(s string) (model.UnitType, error) {
	u := model.UnitType(s)
	if !u.Valid() {
		return "", eris.Errorf("store: unknown unit type %q", s)
	}
	return u, nil
}
