package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, run *model.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) SaveGrid(ctx context.Context, runID string, srid int, cells []model.HexCell) error {
	return m.Called(ctx, runID, srid, cells).Error(0)
}

func (m *mockStore) LoadGrid(ctx context.Context, runID string) ([]model.HexCell, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HexCell), args.Error(1)
}

func (m *mockStore) SavePanel(ctx context.Context, runID string, rows []model.PanelRow) error {
	return m.Called(ctx, runID, rows).Error(0)
}

func (m *mockStore) LoadPanel(ctx context.Context, runID string) ([]model.PanelRow, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PanelRow), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
