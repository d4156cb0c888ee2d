// Package pipeline runs the grid and panel stages end to end: load inputs,
// project them, generate and classify the grid, map edges, build the panel,
// then write and persist the artifacts.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/causalml-fall25/project-cbsobral/internal/artifact"
	"github.com/causalml-fall25/project-cbsobral/internal/config"
	"github.com/causalml-fall25/project-cbsobral/internal/counts"
	"github.com/causalml-fall25/project-cbsobral/internal/geo"
	"github.com/causalml-fall25/project-cbsobral/internal/grid"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
	"github.com/causalml-fall25/project-cbsobral/internal/network"
	"github.com/causalml-fall25/project-cbsobral/internal/panel"
	"github.com/causalml-fall25/project-cbsobral/internal/projection"
	"github.com/causalml-fall25/project-cbsobral/internal/store"
)

// Pipeline orchestrates the study preparation stages.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	proj  *projection.Projector
	now   func() time.Time
	newID func() string
}

// New creates a Pipeline. st may be nil, in which case nothing is persisted.
func New(cfg *config.Config, st store.Store) (*Pipeline, error) {
	pr, err := projection.New(projection.Geographic, cfg.Study.Projection)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: grid projection")
	}
	return &Pipeline{
		cfg:   cfg,
		store: st,
		proj:  pr,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

// Projector returns the lon/lat to grid CRS projection in use.
func (p *Pipeline) Projector() *projection.Projector { return p.proj }

// Result holds everything a run produced.
type Result struct {
	RunID     string
	Cells     []model.HexCell
	Summary   geo.Summary
	Distances []grid.CellDistances
	Mapping   *geo.AssociateResult
	Counts    *counts.Result
	Panel     *panel.Result
	Manifest  *artifact.Manifest
}

// stageFunc is one named step of a run.
type stageFunc func(ctx context.Context) error

// runStages executes stages in order, checking for cancellation between
// them and logging each duration.
func runStages(ctx context.Context, log *zap.Logger, names []string, stages []stageFunc) error {
	for i, fn := range stages {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "pipeline: cancelled before %s", names[i])
		}
		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Error("pipeline: stage failed", zap.String("stage", names[i]), zap.Error(err))
			return err
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", names[i]),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	return nil
}

// Grid generates and classifies the grid, writes the grid artifacts and
// persists the run.
func (p *Pipeline) Grid(ctx context.Context) (*Result, error) {
	return p.execute(ctx, false)
}

// Run executes every stage: grid, mapping and panel.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	return p.execute(ctx, true)
}

func (p *Pipeline) execute(ctx context.Context, withPanel bool) (*Result, error) {
	res := &Result{RunID: p.newID()}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", res.RunID))
	log.Info("pipeline: starting run", zap.Bool("panel", withPanel))

	var (
		inputs *studyInputs
		edges  []model.NetworkEdge
	)

	names := []string{"load", "project", "grid"}
	stages := []stageFunc{
		func(ctx context.Context) error {
			var err error
			edges, res.Counts, err = p.loadInputs(ctx, withPanel)
			return err
		},
		func(context.Context) error {
			var err error
			if inputs, err = p.studyInputs(); err != nil {
				return err
			}
			edges, err = p.proj.Edges(edges)
			return eris.Wrap(err, "pipeline: project edges")
		},
		func(context.Context) error {
			return p.buildGrid(res, edges, inputs)
		},
	}
	if withPanel {
		names = append(names, "map", "panel")
		stages = append(stages,
			func(ctx context.Context) error { return p.mapEdges(ctx, res, edges) },
			func(context.Context) error { return p.buildPanel(res) },
		)
	}
	names = append(names, "write", "persist")
	stages = append(stages,
		func(context.Context) error { return p.writeArtifacts(res, withPanel) },
		func(ctx context.Context) error { return p.persist(ctx, res, withPanel) },
	)

	if err := runStages(ctx, log, names, stages); err != nil {
		return nil, err
	}
	log.Info("pipeline: run complete",
		zap.Int("cells", len(res.Cells)),
		zap.Int("treated_id", res.Summary.TreatedID),
	)
	return res, nil
}

// Panel maps edges onto an existing grid and builds its panel. runID names
// the run the grid belongs to.
func (p *Pipeline) Panel(ctx context.Context, runID string, cells []model.HexCell) (*Result, error) {
	res := &Result{RunID: runID, Cells: cells, Summary: geo.Summarize(cells)}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID))
	log.Info("pipeline: building panel for existing grid", zap.Int("cells", len(cells)))

	if res.Summary.Treated != 1 {
		return nil, eris.Errorf("pipeline: grid has %d treated cells, want 1", res.Summary.Treated)
	}

	var edges []model.NetworkEdge
	names := []string{"load", "project", "map", "panel", "write", "persist"}
	stages := []stageFunc{
		func(ctx context.Context) error {
			var err error
			edges, res.Counts, err = p.loadInputs(ctx, true)
			return err
		},
		func(context.Context) error {
			var err error
			edges, err = p.proj.Edges(edges)
			return eris.Wrap(err, "pipeline: project edges")
		},
		func(ctx context.Context) error { return p.mapEdges(ctx, res, edges) },
		func(context.Context) error { return p.buildPanel(res) },
		func(context.Context) error { return p.writePanelArtifacts(res) },
		func(ctx context.Context) error { return p.persistPanel(ctx, res) },
	}
	if err := runStages(ctx, log, names, stages); err != nil {
		return nil, err
	}
	return res, nil
}

// loadInputs reads the network and, when requested, the count observations
// concurrently.
func (p *Pipeline) loadInputs(ctx context.Context, withCounts bool) ([]model.NetworkEdge, *counts.Result, error) {
	var (
		edges []model.NetworkEdge
		obs   *counts.Result
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edges, err = network.Load(p.cfg.Network.Path, network.Options{
			Format:  p.cfg.Network.Format,
			IDField: p.cfg.Network.IDField,
		})
		return err
	})
	if withCounts {
		g.Go(func() error {
			start, end, err := p.cfg.Counts.Window()
			if err != nil {
				return err
			}
			obs, err = counts.Load(gCtx, counts.Source{
				Path:   p.cfg.Counts.Path,
				Format: p.cfg.Counts.Format,
				Table:  p.cfg.Counts.Table,
				Window: counts.Window{Start: start, End: end},
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: load inputs")
	}
	return edges, obs, nil
}

func (p *Pipeline) buildGrid(res *Result, edges []model.NetworkEdge, in *studyInputs) error {
	bounds, err := networkBounds(edges)
	if err != nil {
		return err
	}
	cells, err := grid.Generate(grid.Spec{
		Center: in.treated,
		Bounds: bounds,
		Radius: p.cfg.Grid.Radius,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: generate grid")
	}
	res.Cells, res.Summary, err = geo.Classify(cells, in.treated, in.exclusion, p.cfg.Grid.Tolerance)
	if err != nil {
		return eris.Wrap(err, "pipeline: classify grid")
	}
	if len(in.landmarks) > 0 {
		res.Distances = grid.Distances(res.Cells, in.landmarks)
	}
	return nil
}

func (p *Pipeline) mapEdges(ctx context.Context, res *Result, edges []model.NetworkEdge) error {
	m := geo.NewMapper(res.Cells,
		geo.WithConcurrency(p.cfg.Pipeline.Concurrency),
		geo.WithChunkSize(p.cfg.Pipeline.ChunkSize),
	)
	out, err := m.Associate(ctx, edges)
	if err != nil {
		return err
	}
	res.Mapping = out
	return nil
}

func (p *Pipeline) buildPanel(res *Result) error {
	treatment, err := p.cfg.Study.Treatment()
	if err != nil {
		return err
	}
	out, err := panel.Build(res.Counts.Observations, res.Mapping.Assignments, res.Cells, panel.Options{
		Treatment:  treatment,
		PeriodDays: p.cfg.Study.PeriodDays,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: build panel")
	}
	res.Panel = out
	return nil
}

// LoadGrid returns the grid of a run in the grid CRS. A non-empty runID
// reads it from the store; otherwise the grid artifact and manifest in the
// output directory are used.
func (p *Pipeline) LoadGrid(ctx context.Context, runID string) (string, []model.HexCell, error) {
	if runID != "" {
		if p.store == nil {
			return "", nil, eris.New("pipeline: loading a run by id needs a store")
		}
		cells, err := p.store.LoadGrid(ctx, runID)
		if err != nil {
			return "", nil, eris.Wrapf(err, "pipeline: load grid for run %s", runID)
		}
		return runID, cells, nil
	}

	m, err := artifact.ReadManifest(p.path(FileManifest))
	if err != nil {
		return "", nil, err
	}
	cells, err := artifact.ReadGridFile(p.path(FileGrid))
	if err != nil {
		return "", nil, err
	}
	if m.Geographic {
		if cells, err = p.proj.Cells(cells); err != nil {
			return "", nil, eris.Wrap(err, "pipeline: project grid artifact")
		}
	}
	return m.RunID, cells, nil
}
