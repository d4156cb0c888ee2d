package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/artifact"
	"github.com/causalml-fall25/project-cbsobral/internal/grid"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Artifact file names inside the output directory.
const (
	FileGrid      = "grid.geojson"
	FilePanel     = "panel.csv"
	FilePanelXLSX = "panel.xlsx"
	FileBPolys    = "bpolys.txt"
	FileDistances = "distances.csv"
	FileManifest  = "manifest.yaml"
)

func (p *Pipeline) path(name string) string {
	return filepath.Join(p.cfg.Output.Dir, name)
}

func (p *Pipeline) ensureDir() error {
	if err := os.MkdirAll(p.cfg.Output.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create output dir %s", p.cfg.Output.Dir)
	}
	return nil
}

// writeArtifacts writes the grid artifacts, the panel artifacts when built,
// and a fresh manifest.
func (p *Pipeline) writeArtifacts(res *Result, withPanel bool) error {
	if err := p.ensureDir(); err != nil {
		return err
	}

	geographic, err := p.proj.InverseCells(res.Cells)
	if err != nil {
		return eris.Wrap(err, "pipeline: grid to lon/lat")
	}
	gridCells := res.Cells
	if p.cfg.Output.Geographic {
		gridCells = geographic
	}

	m := p.newManifest(res)
	if err := artifact.WriteGridFile(p.path(FileGrid), gridCells); err != nil {
		return err
	}
	m.Artifacts["grid"] = p.path(FileGrid)

	if err := artifact.WriteBPolysFile(p.path(FileBPolys), geographic); err != nil {
		return err
	}
	m.Artifacts["bpolys"] = p.path(FileBPolys)

	if res.Distances != nil {
		landmarks := make([]grid.Landmark, 0, len(p.cfg.Features.Landmarks))
		for _, l := range p.cfg.Features.Landmarks {
			landmarks = append(landmarks, grid.Landmark{Name: l.Name})
		}
		if err := artifact.WriteDistancesFile(p.path(FileDistances), landmarks, res.Distances); err != nil {
			return err
		}
		m.Artifacts["distances"] = p.path(FileDistances)
	}

	if withPanel {
		if err := p.writePanelFiles(res, m); err != nil {
			return err
		}
	}

	res.Manifest = m
	return artifact.WriteManifest(p.path(FileManifest), m)
}

// writePanelArtifacts writes the panel artifacts for an existing grid and
// updates the manifest in the output directory, creating it if absent.
func (p *Pipeline) writePanelArtifacts(res *Result) error {
	if err := p.ensureDir(); err != nil {
		return err
	}

	m, err := artifact.ReadManifest(p.path(FileManifest))
	if err != nil || m.RunID != res.RunID {
		m = p.newManifest(res)
	}
	if m.Artifacts == nil {
		m.Artifacts = map[string]string{}
	}
	if m.Inputs == nil {
		m.Inputs = map[string]string{}
	}
	if err := p.writePanelFiles(res, m); err != nil {
		return err
	}

	res.Manifest = m
	return artifact.WriteManifest(p.path(FileManifest), m)
}

func (p *Pipeline) writePanelFiles(res *Result, m *artifact.Manifest) error {
	if err := artifact.WritePanelFile(p.path(FilePanel), res.Panel.Rows); err != nil {
		return err
	}
	m.Artifacts["panel"] = p.path(FilePanel)

	if p.cfg.Output.XLSX {
		if err := artifact.WritePanelXLSX(p.path(FilePanelXLSX), res.Panel.Rows); err != nil {
			return err
		}
		m.Artifacts["panel_xlsx"] = p.path(FilePanelXLSX)
	}

	m.Inputs["counts"] = p.cfg.Counts.Path
	m.Panel = panelStats(res)
	return nil
}

func (p *Pipeline) newManifest(res *Result) *artifact.Manifest {
	return &artifact.Manifest{
		RunID:      res.RunID,
		CreatedAt:  p.now(),
		Treatment:  p.cfg.Study.TreatmentDate,
		Radius:     p.cfg.Grid.Radius,
		CRS:        p.cfg.Study.Projection,
		Geographic: p.cfg.Output.Geographic,
		Inputs: map[string]string{
			"network": p.cfg.Network.Path,
		},
		Grid: artifact.GridStats{
			Cells:     len(res.Cells),
			TreatedID: res.Summary.TreatedID,
			Excluded:  res.Summary.Excluded,
			Donor:     res.Summary.Donor,
		},
		Artifacts: map[string]string{},
	}
}

func panelStats(res *Result) *artifact.PanelStats {
	s := &artifact.PanelStats{
		Edges:         len(res.Mapping.Assignments),
		UnmappedEdges: res.Mapping.Unmapped,
		Rows:          len(res.Panel.Rows),
		Dropped:       res.Panel.Dropped,
		ZeroFilled:    res.Panel.Filled,
		MinPeriod:     res.Panel.MinPeriod,
		MaxPeriod:     res.Panel.MaxPeriod,
	}
	if res.Counts != nil {
		s.Observations = len(res.Counts.Observations)
		s.OutOfWindow = res.Counts.OutOfWindow
	}
	return s
}

// persist saves the run, its grid and, when built, its panel.
func (p *Pipeline) persist(ctx context.Context, res *Result, withPanel bool) error {
	if p.store == nil {
		return nil
	}
	run := &model.Run{
		ID:            res.RunID,
		TreatmentDate: p.cfg.Study.TreatmentDate,
		Radius:        p.cfg.Grid.Radius,
		SRID:          p.cfg.Study.SRID,
		TreatedCellID: res.Summary.TreatedID,
		CreatedAt:     p.now(),
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return eris.Wrap(err, "pipeline: create run")
	}
	if err := p.store.SaveGrid(ctx, res.RunID, p.cfg.Study.SRID, res.Cells); err != nil {
		return eris.Wrap(err, "pipeline: save grid")
	}
	if withPanel {
		if err := p.store.SavePanel(ctx, res.RunID, res.Panel.Rows); err != nil {
			return eris.Wrap(err, "pipeline: save panel")
		}
	}
	zap.L().With(zap.String("component", "pipeline")).Info("pipeline: run persisted",
		zap.String("run_id", res.RunID),
		zap.Bool("panel", withPanel),
	)
	return nil
}

// persistPanel saves the panel of an already persisted run.
func (p *Pipeline) persistPanel(ctx context.Context, res *Result) error {
	if p.store == nil {
		return nil
	}
	if _, err := p.store.GetRun(ctx, res.RunID); err != nil {
		return eris.Wrapf(err, "pipeline: run %s", res.RunID)
	}
	if err := p.store.SavePanel(ctx, res.RunID, res.Panel.Rows); err != nil {
		return eris.Wrap(err, "pipeline: save panel")
	}
	return nil
}
