package geo

import (
	"context"
	"math"
	"runtime"

	cgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

const defaultChunkSize = 512

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithConcurrency bounds the number of chunks mapped at once.
func WithConcurrency(n int) MapperOption {
	return func(m *Mapper) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithChunkSize sets the number of edges handled per goroutine.
func WithChunkSize(n int) MapperOption {
	return func(m *Mapper) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// Mapper assigns network edges to the grid cell containing their centroid.
type Mapper struct {
	index       *CellIndex
	concurrency int
	chunkSize   int
}

// NewMapper indexes cells for edge association.
func NewMapper(cells []model.HexCell, opts ...MapperOption) *Mapper {
	m := &Mapper{
		index:       NewCellIndex(cells),
		concurrency: runtime.GOMAXPROCS(0),
		chunkSize:   defaultChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AssociateResult holds one assignment per input edge, in input order.
type AssociateResult struct {
	Assignments []model.EdgeCellAssignment
	Unmapped    int
}

// Associate assigns every edge to the cell strictly containing its
// length-weighted centroid. Edges whose centroid falls in no cell, or on a
// cell boundary, get a nil cell.
func (m *Mapper) Associate(ctx context.Context, edges []model.NetworkEdge) (*AssociateResult, error) {
	out := make([]model.EdgeCellAssignment, len(edges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for start := 0; start < len(edges); start += m.chunkSize {
		end := min(start+m.chunkSize, len(edges))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				a, err := m.assign(edges[i])
				if err != nil {
					return err
				}
				out[i] = a
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "geo: associate edges")
	}

	res := &AssociateResult{Assignments: out}
	for _, a := range out {
		if !a.Assigned() {
			res.Unmapped++
		}
	}
	zap.L().With(zap.String("component", "associate")).Info("edges associated",
		zap.Int("edges", len(edges)),
		zap.Int("cells", m.index.Len()),
		zap.Int("unmapped", res.Unmapped),
	)
	return res, nil
}

func (m *Mapper) assign(e model.NetworkEdge) (model.EdgeCellAssignment, error) {
	c, err := EdgeCentroid(e)
	if err != nil {
		return model.EdgeCellAssignment{}, err
	}
	a := model.EdgeCellAssignment{EdgeID: e.ID}
	if id, ok := m.index.Locate(cgeom.Point{X: c[0], Y: c[1]}); ok {
		a.CellID = &id
	}
	return a, nil
}

// EdgeCentroid returns the length-weighted centroid of an edge. An edge with
// zero total length falls back to the mean of its vertices.
func EdgeCentroid(e model.NetworkEdge) (geom.Coord, error) {
	g := e.Geometry
	if g == nil || g.Empty() {
		return nil, model.NewInputError("edge "+e.ID, eris.New("empty geometry"))
	}
	if err := checkFinite(g.FlatCoords()); err != nil {
		return nil, model.NewInputError("edge "+e.ID, err)
	}
	if g.Length() > 0 {
		c := xy.MultiLineCentroid(g)
		if !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
			return geom.Coord{c[0], c[1]}, nil
		}
	}
	flat, stride := g.FlatCoords(), g.Stride()
	var sx, sy float64
	n := 0
	for i := 0; i+1 < len(flat); i += stride {
		sx += flat[i]
		sy += flat[i+1]
		n++
	}
	return geom.Coord{sx / float64(n), sy / float64(n)}, nil
}
