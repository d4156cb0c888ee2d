package projection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

const earthRadius = 6378137.0

func mercator(lon, lat float64) (float64, float64) {
	x := earthRadius * lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

func newProjector(t *testing.T) *Projector {
	t.Helper()
	p, err := New(Geographic, WebMercator)
	require.NoError(t, err)
	return p
}

func TestPoint_WebMercator(t *testing.T) {
	p := newProjector(t)
	got, err := p.Point(geom.Coord{13.388860, 52.517037})
	require.NoError(t, err)

	wx, wy := mercator(13.388860, 52.517037)
	assert.InDelta(t, wx, got[0], 1e-3)
	assert.InDelta(t, wy, got[1], 1e-3)
}

func TestPoint_RoundTrip(t *testing.T) {
	p := newProjector(t)
	in := geom.Coord{13.307318, 52.504083}
	fwd, err := p.Point(in)
	require.NoError(t, err)
	back, err := p.InversePoint(fwd)
	require.NoError(t, err)
	assert.InDelta(t, in[0], back[0], 1e-9)
	assert.InDelta(t, in[1], back[1], 1e-9)
}

func TestPolygon_PreservesRings(t *testing.T) {
	p := newProjector(t)
	box := BBox(13.307318, 52.504083, 13.3315946, 52.5073198)
	got, err := p.Polygon(box)
	require.NoError(t, err)

	assert.Equal(t, box.Ends(), got.Ends())
	assert.Equal(t, box.Layout(), got.Layout())
	minx, miny := mercator(13.307318, 52.504083)
	assert.InDelta(t, minx, got.FlatCoords()[0], 1e-3)
	assert.InDelta(t, miny, got.FlatCoords()[1], 1e-3)
	// Input is left untouched.
	assert.Equal(t, 13.307318, box.FlatCoords()[0])
}

func TestEdgesAndInverseCells(t *testing.T) {
	p := newProjector(t)
	edges := []model.NetworkEdge{
		{ID: "a", Geometry: geom.NewMultiLineStringFlat(geom.XY, []float64{13.3, 52.5, 13.31, 52.51}, []int{4})},
		{ID: "b"},
	}
	out, err := p.Edges(edges)
	require.NoError(t, err)
	x, _ := mercator(13.3, 52.5)
	assert.InDelta(t, x, out[0].Geometry.FlatCoords()[0], 1e-3)
	assert.Nil(t, out[1].Geometry)

	center, err := p.Point(geom.Coord{13.3, 52.5})
	require.NoError(t, err)
	cells := []model.HexCell{{ID: 7, Center: center, Polygon: BBox(center[0]-10, center[1]-10, center[0]+10, center[1]+10)}}
	back, err := p.InverseCells(cells)
	require.NoError(t, err)
	assert.InDelta(t, 13.3, back[0].Center[0], 1e-9)
	assert.InDelta(t, 52.5, back[0].Center[1], 1e-9)
	assert.Equal(t, 7, back[0].ID)
	assert.Less(t, back[0].Polygon.FlatCoords()[0], 13.3)

	again, err := p.Cells(back)
	require.NoError(t, err)
	assert.InDelta(t, center[0], again[0].Center[0], 1e-6)
	assert.InDelta(t, center[1]-10, again[0].Polygon.FlatCoords()[1], 1e-6)
	// Cells leaves its input alone.
	assert.InDelta(t, 13.3, back[0].Center[0], 1e-9)
}

func TestCentroid(t *testing.T) {
	c, err := Centroid(BBox(0, 0, 4, 2))
	require.NoError(t, err)
	assert.InDelta(t, 2, c[0], 1e-12)
	assert.InDelta(t, 1, c[1], 1e-12)

	_, err = Centroid(geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 1, 2, 2, 0, 0}, []int{8}))
	assert.Error(t, err)
}

func TestNew_InvalidProjection(t *testing.T) {
	_, err := New("not a projection", WebMercator)
	assert.Error(t, err)
}
