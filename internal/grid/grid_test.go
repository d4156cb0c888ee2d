package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// threeByThree is a spec whose center filter admits exactly three cells in
// each of the columns -1, 0 and 1.
func threeByThree() Spec {
	cx, cy := 1000.0, 2000.0
	return Spec{
		Center: geom.Coord{cx, cy},
		Bounds: Bounds{MinX: cx - 750, MinY: cy - 500, MaxX: cx + 750, MaxY: cy + 900},
		Radius: 500,
	}
}

func TestGenerate_NineCells(t *testing.T) {
	cells, err := Generate(threeByThree())
	require.NoError(t, err)
	require.Len(t, cells, 9)

	dx, dy := Spacing(500)
	want := []geom.Coord{
		{1000 - dx, 2000 - dy/2}, {1000 - dx, 2000 + dy/2}, {1000 - dx, 2000 + 3*dy/2},
		{1000, 2000 - dy}, {1000, 2000}, {1000, 2000 + dy},
		{1000 + dx, 2000 - dy/2}, {1000 + dx, 2000 + dy/2}, {1000 + dx, 2000 + 3*dy/2},
	}
	for i, c := range cells {
		assert.Equal(t, i, c.ID)
		assert.InDelta(t, want[i][0], c.Center[0], 1e-9, "cell %d x", i)
		assert.InDelta(t, want[i][1], c.Center[1], 1e-9, "cell %d y", i)
	}
	assert.Equal(t, geom.Coord{1000, 2000}, cells[4].Center)
}

func TestGenerate_Deterministic(t *testing.T) {
	spec := Spec{
		Center: geom.Coord{1490350.2, 6894023.7},
		Bounds: Bounds{MinX: 1480000, MinY: 6885000, MaxX: 1502000, MaxY: 6901000},
		Radius: 500,
	}
	a, err := Generate(spec)
	require.NoError(t, err)
	b, err := Generate(spec)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].Center, b[i].Center)
		assert.Equal(t, a[i].Polygon.FlatCoords(), b[i].Polygon.FlatCoords())
	}
}

func TestGenerate_Coverage(t *testing.T) {
	specs := []Spec{
		threeByThree(),
		{Center: geom.Coord{0, 0}, Bounds: Bounds{MinX: -3000, MinY: -1000, MaxX: 2500, MaxY: 4200}, Radius: 350},
		// Center outside the bounds.
		{Center: geom.Coord{-5000, 100}, Bounds: Bounds{MinX: 0, MinY: 0, MaxX: 2000, MaxY: 1000}, Radius: 250},
	}

	for _, spec := range specs {
		cells, err := Generate(spec)
		require.NoError(t, err)
		require.NotEmpty(t, cells)

		b := spec.Bounds
		const steps = 40
		for i := 0; i <= steps; i++ {
			for j := 0; j <= steps; j++ {
				x := b.MinX + (b.MaxX-b.MinX)*float64(i)/steps
				y := b.MinY + (b.MaxY-b.MinY)*float64(j)/steps
				best := math.Inf(1)
				for _, c := range cells {
					best = math.Min(best, math.Hypot(x-c.Center[0], y-c.Center[1]))
				}
				assert.LessOrEqual(t, best, spec.Radius+1e-9, "point (%v, %v) not covered", x, y)
			}
		}
	}
}

func TestGenerate_NoCellOutsideExpandedBounds(t *testing.T) {
	spec := Spec{Center: geom.Coord{0, 0}, Bounds: Bounds{MinX: -2000, MinY: -2000, MaxX: 2000, MaxY: 2000}, Radius: 400}
	cells, err := Generate(spec)
	require.NoError(t, err)

	outer := spec.Bounds.Expand(spec.Radius)
	for _, c := range cells {
		assert.True(t, outer.Contains(c.Center[0], c.Center[1]), "cell %d center outside", c.ID)
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	base := threeByThree()
	tests := []struct {
		name   string
		mutate func(*Spec)
		record string
	}{
		{"zero radius", func(s *Spec) { s.Radius = 0 }, "radius"},
		{"negative radius", func(s *Spec) { s.Radius = -5 }, "radius"},
		{"nan radius", func(s *Spec) { s.Radius = math.NaN() }, "radius"},
		{"nan center", func(s *Spec) { s.Center = geom.Coord{math.NaN(), 0} }, "center"},
		{"missing center", func(s *Spec) { s.Center = nil }, "center"},
		{"inf bounds", func(s *Spec) { s.Bounds.MaxX = math.Inf(1) }, "bounds"},
		{"inverted bounds", func(s *Spec) { s.Bounds.MinX, s.Bounds.MaxX = s.Bounds.MaxX, s.Bounds.MinX }, "bounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			spec.Center = append(geom.Coord(nil), base.Center...)
			tt.mutate(&spec)
			_, err := Generate(spec)
			require.Error(t, err)
			var ie *model.InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.record, ie.Record)
		})
	}
}

func TestHexagon_Shape(t *testing.T) {
	p := Hexagon(10, 20, 100)
	coords := p.LinearRing(0).Coords()
	require.Len(t, coords, 7)
	assert.Equal(t, coords[0], coords[6])

	// Flat-top: first vertex on the positive x axis, second at 60 degrees.
	assert.InDelta(t, 110, coords[0][0], 1e-9)
	assert.InDelta(t, 20, coords[0][1], 1e-9)
	assert.InDelta(t, 60, coords[1][0], 1e-9)
	assert.InDelta(t, 20+100*math.Sqrt(3)/2, coords[1][1], 1e-9)
	for _, c := range coords {
		assert.InDelta(t, 100, math.Hypot(c[0]-10, c[1]-20), 1e-9)
	}
}

func TestIsOdd(t *testing.T) {
	assert.True(t, isOdd(-1))
	assert.True(t, isOdd(3))
	assert.False(t, isOdd(-2))
	assert.False(t, isOdd(0))
}

func TestSpan(t *testing.T) {
	// 750 / 750 = 1 step, plus the margin.
	assert.Equal(t, 3, span(0, -750, 750, 750))
	assert.Equal(t, 4, span(0, -751, 10, 750))
	assert.Equal(t, 2, span(5, 5, 5, 750))
}
