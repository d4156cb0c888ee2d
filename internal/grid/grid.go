// Package grid generates the flat-top hexagonal analysis grid.
package grid

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// marginCells pads the lattice range on each side of the center.
const marginCells = 2

// Bounds is an axis-aligned box in the grid coordinate system.
type Bounds struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// BoundsOf returns the extent of b.
func BoundsOf(b *geom.Bounds) Bounds {
	return Bounds{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
}

// Expand returns b grown by d on every side.
func (b Bounds) Expand(d float64) Bounds {
	return Bounds{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Contains reports whether (x, y) lies in b, edges included.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

func (b Bounds) validate() error {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.NewInputError("bounds", eris.New("non-finite coordinate"))
		}
	}
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return model.NewInputError("bounds", eris.Errorf("inverted bounds %+v", b))
	}
	return nil
}

// Spec holds the generator inputs. Center and Bounds are in the grid
// coordinate system and Radius is in its distance units.
type Spec struct {
	Center geom.Coord
	Bounds Bounds
	Radius float64
}

// Spacing returns the horizontal and vertical lattice spacing for radius r.
func Spacing(r float64) (dx, dy float64) {
	return 1.5 * r, r * math.Sqrt(3)
}

// Generate tiles spec.Bounds with flat-top hexagons on an offset lattice
// anchored at spec.Center. A lattice cell is kept when its center lies
// within Radius of the bounds. Cells are numbered from 0 in column-major
// order, ascending row within a column.
func Generate(spec Spec) ([]model.HexCell, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	r := spec.Radius
	cx, cy := spec.Center[0], spec.Center[1]
	dx, dy := Spacing(r)
	b := spec.Bounds

	cols := span(cx, b.MinX, b.MaxX, dx)
	rows := span(cy, b.MinY, b.MaxY, dy)
	accept := b.Expand(r)

	var cells []model.HexCell
	for col := -cols; col <= cols; col++ {
		yOffset := 0.0
		if isOdd(col) {
			yOffset = dy / 2
		}
		for row := -rows; row <= rows; row++ {
			x := cx + float64(col)*dx
			y := cy + float64(row)*dy + yOffset
			if !accept.Contains(x, y) {
				continue
			}
			cells = append(cells, model.HexCell{
				ID:      len(cells),
				Center:  geom.Coord{x, y},
				Polygon: Hexagon(x, y, r),
			})
		}
	}

	zap.L().Debug("grid: generated cells",
		zap.Int("cells", len(cells)),
		zap.Int("lattice_cols", 2*cols+1),
		zap.Int("lattice_rows", 2*rows+1),
		zap.Float64("radius", r),
	)
	return cells, nil
}

// Hexagon returns the flat-top hexagon of radius r centered on (x, y). The
// ring starts at angle 0 and is closed by repeating the first vertex.
func Hexagon(x, y, r float64) *geom.Polygon {
	flat := make([]float64, 0, 14)
	for k := 0; k < 6; k++ {
		a := float64(k) * math.Pi / 3
		flat = append(flat, x+r*math.Cos(a), y+r*math.Sin(a))
	}
	flat = append(flat, flat[0], flat[1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// span returns the number of lattice steps needed on each side of center to
// reach the farther of lo and hi, plus the safety margin.
func span(center, lo, hi, step float64) int {
	d := math.Max(math.Abs(center-lo), math.Abs(hi-center))
	return int(math.Ceil(d/step)) + marginCells
}

// isOdd uses mathematical parity so that column -1 is odd.
func isOdd(n int) bool {
	return n&1 == 1
}

func (s Spec) validate() error {
	if math.IsNaN(s.Radius) || math.IsInf(s.Radius, 0) || s.Radius <= 0 {
		return model.NewInputError("radius", eris.Errorf("radius must be positive, got %v", s.Radius))
	}
	if len(s.Center) < 2 {
		return model.NewInputError("center", eris.New("center needs x and y"))
	}
	for _, v := range s.Center[:2] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.NewInputError("center", eris.New("non-finite coordinate"))
		}
	}
	return s.Bounds.validate()
}
