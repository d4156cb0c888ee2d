package grid

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Landmark is a named reference location in the grid coordinate system.
type Landmark struct {
	Name  string
	Point geom.Coord
}

// CellDistances holds the distance from one cell center to each landmark,
// keyed by landmark name.
type CellDistances struct {
	CellID    int
	Distances map[string]float64
}

// Distances computes the straight-line distance from every cell center to
// every landmark, in grid units. Output follows cell order.
func Distances(cells []model.HexCell, landmarks []Landmark) []CellDistances {
	out := make([]CellDistances, len(cells))
	for i, c := range cells {
		d := make(map[string]float64, len(landmarks))
		for _, lm := range landmarks {
			d[lm.Name] = math.Hypot(c.Center[0]-lm.Point[0], c.Center[1]-lm.Point[1])
		}
		out[i] = CellDistances{CellID: c.ID, Distances: d}
	}
	return out
}
