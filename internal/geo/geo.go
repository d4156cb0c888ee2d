// Package geo provides the geometric predicates, unit classification and
// edge-to-cell association used to build the analysis grid.
package geo

import (
	"math"

	cgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// DefaultTolerance is the distance below which two boundaries are treated as
// meeting. Independently computed vertices of adjacent hexagons differ by a
// few ULPs, so exact comparison would miss shared edges.
const DefaultTolerance = 1e-6

// toPolygon converts a go-geom polygon into the ring representation used by
// the point-in-polygon and index code.
func toPolygon(p *geom.Polygon) cgeom.Polygon {
	out := make(cgeom.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make([]cgeom.Point, len(coords))
		for j, c := range coords {
			ring[j] = cgeom.Point{X: c[0], Y: c[1]}
		}
		out = append(out, ring)
	}
	return out
}

// ToPoint converts a coordinate into a point.
func ToPoint(c geom.Coord) cgeom.Point {
	return cgeom.Point{X: c[0], Y: c[1]}
}

// checkFinite returns an error naming the first non-finite coordinate in flat.
func checkFinite(flat []float64) error {
	for i, v := range flat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Errorf("non-finite coordinate at position %d", i)
		}
	}
	return nil
}
