package geo

import (
	"math"

	cgeom "github.com/ctessum/geom"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

type segment struct {
	a, b geom.Coord
}

// segments returns the boundary segments of every ring of p. An unclosed
// ring is closed implicitly.
func segments(p cgeom.Polygon) []segment {
	var out []segment
	for _, ring := range p {
		n := len(ring)
		if n < 2 {
			continue
		}
		for i := 1; i < n; i++ {
			out = append(out, segment{coord(ring[i-1]), coord(ring[i])})
		}
		if !ring[n-1].Equals(ring[0]) {
			out = append(out, segment{coord(ring[n-1]), coord(ring[0])})
		}
	}
	return out
}

func coord(p cgeom.Point) geom.Coord {
	return geom.Coord{p.X, p.Y}
}

// Contains reports whether pt lies strictly inside p. Points on the boundary
// are outside.
func Contains(p *geom.Polygon, pt geom.Coord) bool {
	return containsPoint(toPolygon(p), ToPoint(pt))
}

func containsPoint(p cgeom.Polygon, pt cgeom.Point) bool {
	return pt.Within(p) == cgeom.Inside
}

// Intersects reports whether a and b share any point, boundaries included.
func Intersects(a, b *geom.Polygon, tol float64) bool {
	return intersects(toPolygon(a), toPolygon(b), tol)
}

func intersects(a, b cgeom.Polygon, tol float64) bool {
	if !boundsNear(a.Bounds(), b.Bounds(), tol) {
		return false
	}
	if boundaryDistance(a, b) <= tol {
		return true
	}
	// No boundary contact: either disjoint or one nested in the other.
	return pointIn(a[0][0], b) || pointIn(b[0][0], a)
}

// Touches reports whether the boundaries of a and b meet within tol while
// their interiors do not overlap (queen contiguity).
func Touches(a, b *geom.Polygon, tol float64) bool {
	return touches(toPolygon(a), toPolygon(b), tol)
}

func touches(a, b cgeom.Polygon, tol float64) bool {
	if !boundsNear(a.Bounds(), b.Bounds(), tol) {
		return false
	}
	if boundaryDistance(a, b) > tol {
		return false
	}
	return !interiorsOverlap(a, b, tol)
}

func pointIn(pt cgeom.Point, p cgeom.Polygon) bool {
	return pt.Within(p) != cgeom.Outside
}

// interiorsOverlap reports whether either centroid lies strictly inside the
// other polygon, or the intersection of a and b is more than a sliver along
// their shared boundary. A band of width tol along both perimeters bounds
// the area clipping noise can produce for polygons that only share edges.
func interiorsOverlap(a, b cgeom.Polygon, tol float64) bool {
	if containsPoint(b, a.Centroid()) || containsPoint(a, b.Centroid()) {
		return true
	}
	overlap := a.Intersection(b).Area()
	return overlap > tol*(perimeter(a)+perimeter(b))
}

func perimeter(p cgeom.Polygon) float64 {
	total := 0.0
	for _, s := range segments(p) {
		total += xy.Distance(s.a, s.b)
	}
	return total
}

func boundsNear(a, b *cgeom.Bounds, tol float64) bool {
	return a.Min.X-tol <= b.Max.X && a.Min.Y-tol <= b.Max.Y &&
		a.Max.X+tol >= b.Min.X && a.Max.Y+tol >= b.Min.Y
}

// boundaryDistance is the minimum distance between the boundaries of a and b.
func boundaryDistance(a, b cgeom.Polygon) float64 {
	best := math.Inf(1)
	sb := segments(b)
	for _, s := range segments(a) {
		for _, t := range sb {
			if d := xy.DistanceFromLineToLine(s.a, s.b, t.a, t.b); d < best {
				best = d
				if best == 0 {
					return 0
				}
			}
		}
	}
	return best
}

// segmentsIntersect reports whether s and t share a point, endpoints and
// collinear overlap included.
func segmentsIntersect(s, t segment) bool {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{}, s.a, s.b, t.a, t.b)
	return res.HasIntersection()
}
