package geo

import (
	"fmt"

	cgeom "github.com/ctessum/geom"
	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// ValidateRegion checks that p is usable as an exclusion region: a finite,
// simple outer ring with at least three distinct vertices and non-zero area.
func ValidateRegion(p *geom.Polygon) error {
	if p == nil || p.NumLinearRings() == 0 {
		return &model.PreconditionError{Reason: "exclusion region is empty"}
	}
	if err := checkFinite(p.FlatCoords()); err != nil {
		return &model.PreconditionError{Reason: "exclusion region: " + err.Error()}
	}
	poly := toPolygon(p)
	outer := poly[0]
	if n := distinct(outer); n < 3 {
		return &model.PreconditionError{Reason: fmt.Sprintf("exclusion region has %d distinct vertices", n)}
	}
	if poly.Area() == 0 {
		return &model.PreconditionError{Reason: "exclusion region has zero area"}
	}
	if selfIntersects(outer) {
		return &model.PreconditionError{Reason: "exclusion region ring is self-intersecting"}
	}
	return nil
}

func distinct(ring []cgeom.Point) int {
	seen := make(map[cgeom.Point]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// selfIntersects reports whether two non-adjacent segments of ring share a
// point.
func selfIntersects(ring []cgeom.Point) bool {
	segs := segments(cgeom.Polygon{ring})
	n := len(segs)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(segs[i], segs[j]) {
				return true
			}
		}
	}
	return false
}
