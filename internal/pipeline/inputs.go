package pipeline

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/config"
	"github.com/causalml-fall25/project-cbsobral/internal/grid"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
	"github.com/causalml-fall25/project-cbsobral/internal/projection"
)

// studyInputs are the configured study locations, projected into the grid
// CRS.
type studyInputs struct {
	treated   geom.Coord
	exclusion *geom.Polygon
	landmarks []grid.Landmark
}

func (p *Pipeline) studyInputs() (*studyInputs, error) {
	treated, err := treatedLocation(p.proj, p.cfg.Study)
	if err != nil {
		return nil, err
	}
	exclusion, err := exclusionRegion(p.proj, p.cfg.Exclusion)
	if err != nil {
		return nil, err
	}
	landmarks, err := projectLandmarks(p.proj, p.cfg.Features.Landmarks)
	if err != nil {
		return nil, err
	}
	return &studyInputs{treated: treated, exclusion: exclusion, landmarks: landmarks}, nil
}

// treatedLocation returns the projected centroid of the treated area, or the
// projected treated point when no area is configured.
func treatedLocation(pr *projection.Projector, s config.StudyConfig) (geom.Coord, error) {
	if len(s.TreatedArea) > 0 {
		area, err := ring(s.TreatedArea)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: study.treated_area")
		}
		projected, err := pr.Polygon(area)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: project treated area")
		}
		c, err := projection.Centroid(projected)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: treated area centroid")
		}
		return c, nil
	}
	if len(s.TreatedPoint) != 2 {
		return nil, eris.New("pipeline: no treated location configured")
	}
	c, err := pr.Point(geom.Coord{s.TreatedPoint[0], s.TreatedPoint[1]})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: project treated point")
	}
	return c, nil
}

// exclusionRegion returns the projected exclusion region, or nil when none
// is configured.
func exclusionRegion(pr *projection.Projector, e config.ExclusionConfig) (*geom.Polygon, error) {
	var region *geom.Polygon
	switch {
	case len(e.Polygon) > 0:
		r, err := ring(e.Polygon)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: exclusion.polygon")
		}
		region = r
	case len(e.BBox) == 4:
		region = projection.BBox(e.BBox[0], e.BBox[1], e.BBox[2], e.BBox[3])
	case len(e.BBox) == 0:
		return nil, nil
	default:
		return nil, eris.Errorf("pipeline: exclusion.bbox needs 4 values, got %d", len(e.BBox))
	}
	projected, err := pr.Polygon(region)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: project exclusion region")
	}
	return projected, nil
}

func projectLandmarks(pr *projection.Projector, cfgs []config.LandmarkConfig) ([]grid.Landmark, error) {
	out := make([]grid.Landmark, 0, len(cfgs))
	for _, l := range cfgs {
		c, err := pr.Point(geom.Coord{l.Lon, l.Lat})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: landmark %s", l.Name)
		}
		out = append(out, grid.Landmark{Name: l.Name, Point: c})
	}
	return out, nil
}

// ring builds a single-ring polygon from (x, y) pairs, closing it when the
// last vertex differs from the first.
func ring(pts [][]float64) (*geom.Polygon, error) {
	flat := make([]float64, 0, 2*len(pts)+2)
	for i, p := range pts {
		if len(p) != 2 {
			return nil, eris.Errorf("vertex %d must be (x, y)", i)
		}
		flat = append(flat, p[0], p[1])
	}
	if len(flat) < 6 {
		return nil, eris.Errorf("ring needs at least 3 vertices, got %d", len(pts))
	}
	if n := len(flat); flat[0] != flat[n-2] || flat[1] != flat[n-1] {
		flat = append(flat, flat[0], flat[1])
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}), nil
}

// networkBounds returns the extent of every edge geometry.
func networkBounds(edges []model.NetworkEdge) (grid.Bounds, error) {
	b := geom.NewBounds(geom.XY)
	n := 0
	for _, e := range edges {
		if e.Geometry == nil || e.Geometry.Empty() {
			continue
		}
		b.Extend(e.Geometry)
		n++
	}
	if n == 0 {
		return grid.Bounds{}, eris.New("pipeline: network has no geometry")
	}
	return grid.BoundsOf(b), nil
}
