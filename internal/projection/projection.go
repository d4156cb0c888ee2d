// Package projection converts geometry between geographic coordinates and
// the planar CRS the grid is built in.
package projection

import (
	"math"

	cgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Well-known projection strings.
const (
	Geographic  = "+proj=longlat +datum=WGS84 +no_defs"
	WebMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"
)

// Projector transforms between a geographic CRS and the grid CRS.
type Projector struct {
	forward proj.Transformer
	inverse proj.Transformer
}

// New returns a Projector from the geographic CRS src to the planar grid CRS
// dst, both given as proj4 strings.
func New(src, dst string) (*Projector, error) {
	srcSR, err := proj.Parse(src)
	if err != nil {
		return nil, eris.Wrapf(err, "projection: parse %q", src)
	}
	dstSR, err := proj.Parse(dst)
	if err != nil {
		return nil, eris.Wrapf(err, "projection: parse %q", dst)
	}
	fwd, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, eris.Wrap(err, "projection: forward transform")
	}
	inv, err := dstSR.NewTransform(srcSR)
	if err != nil {
		return nil, eris.Wrap(err, "projection: inverse transform")
	}
	return &Projector{forward: fwd, inverse: inv}, nil
}

// Point projects a lon/lat coordinate into the grid CRS.
func (p *Projector) Point(c geom.Coord) (geom.Coord, error) {
	return apply(p.forward, c)
}

// InversePoint maps a grid coordinate back to lon/lat.
func (p *Projector) InversePoint(c geom.Coord) (geom.Coord, error) {
	return apply(p.inverse, c)
}

// Polygon projects a lon/lat polygon into the grid CRS.
func (p *Projector) Polygon(g *geom.Polygon) (*geom.Polygon, error) {
	flat, err := transformFlat(p.forward, g.FlatCoords(), g.Stride())
	if err != nil {
		return nil, err
	}
	return geom.NewPolygonFlat(g.Layout(), flat, g.Ends()), nil
}

// InversePolygon maps a grid polygon back to lon/lat.
func (p *Projector) InversePolygon(g *geom.Polygon) (*geom.Polygon, error) {
	flat, err := transformFlat(p.inverse, g.FlatCoords(), g.Stride())
	if err != nil {
		return nil, err
	}
	return geom.NewPolygonFlat(g.Layout(), flat, g.Ends()), nil
}

// MultiLineString projects a lon/lat line geometry into the grid CRS.
func (p *Projector) MultiLineString(g *geom.MultiLineString) (*geom.MultiLineString, error) {
	flat, err := transformFlat(p.forward, g.FlatCoords(), g.Stride())
	if err != nil {
		return nil, err
	}
	return geom.NewMultiLineStringFlat(g.Layout(), flat, g.Ends()), nil
}

// Edges projects every edge geometry into the grid CRS.
func (p *Projector) Edges(edges []model.NetworkEdge) ([]model.NetworkEdge, error) {
	out := make([]model.NetworkEdge, len(edges))
	for i, e := range edges {
		out[i] = e
		if e.Geometry == nil {
			continue
		}
		g, err := p.MultiLineString(e.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "projection: edge %s", e.ID)
		}
		out[i].Geometry = g
	}
	return out, nil
}

// Cells returns a copy of lon/lat cells with centers and polygons in the
// grid CRS.
func (p *Projector) Cells(cells []model.HexCell) ([]model.HexCell, error) {
	return mapCells(cells, p.Point, p.Polygon)
}

// InverseCells returns a copy of cells with centers and polygons in lon/lat.
func (p *Projector) InverseCells(cells []model.HexCell) ([]model.HexCell, error) {
	return mapCells(cells, p.InversePoint, p.InversePolygon)
}

func mapCells(
	cells []model.HexCell,
	point func(geom.Coord) (geom.Coord, error),
	polygon func(*geom.Polygon) (*geom.Polygon, error),
) ([]model.HexCell, error) {
	out := make([]model.HexCell, len(cells))
	for i, c := range cells {
		out[i] = c
		if len(c.Center) >= 2 {
			center, err := point(c.Center)
			if err != nil {
				return nil, eris.Wrapf(err, "projection: cell %d", c.ID)
			}
			out[i].Center = center
		}
		poly, err := polygon(c.Polygon)
		if err != nil {
			return nil, eris.Wrapf(err, "projection: cell %d", c.ID)
		}
		out[i].Polygon = poly
	}
	return out, nil
}

// BBox returns the axis-aligned rectangle polygon spanning the two corners.
func BBox(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	}, []int{10})
}

// Centroid returns the area centroid of a planar polygon.
func Centroid(g *geom.Polygon) (geom.Coord, error) {
	poly := make(cgeom.Polygon, 0, g.NumLinearRings())
	for i := 0; i < g.NumLinearRings(); i++ {
		coords := g.LinearRing(i).Coords()
		ring := make([]cgeom.Point, len(coords))
		for j, c := range coords {
			ring[j] = cgeom.Point{X: c[0], Y: c[1]}
		}
		poly = append(poly, ring)
	}
	if len(poly) == 0 || poly.Area() == 0 {
		return nil, eris.New("projection: centroid of empty or zero-area polygon")
	}
	c := poly.Centroid()
	return geom.Coord{c.X, c.Y}, nil
}

func apply(t proj.Transformer, c geom.Coord) (geom.Coord, error) {
	x, y, err := t(c[0], c[1])
	if err != nil {
		return nil, eris.Wrap(err, "projection: transform")
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return nil, eris.Errorf("projection: (%g, %g) maps to a non-finite point", c[0], c[1])
	}
	return geom.Coord{x, y}, nil
}

func transformFlat(t proj.Transformer, flat []float64, stride int) ([]float64, error) {
	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(out); i += stride {
		c, err := apply(t, geom.Coord{out[i], out[i+1]})
		if err != nil {
			return nil, err
		}
		out[i], out[i+1] = c[0], c[1]
	}
	return out, nil
}
