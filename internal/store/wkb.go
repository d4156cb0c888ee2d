package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// encodePolygon returns the EWKB encoding of p tagged with srid. p is not
// modified.
func encodePolygon(p *geom.Polygon, srid int) ([]byte, error) {
	if p == nil {
		return nil, eris.New("store: nil polygon")
	}
	g := geom.NewPolygonFlat(p.Layout(), p.FlatCoords(), p.Ends()).SetSRID(srid)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode EWKB")
	}
	return data, nil
}

// decodePolygon parses an EWKB polygon.
func decodePolygon(data []byte) (*geom.Polygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode EWKB")
	}
	p, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("store: expected polygon, got %T", g)
	}
	return p, nil
}
