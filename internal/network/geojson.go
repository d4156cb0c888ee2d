package network

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// LoadGeoJSON reads LineString and MultiLineString features from a GeoJSON
// FeatureCollection. The edge id is taken from the idField property, falling
// back to the feature id.
func LoadGeoJSON(path, idField string) ([]model.NetworkEdge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "network: read %s", path)
	}
	return ParseGeoJSON(data, idField)
}

// ParseGeoJSON decodes a FeatureCollection into edges.
func ParseGeoJSON(data []byte, idField string) ([]model.NetworkEdge, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "network: decode feature collection")
	}

	edges := make([]model.NetworkEdge, 0, len(fc.Features))
	skipped := 0
	for i, f := range fc.Features {
		mls := toMultiLineString(f.Geometry)
		if mls == nil {
			skipped++
			continue
		}
		id := featureID(f, idField)
		if id == "" {
			return nil, model.NewInputError(fmt.Sprintf("feature %d", i), eris.Errorf("missing %q", idField))
		}
		edges = append(edges, model.NetworkEdge{ID: id, Geometry: mls})
	}
	if skipped > 0 {
		zap.L().Debug("network: skipped non-line features", zap.Int("skipped", skipped))
	}
	return edges, nil
}

func featureID(f *geojson.Feature, idField string) string {
	if v, ok := f.Properties[idField]; ok && v != nil {
		return formatID(v)
	}
	if f.ID != nil {
		return formatID(f.ID)
	}
	return ""
}

// formatID renders numeric ids without a fractional part or exponent.
func formatID(v any) string {
	if n, ok := v.(float64); ok && n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprint(v)
}

func toMultiLineString(g orb.Geometry) *geom.MultiLineString {
	var lines []orb.LineString
	switch t := g.(type) {
	case orb.LineString:
		lines = []orb.LineString{t}
	case orb.MultiLineString:
		lines = t
	default:
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for _, ls := range lines {
		if len(ls) < 2 {
			continue
		}
		flat := make([]float64, 0, 2*len(ls))
		for _, p := range ls {
			flat = append(flat, p.X(), p.Y())
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}
