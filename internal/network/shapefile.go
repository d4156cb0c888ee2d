package network

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// LoadShapefile reads PolyLine records from a shapefile. Records of other
// shape types, or with no usable parts, are skipped.
func LoadShapefile(path, idField string) ([]model.NetworkEdge, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "network: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, idField) {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, eris.Errorf("network: shapefile %s has no field %q", path, idField)
	}

	var (
		edges   []model.NetworkEdge
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		id := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))

		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			skipped++
			continue
		}
		mls := polyLineToMultiLineString(pl)
		if mls == nil {
			skipped++
			continue
		}
		edges = append(edges, model.NetworkEdge{ID: id, Geometry: mls})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "network: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("network: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return edges, nil
}

// polyLineToMultiLineString converts a shapefile PolyLine to a
// geom.MultiLineString, one line string per part.
func polyLineToMultiLineString(pl *shp.PolyLine) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}
		if end-start < 2 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("network: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}
