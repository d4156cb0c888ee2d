// Package artifact writes and reads the files produced by a pipeline run.
package artifact

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Grid feature property names.
const (
	PropCellID   = "cell_id"
	PropUnitType = "unit_type"
	PropCenterX  = "center_x"
	PropCenterY  = "center_y"
)

// WriteGrid encodes cells as a GeoJSON FeatureCollection.
func WriteGrid(w io.Writer, cells []model.HexCell) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(cells))}
	for _, c := range cells {
		props := map[string]any{PropCellID: c.ID}
		if c.UnitType != "" {
			props[PropUnitType] = string(c.UnitType)
		}
		if len(c.Center) >= 2 {
			props[PropCenterX] = c.Center[0]
			props[PropCenterY] = c.Center[1]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(c.ID),
			Geometry:   c.Polygon,
			Properties: props,
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "artifact: encode grid")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "artifact: write grid")
	}
	return nil
}

// WriteGridFile writes the grid GeoJSON to path.
func WriteGridFile(path string, cells []model.HexCell) error {
	return writeFile(path, func(w io.Writer) error { return WriteGrid(w, cells) })
}

// ReadGrid decodes a grid written by WriteGrid.
func ReadGrid(r io.Reader) ([]model.HexCell, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: read grid")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "artifact: decode grid")
	}

	cells := make([]model.HexCell, 0, len(fc.Features))
	for i, f := range fc.Features {
		poly, ok := f.Geometry.(*geom.Polygon)
		if !ok {
			return nil, eris.Errorf("artifact: feature %d is not a polygon", i)
		}
		id, ok := f.Properties[PropCellID].(float64)
		if !ok {
			return nil, eris.Errorf("artifact: feature %d has no %s", i, PropCellID)
		}
		c := model.HexCell{ID: int(id), Polygon: poly}
		if ut, ok := f.Properties[PropUnitType].(string); ok {
			c.UnitType = model.UnitType(ut)
			if !c.UnitType.Valid() {
				return nil, eris.Errorf("artifact: feature %d has unknown unit type %q", i, ut)
			}
		}
		x, xok := f.Properties[PropCenterX].(float64)
		y, yok := f.Properties[PropCenterY].(float64)
		if xok && yok {
			c.Center = geom.Coord{x, y}
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// ReadGridFile reads the grid GeoJSON at path.
func ReadGridFile(path string) ([]model.HexCell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadGrid(f)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "artifact: create %s", path)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "artifact: close %s", path)
}
