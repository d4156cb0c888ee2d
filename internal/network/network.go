// Package network loads road and path network edges from shapefiles or
// GeoJSON feature collections.
package network

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Supported input formats.
const (
	FormatShapefile = "shp"
	FormatGeoJSON   = "geojson"
)

// DefaultIDField is the attribute holding the edge identifier.
const DefaultIDField = "edgeUID"

// Options controls edge loading.
type Options struct {
	// Format is FormatShapefile or FormatGeoJSON; empty infers it from the
	// file extension.
	Format string
	// IDField names the edge id attribute; empty means DefaultIDField.
	IDField string
}

// Load reads the edges stored at path.
func Load(path string, opts Options) ([]model.NetworkEdge, error) {
	format := opts.Format
	if format == "" {
		format = InferFormat(path)
	}
	idField := opts.IDField
	if idField == "" {
		idField = DefaultIDField
	}

	var (
		edges []model.NetworkEdge
		err   error
	)
	switch format {
	case FormatShapefile:
		edges, err = LoadShapefile(path, idField)
	case FormatGeoJSON:
		edges, err = LoadGeoJSON(path, idField)
	default:
		return nil, eris.Errorf("network: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := checkUnique(edges); err != nil {
		return nil, err
	}

	zap.L().With(zap.String("component", "network")).Info("network loaded",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("edges", len(edges)),
	)
	return edges, nil
}

// InferFormat guesses the input format from the file extension.
func InferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return FormatShapefile
	case ".geojson", ".json":
		return FormatGeoJSON
	}
	return ""
}

func checkUnique(edges []model.NetworkEdge) error {
	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if e.ID == "" {
			return model.NewInputError("edge", eris.New("missing edge id"))
		}
		if _, ok := seen[e.ID]; ok {
			return model.NewInputError("edge "+e.ID, eris.New("duplicate edge id"))
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
