package artifact

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/causalml-fall25/project-cbsobral/internal/grid"
)

// WriteDistances writes one row per cell with a dist_<landmark>_m column
// per landmark, in landmark order.
func WriteDistances(w io.Writer, landmarks []grid.Landmark, rows []grid.CellDistances) error {
	cw := csv.NewWriter(w)
	header := []string{"cell_id"}
	for _, l := range landmarks {
		header = append(header, "dist_"+l.Name+"_m")
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "artifact: write distances header")
	}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.CellID)}
		for _, l := range landmarks {
			rec = append(rec, formatFloat(r.Distances[l.Name]))
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "artifact: write distances row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "artifact: flush distances")
}

// WriteDistancesFile writes the distance covariates CSV to path.
func WriteDistancesFile(path string, landmarks []grid.Landmark, rows []grid.CellDistances) error {
	return writeFile(path, func(w io.Writer) error { return WriteDistances(w, landmarks, rows) })
}
