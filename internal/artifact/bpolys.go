package artifact

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// FormatBPolys renders the outer rings of cells in the boundary-polygon
// request format of the feature statistics service:
// "id:x1,y1,x2,y2,...|id:...". Cells should be in lon/lat.
func FormatBPolys(cells []model.HexCell) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(c.ID))
		b.WriteByte(':')
		if c.Polygon == nil || c.Polygon.NumLinearRings() == 0 {
			continue
		}
		for j, p := range c.Polygon.LinearRing(0).Coords() {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(formatFloat(p[0]))
			b.WriteByte(',')
			b.WriteString(formatFloat(p[1]))
		}
	}
	return b.String()
}

// WriteBPolys writes FormatBPolys output to w.
func WriteBPolys(w io.Writer, cells []model.HexCell) error {
	_, err := io.WriteString(w, FormatBPolys(cells))
	return eris.Wrap(err, "artifact: write bpolys")
}

// WriteBPolysFile writes the bpolys export to path.
func WriteBPolysFile(path string, cells []model.HexCell) error {
	return writeFile(path, func(w io.Writer) error { return WriteBPolys(w, cells) })
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
