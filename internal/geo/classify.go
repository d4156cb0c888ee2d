package geo

import (
	cgeom "github.com/ctessum/geom"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Summary counts the cells of a classified grid by unit type.
type Summary struct {
	TreatedID int `json:"treated_id" yaml:"treated_id"`
	Treated   int `json:"treated" yaml:"treated"`
	Excluded  int `json:"excluded" yaml:"excluded"`
	Donor     int `json:"donor" yaml:"donor"`
}

// Summarize counts cells by unit type. TreatedID is -1 when no cell is
// treated.
func Summarize(cells []model.HexCell) Summary {
	s := Summary{TreatedID: -1}
	for _, c := range cells {
		switch c.UnitType {
		case model.UnitTreated:
			s.Treated++
			s.TreatedID = c.ID
		case model.UnitExcluded:
			s.Excluded++
		case model.UnitDonor:
			s.Donor++
		}
	}
	return s
}

// Classify labels a copy of cells. Rules apply in order and later rules
// override earlier ones:
//   - every cell is a donor;
//   - cells intersecting the exclusion region are excluded (nil skips this);
//   - the one cell strictly containing treated is located;
//   - cells touching the treated cell are excluded;
//   - the treated cell is labelled treated.
//
// All geometry must share one planar CRS. The input slice is not modified.
func Classify(cells []model.HexCell, treated geom.Coord, exclusion *geom.Polygon, tol float64) ([]model.HexCell, Summary, error) {
	if exclusion != nil {
		if err := ValidateRegion(exclusion); err != nil {
			return nil, Summary{}, err
		}
	}
	if tol < 0 {
		tol = DefaultTolerance
	}

	out := make([]model.HexCell, len(cells))
	copy(out, cells)
	polys := make([]cgeom.Polygon, len(out))
	for i := range out {
		out[i].UnitType = model.UnitDonor
		polys[i] = toPolygon(out[i].Polygon)
	}

	if exclusion != nil {
		region := toPolygon(exclusion)
		for i := range out {
			if intersects(polys[i], region, tol) {
				out[i].UnitType = model.UnitExcluded
			}
		}
	}

	pt := ToPoint(treated)
	var matches []int
	for i := range out {
		if containsPoint(polys[i], pt) {
			matches = append(matches, i)
		}
	}
	if len(matches) != 1 {
		ids := make([]int, len(matches))
		for k, i := range matches {
			ids[k] = out[i].ID
		}
		return nil, Summary{}, &model.ClassificationError{Matches: ids}
	}
	ti := matches[0]

	for i := range out {
		if i != ti && touches(polys[i], polys[ti], tol) {
			out[i].UnitType = model.UnitExcluded
		}
	}
	out[ti].UnitType = model.UnitTreated

	s := Summarize(out)
	zap.L().With(zap.String("component", "classify")).Info("grid classified",
		zap.Int("treated_id", s.TreatedID),
		zap.Int("excluded", s.Excluded),
		zap.Int("donor", s.Donor),
	)
	return out, s, nil
}
