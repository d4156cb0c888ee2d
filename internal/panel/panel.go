// Package panel turns edge-level daily counts into a balanced cell-by-period
// panel anchored on the treatment date.
package panel

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// DefaultPeriodDays is the width of one panel period.
const DefaultPeriodDays = 7

const day = 24 * time.Hour

// Options controls period binning.
type Options struct {
	// Treatment is the first day of period 0.
	Treatment time.Time
	// PeriodDays is the period width in days; zero means DefaultPeriodDays.
	PeriodDays int
}

// Result is the output of Build.
type Result struct {
	Rows  []model.PanelRow
	Daily []model.DailyTotal
	// Dropped counts observations whose edge is unknown or unassigned.
	Dropped int
	// Filled counts (cell, period) pairs with no observation, set to zero.
	Filled int
	// MinPeriod and MaxPeriod bound the emitted periods.
	MinPeriod int
	MaxPeriod int
}

type cellPeriod struct {
	cell   int
	period int
}

type cellDay struct {
	cell int
	date time.Time
}

// Build rolls observations up to daily cell totals, bins them into periods
// relative to the treatment date and completes the cell x period product
// with zeros. Cells are those with at least one mapped observation; with no
// mapped observations every grid cell is emitted for period 0.
//
// Rows are sorted by cell id, then period.
func Build(obs []model.CountObservation, assignments []model.EdgeCellAssignment, cells []model.HexCell, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "panel"))

	if opts.Treatment.IsZero() {
		return nil, eris.New("panel: treatment date is required")
	}
	width := opts.PeriodDays
	if width == 0 {
		width = DefaultPeriodDays
	}
	if width < 0 {
		return nil, eris.Errorf("panel: period width must be positive, got %d", width)
	}
	treatment := Day(opts.Treatment)

	labels := make(map[int]model.UnitType, len(cells))
	for _, c := range cells {
		labels[c.ID] = c.UnitType
	}
	edgeCell := make(map[string]int, len(assignments))
	for _, a := range assignments {
		if a.Assigned() {
			edgeCell[a.EdgeID] = *a.CellID
		}
	}

	res := &Result{}
	daily := make(map[cellDay]int64)
	for i, o := range obs {
		if o.Count < 0 {
			return nil, model.NewInputError(record(i, o), eris.Errorf("negative count %d", o.Count))
		}
		if o.Date.IsZero() {
			return nil, model.NewInputError(record(i, o), eris.New("missing date"))
		}
		cell, ok := edgeCell[o.EdgeID]
		if !ok {
			res.Dropped++
			continue
		}
		daily[cellDay{cell, Day(o.Date)}] += o.Count
	}
	if res.Dropped > 0 {
		log.Info("observations without a cell dropped", zap.Int("dropped", res.Dropped))
	}

	if len(daily) == 0 {
		res.Rows = make([]model.PanelRow, 0, len(cells))
		for _, c := range sortedCells(cells) {
			res.Rows = append(res.Rows, model.PanelRow{CellID: c.ID, Period: 0, UnitType: c.UnitType})
		}
		res.Filled = len(res.Rows)
		log.Info("no mapped observations, emitting zero panel", zap.Int("cells", len(cells)))
		return res, nil
	}

	res.Daily = make([]model.DailyTotal, 0, len(daily))
	for k, v := range daily {
		res.Daily = append(res.Daily, model.DailyTotal{CellID: k.cell, Date: k.date, Count: v})
	}
	sort.Slice(res.Daily, func(i, j int) bool {
		a, b := res.Daily[i], res.Daily[j]
		if a.CellID != b.CellID {
			return a.CellID < b.CellID
		}
		return a.Date.Before(b.Date)
	})

	binned := make(map[cellPeriod]int64)
	present := make(map[int]struct{})
	first := true
	for _, d := range res.Daily {
		p := Period(d.Date, treatment, width)
		binned[cellPeriod{d.CellID, p}] += d.Count
		present[d.CellID] = struct{}{}
		if first || p < res.MinPeriod {
			res.MinPeriod = p
		}
		if first || p > res.MaxPeriod {
			res.MaxPeriod = p
		}
		first = false
	}

	ids := make([]int, 0, len(present))
	for id := range present {
		if _, ok := labels[id]; !ok {
			return nil, &model.InconsistencyError{CellID: id}
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	span := res.MaxPeriod - res.MinPeriod + 1
	res.Rows = make([]model.PanelRow, 0, len(ids)*span)
	for _, id := range ids {
		for p := res.MinPeriod; p <= res.MaxPeriod; p++ {
			v, ok := binned[cellPeriod{id, p}]
			if !ok {
				res.Filled++
			}
			res.Rows = append(res.Rows, model.PanelRow{CellID: id, Period: p, Value: v, UnitType: labels[id]})
		}
	}

	log.Info("panel built",
		zap.Int("cells", len(ids)),
		zap.Int("min_period", res.MinPeriod),
		zap.Int("max_period", res.MaxPeriod),
		zap.Int("rows", len(res.Rows)),
		zap.Int("zero_filled", res.Filled),
	)
	return res, nil
}

// Day returns midnight UTC of the calendar day of t in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Period returns floor((date - treatment) / width days). Both times must be
// UTC midnights as returned by Day.
func Period(date, treatment time.Time, width int) int {
	days := int(date.Sub(treatment) / day)
	return floorDiv(days, width)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func sortedCells(cells []model.HexCell) []model.HexCell {
	out := make([]model.HexCell, len(cells))
	copy(out, cells)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func record(i int, o model.CountObservation) string {
	return fmt.Sprintf("observation %d (edge %s)", i, o.EdgeID)
}
