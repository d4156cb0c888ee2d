package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

var treatment = time.Date(2022, 11, 21, 0, 0, 0, 0, time.UTC)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(i int) *int { return &i }

func testCells() []model.HexCell {
	return []model.HexCell{
		{ID: 0, UnitType: model.UnitDonor},
		{ID: 1, UnitType: model.UnitTreated},
		{ID: 2, UnitType: model.UnitExcluded},
	}
}

func testAssignments() []model.EdgeCellAssignment {
	return []model.EdgeCellAssignment{
		{EdgeID: "a", CellID: ptr(0)},
		{EdgeID: "b", CellID: ptr(1)},
		{EdgeID: "c", CellID: ptr(1)},
		{EdgeID: "z"},
	}
}

func TestPeriod(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2022-11-21", 0},
		{"2022-11-27", 0},
		{"2022-11-28", 1},
		{"2022-11-20", -1},
		{"2022-11-14", -1},
		{"2022-11-13", -2},
		{"2021-11-21", -53},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, Period(date(tt.date), treatment, 7))
		})
	}
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 0, floorDiv(0, 7))
	assert.Equal(t, 1, floorDiv(7, 7))
	assert.Equal(t, -1, floorDiv(-1, 7))
	assert.Equal(t, -1, floorDiv(-7, 7))
	assert.Equal(t, -2, floorDiv(-8, 7))
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got := Day(time.Date(2022, 11, 21, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2022, 11, 21, 0, 0, 0, 0, time.UTC), got)
}

func TestBuild_TreatmentWeeks(t *testing.T) {
	obs := []model.CountObservation{
		{EdgeID: "a", Date: date("2022-11-28"), Count: 5},
		{EdgeID: "a", Date: date("2022-11-20"), Count: 3},
	}
	res, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment})
	require.NoError(t, err)

	assert.Equal(t, -1, res.MinPeriod)
	assert.Equal(t, 1, res.MaxPeriod)
	assert.Equal(t, []model.PanelRow{
		{CellID: 0, Period: -1, Value: 3, UnitType: model.UnitDonor},
		{CellID: 0, Period: 0, Value: 0, UnitType: model.UnitDonor},
		{CellID: 0, Period: 1, Value: 5, UnitType: model.UnitDonor},
	}, res.Rows)
	assert.Equal(t, 1, res.Filled)
}

func TestBuild_CompleteAndConserving(t *testing.T) {
	obs := []model.CountObservation{
		{EdgeID: "a", Date: date("2022-11-01"), Count: 4},
		{EdgeID: "a", Date: date("2022-11-01"), Count: 6},
		{EdgeID: "b", Date: date("2022-11-22"), Count: 2},
		{EdgeID: "c", Date: date("2022-11-22"), Count: 7},
		{EdgeID: "c", Date: date("2022-12-15"), Count: 1},
		{EdgeID: "z", Date: date("2022-11-22"), Count: 100},
		{EdgeID: "unknown", Date: date("2022-11-22"), Count: 100},
	}
	res, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Dropped)

	// Every (cell, period) pair appears exactly once.
	seen := map[[2]int]int{}
	for _, r := range res.Rows {
		seen[[2]int{r.CellID, r.Period}]++
	}
	for _, id := range []int{0, 1} {
		for p := res.MinPeriod; p <= res.MaxPeriod; p++ {
			assert.Equal(t, 1, seen[[2]int{id, p}], "cell %d period %d", id, p)
		}
	}
	assert.Len(t, res.Rows, 2*(res.MaxPeriod-res.MinPeriod+1))

	// Panel and daily totals both conserve the mapped counts.
	var panelSum, dailySum int64
	for _, r := range res.Rows {
		panelSum += r.Value
	}
	for _, d := range res.Daily {
		dailySum += d.Count
	}
	assert.Equal(t, int64(20), panelSum)
	assert.Equal(t, panelSum, dailySum)

	// Same-day observations on one edge are summed.
	assert.Equal(t, model.DailyTotal{CellID: 0, Date: date("2022-11-01"), Count: 10}, res.Daily[0])
	// Labels come from the grid.
	for _, r := range res.Rows {
		if r.CellID == 1 {
			assert.Equal(t, model.UnitTreated, r.UnitType)
		}
	}
}

func TestBuild_SortedOutput(t *testing.T) {
	obs := []model.CountObservation{
		{EdgeID: "b", Date: date("2022-12-01"), Count: 1},
		{EdgeID: "a", Date: date("2022-11-01"), Count: 1},
	}
	res, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment})
	require.NoError(t, err)
	for i := 1; i < len(res.Rows); i++ {
		prev, cur := res.Rows[i-1], res.Rows[i]
		assert.True(t, prev.CellID < cur.CellID || (prev.CellID == cur.CellID && prev.Period < cur.Period))
	}
}

func TestBuild_EmptyObservations(t *testing.T) {
	obs := []model.CountObservation{{EdgeID: "z", Date: date("2022-11-22"), Count: 3}}
	res, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment})
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	for i, r := range res.Rows {
		assert.Equal(t, i, r.CellID)
		assert.Equal(t, 0, r.Period)
		assert.Zero(t, r.Value)
	}
	assert.Equal(t, model.UnitTreated, res.Rows[1].UnitType)
	assert.Equal(t, 1, res.Dropped)
}

func TestBuild_CustomWidth(t *testing.T) {
	obs := []model.CountObservation{
		{EdgeID: "a", Date: date("2022-11-22"), Count: 1},
		{EdgeID: "a", Date: date("2022-11-20"), Count: 1},
	}
	res, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment, PeriodDays: 1})
	require.NoError(t, err)
	assert.Equal(t, -1, res.MinPeriod)
	assert.Equal(t, 1, res.MaxPeriod)
	assert.Len(t, res.Rows, 3)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("negative count", func(t *testing.T) {
		obs := []model.CountObservation{{EdgeID: "a", Date: date("2022-11-22"), Count: -1}}
		_, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment})
		var ie *model.InputError
		require.ErrorAs(t, err, &ie)
		assert.Contains(t, ie.Record, "edge a")
	})
	t.Run("zero date", func(t *testing.T) {
		obs := []model.CountObservation{{EdgeID: "a", Count: 1}}
		_, err := Build(obs, testAssignments(), testCells(), Options{Treatment: treatment})
		var ie *model.InputError
		assert.ErrorAs(t, err, &ie)
	})
	t.Run("cell missing from grid", func(t *testing.T) {
		obs := []model.CountObservation{{EdgeID: "b", Date: date("2022-11-22"), Count: 1}}
		_, err := Build(obs, testAssignments(), testCells()[:1], Options{Treatment: treatment})
		var ce *model.InconsistencyError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 1, ce.CellID)
	})
	t.Run("no treatment date", func(t *testing.T) {
		_, err := Build(nil, nil, testCells(), Options{})
		assert.Error(t, err)
	})
	t.Run("negative width", func(t *testing.T) {
		_, err := Build(nil, nil, testCells(), Options{Treatment: treatment, PeriodDays: -7})
		assert.Error(t, err)
	})
}
