package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/causalml-fall25/project-cbsobral/internal/grid"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
	"github.com/causalml-fall25/project-cbsobral/internal/projection"
	"github.com/causalml-fall25/project-cbsobral/internal/store"
)

// newTestServer seeds a SQLite store with one run and returns a test
// server over the router.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	pr, err := projection.New(projection.Geographic, projection.WebMercator)
	require.NoError(t, err)
	center, err := pr.Point(geom.Coord{13.389, 52.513})
	require.NoError(t, err)

	cells := []model.HexCell{
		{ID: 0, Center: center, Polygon: grid.Hexagon(center[0], center[1], 500), UnitType: model.UnitTreated},
		{ID: 1, Center: geom.Coord{center[0] + 750, center[1]}, Polygon: grid.Hexagon(center[0]+750, center[1], 500), UnitType: model.UnitExcluded},
	}
	rows := []model.PanelRow{
		{CellID: 0, Period: -1, Value: 5, UnitType: model.UnitTreated},
		{CellID: 0, Period: 0, Value: 3, UnitType: model.UnitTreated},
	}
	require.NoError(t, st.CreateRun(ctx, &model.Run{
		ID:            "run-1",
		TreatmentDate: "2022-11-21",
		Radius:        500,
		SRID:          3857,
		TreatedCellID: 0,
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, st.SaveGrid(ctx, "run-1", 3857, cells))
	require.NoError(t, st.SavePanel(ctx, "run-1", rows))

	srv := httptest.NewServer(newRouter(st, pr, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "ok", got["status"])
}

func TestListRunsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/runs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []model.Run
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	resp, _ = get(t, srv, "/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRunEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/runs/run-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d runDetail
	require.NoError(t, json.Unmarshal([]byte(body), &d))
	assert.Equal(t, "run-1", d.Run.ID)
	assert.Equal(t, 2, d.Cells)
	assert.Equal(t, 1, d.Grid.Treated)
	assert.Equal(t, 1, d.Grid.Excluded)
	assert.Equal(t, 2, d.PanelRows)
	require.NotNil(t, d.MinPeriod)
	require.NotNil(t, d.MaxPeriod)
	assert.Equal(t, -1, *d.MinPeriod)
	assert.Equal(t, 0, *d.MaxPeriod)

	resp, body = get(t, srv, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "not found")
}

func TestGridEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/runs/run-1/grid")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"FeatureCollection"`)
	assert.Contains(t, body, `"center_x":13.38`)

	resp, body = get(t, srv, "/runs/run-1/grid?crs=grid")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, `"center_x":13.38`)

	resp, _ = get(t, srv, "/runs/run-1/grid?crs=wgs84")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv, "/runs/missing/grid")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPanelEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/runs/run-1/panel")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t, "cell_id,period,value,unit_type\n0,-1,5,treated\n0,0,3,treated\n", body)

	resp, body = get(t, srv, "/runs/run-1/panel?format=json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []model.PanelRow
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	assert.Len(t, rows, 2)
}

func TestBPolysEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/runs/run-1/bpolys")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	parts := strings.Split(body, "|")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "0:13.39"))
	assert.True(t, strings.HasPrefix(parts[1], "1:13."))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/runs", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
