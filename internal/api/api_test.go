package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/app/dashboard"
	"github.com/capx-network/capmap/internal/app/mapview"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/health"
	"github.com/capx-network/capmap/internal/infra/geo"
	"github.com/capx-network/capmap/internal/infra/render"
	"github.com/capx-network/capmap/internal/infra/sqlite"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50">` +
	`<path id="USA" d="M0,0L10,0L10,10Z"/>` +
	`<path id="NGA" d="M50,20L60,20L60,30Z"/>` +
	`</svg>`

func testDataset() domain.Dataset {
	return domain.Dataset{
		Territories: map[string]string{
			"t1": "Sub-Saharan Africa",
			"t2": "North America",
			"t3": "Atlantis",
		},
		TerritoryUserCounts: map[string]int{"t1": 100, "t2": 50, "t3": 7},
		Languages:           map[string]string{"en": "English", "fr": "French"},
		LanguagesByTerritory: map[string]map[string]int{
			"t1": {"en": 30, "fr": 70},
			"t2": {"en": 40},
		},
	}
}

type testEnv struct {
	srv  *Server
	dash *dashboard.Service
	db   *sqlite.DB
	h    http.Handler
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svgPath := filepath.Join(dir, "world.svg")
	require.NoError(t, os.WriteFile(svgPath, []byte(testSVG), 0o644))

	log := zerolog.Nop()
	dash := dashboard.NewService(log, db)
	geometry := mapview.Sources{
		Flat:   geo.NewFlatSource(svgPath),
		Vector: geo.NewVectorSource(filepath.Join(dir, "missing.geojson")),
	}
	views := mapview.NewManager(log, dash, geometry, colorscale.BrightenAdditive, 2)

	srv := NewServer(log, dash, views)
	srv.EnableMetrics()
	return &testEnv{srv: srv, dash: dash, db: db, h: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// ═══════════════════════════════════════════════════════════════════════════
// Status & Health
// ═══════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestStatus(t *testing.T) {
	e := newTestServer(t)
	e.srv.SetVersion("1.2.3")
	id, err := e.db.InstanceID()
	require.NoError(t, err)
	e.srv.SetInstanceID(id)
	e.h = e.srv.Handler()

	w := e.do(t, "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, id, body["instance_id"])
	assert.EqualValues(t, 0, body["dataset_version"])
}

func TestAPIHealth_WithChecker(t *testing.T) {
	e := newTestServer(t)
	c := health.NewChecker(zerolog.Nop(), 0, health.SQLiteCheck(e.db))
	c.RunOnce(t.Context())
	e.srv.SetHealth(c)
	e.h = e.srv.Handler()

	w := e.do(t, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["healthy"])
	assert.Len(t, body["checks"], 1)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)
	e.do(t, "GET", "/api/regions", nil)

	w := e.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "capmap_api_requests_total")
}

func TestCORS_Preflight(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/dataset", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// ═══════════════════════════════════════════════════════════════════════════
// Regions & Dataset
// ═══════════════════════════════════════════════════════════════════════════

func TestRegions(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, "GET", "/api/regions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Regions []regionInfo `json:"regions"`
	}](t, w)
	require.Len(t, body.Regions, 8)
	assert.Equal(t, domain.RegionNA, body.Regions[0].ID)
	assert.Regexp(t, `^#[0-9A-F]{6}$`, body.Regions[0].SelectedColor)
	assert.Empty(t, body.Regions[0].CountryCodes)
	assert.Positive(t, body.Regions[0].Countries)

	w = e.do(t, "GET", "/api/regions?countries=true", nil)
	body = decode[struct {
		Regions []regionInfo `json:"regions"`
	}](t, w)
	assert.Contains(t, body.Regions[0].CountryCodes, "USA")
}

func TestResolve(t *testing.T) {
	e := newTestServer(t)

	w := e.do(t, "GET", "/api/resolve?name=Middle+East+%26+North+Africa", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "middleeastandnorthafrica", body["normalized"])
	assert.Equal(t, "MENA", body["region"])
	assert.Equal(t, true, body["resolved"])

	w = e.do(t, "GET", "/api/resolve?name=Atlantis", nil)
	body = decode[map[string]any](t, w)
	assert.Equal(t, false, body["resolved"])

	w = e.do(t, "GET", "/api/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutDataset(t *testing.T) {
	e := newTestServer(t)

	w := e.do(t, "PUT", "/api/dataset", testDataset())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, body["version"])
	assert.EqualValues(t, 2, body["mapped"])
	assert.Equal(t, []any{"t3"}, body["unresolved"])

	stored, err := e.db.LoadDataset()
	require.NoError(t, err)
	assert.Equal(t, 100, stored.TerritoryUserCounts["t1"])

	w = e.do(t, "GET", "/api/dataset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[map[string]any](t, w)
	assert.EqualValues(t, 3, body["territories"])
}

func TestPutDataset_Invalid(t *testing.T) {
	e := newTestServer(t)

	w := e.do(t, "PUT", "/api/dataset", `{"territory_user_counts":{"t1":-5}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "PUT", "/api/dataset", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.dash.Version())
}

func TestAggregate(t *testing.T) {
	e := newTestServer(t)
	require.NoError(t, e.dash.Replace(testDataset()))

	w := e.do(t, "GET", "/api/aggregate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	agg := decode[dashboard.Aggregate](t, w)
	assert.Equal(t, map[domain.RegionID]int{domain.RegionSSA: 100, domain.RegionNA: 50}, agg.Counts)
	assert.Equal(t, 100, agg.Max)

	w = e.do(t, "GET", "/api/aggregate?mode=languages&filter=en", nil)
	agg = decode[dashboard.Aggregate](t, w)
	assert.Equal(t, map[domain.RegionID]int{domain.RegionSSA: 30, domain.RegionNA: 40}, agg.Counts)
	assert.Equal(t, 40, agg.Max)

	w = e.do(t, "GET", "/api/aggregate?mode=regions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregate_EmptyDataset(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, "GET", "/api/aggregate?mode=capacities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	agg := decode[dashboard.Aggregate](t, w)
	assert.Empty(t, agg.Counts)
	assert.Equal(t, 1, agg.Max)
}

func TestTop(t *testing.T) {
	e := newTestServer(t)
	require.NoError(t, e.dash.Replace(testDataset()))

	w := e.do(t, "GET", "/api/regions/ssa/top?n=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Region domain.RegionID `json:"region"`
		Items  []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"items"`
	}](t, w)
	assert.Equal(t, domain.RegionSSA, body.Region)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "French", body.Items[0].Name)
	assert.Equal(t, 70, body.Items[0].Count)

	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/api/regions/EU/top", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/api/regions/NA/top?mode=users", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/api/regions/NA/top?n=0", nil).Code)
}

// ═══════════════════════════════════════════════════════════════════════════
// Map Views
// ═══════════════════════════════════════════════════════════════════════════

func createView(t *testing.T, e *testEnv, req any) string {
	t.Helper()
	w := e.do(t, "POST", "/api/views", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestViews_Lifecycle(t *testing.T) {
	e := newTestServer(t)
	require.NoError(t, e.dash.Replace(testDataset()))

	id := createView(t, e, map[string]any{"style": "flat", "viewport_width": 100})

	w := e.do(t, "GET", "/api/views/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "none", body["state"])
	assert.EqualValues(t, 320, body["width"])

	w = e.do(t, "GET", "/api/views", nil)
	assert.Contains(t, w.Body.String(), id)

	w = e.do(t, "DELETE", "/api/views/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, "GET", "/api/views/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, "DELETE", "/api/views/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViews_CreateRejectsBadOptions(t *testing.T) {
	e := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/views", map[string]any{"style": "raster"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/views", map[string]any{"mode": "regions"}).Code)
}

func TestViews_Limit(t *testing.T) {
	e := newTestServer(t)
	createView(t, e, nil)
	createView(t, e, nil)
	w := e.do(t, "POST", "/api/views", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestViews_Selection(t *testing.T) {
	e := newTestServer(t)
	require.NoError(t, e.dash.Replace(testDataset()))
	id := createView(t, e, map[string]any{"style": "flat"})

	w := e.do(t, "POST", "/api/views/"+id+"/enter", map[string]string{"region": "na"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "hovering", body["state"])
	assert.Equal(t, "NA", body["hovered"])

	w = e.do(t, "POST", "/api/views/"+id+"/click", map[string]string{"region": "SSA"})
	body = decode[map[string]any](t, w)
	assert.Equal(t, "selected+hovering", body["state"])
	assert.Equal(t, "SSA", body["selected"])
	assert.EqualValues(t, 100, body["selected_count"])

	w = e.do(t, "POST", "/api/views/"+id+"/leave", nil)
	body = decode[map[string]any](t, w)
	assert.Equal(t, "selected", body["state"])

	w = e.do(t, "POST", "/api/views/"+id+"/click", map[string]string{"region": "SSA"})
	body = decode[map[string]any](t, w)
	assert.Equal(t, "none", body["state"])
	assert.NotContains(t, body, "selected_count")

	w = e.do(t, "POST", "/api/views/"+id+"/click", map[string]string{"region": "EU"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, "POST", "/api/views/nope/click", map[string]string{"region": "NA"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViews_Patch(t *testing.T) {
	e := newTestServer(t)
	id := createView(t, e, map[string]any{"mode": "languages", "filter": "en"})

	w := e.do(t, "PATCH", "/api/views/"+id, map[string]any{"mode": "capacities", "zoom": 20, "dark_mode": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[mapview.Snapshot](t, w)
	assert.Equal(t, domain.ViewCapacities, body.Options.Mode)
	assert.Equal(t, "all", body.Options.Filter)
	assert.Equal(t, 8.0, body.Options.Zoom)
	assert.True(t, body.Options.Config.DarkMode)

	w = e.do(t, "PATCH", "/api/views/"+id, map[string]any{"style": "globe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViews_MapSVG(t *testing.T) {
	e := newTestServer(t)
	require.NoError(t, e.dash.Replace(testDataset()))
	id := createView(t, e, map[string]any{"style": "flat"})

	w := e.do(t, "GET", "/api/views/"+id+"/map.svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))

	base := colorscale.AnchorsFor(domain.ViewUsers, domain.ThemeLight).Base
	svg := w.Body.String()
	assert.Contains(t, svg, `fill="`+base.Hex()+`"`, "SSA holds the max count")
	assert.Contains(t, svg, `data-region="SSA"`)

	e.do(t, "POST", "/api/views/"+id+"/click", map[string]string{"region": "SSA"})
	w = e.do(t, "GET", "/api/views/"+id+"/map.svg", nil)
	sel, ok := colorscale.SelectedColor(domain.RegionSSA)
	require.True(t, ok)
	assert.Contains(t, w.Body.String(), `fill="`+sel.Hex()+`"`)
}

func TestViews_MapSVG_NoGeometry(t *testing.T) {
	e := newTestServer(t)
	id := createView(t, e, map[string]any{"style": "vector"})

	w := e.do(t, "GET", "/api/views/"+id+"/map.svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<path")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrViewNotFound, http.StatusNotFound},
		{domain.ErrTooManyViews, http.StatusTooManyRequests},
		{domain.ErrUnknownRegion, http.StatusBadRequest},
		{domain.ErrDatasetInvalid, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestViews_DefaultStyle(t *testing.T) {
	e := newTestServer(t)
	e.srv.SetDefaultStyle(render.StyleFlat)
	e.h = e.srv.Handler()

	w := e.do(t, "POST", "/api/views", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[mapview.Snapshot](t, w)
	assert.Equal(t, render.StyleFlat, snap.Options.Style)
}
