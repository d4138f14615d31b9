package mapview

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/app/dashboard"
	"github.com/capx-network/capmap/internal/app/selection"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/geo"
	"github.com/capx-network/capmap/internal/infra/render"
)

// ─── Fixtures ───────────────────────────────────────────────────────────────

type fakeGeometry struct {
	mu      sync.Mutex
	vector  *geo.Vector
	version uint64
}

func (f *fakeGeometry) Geometry(_ context.Context, style render.Style) (render.Geometry, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if style != render.StyleVector || f.vector == nil {
		return render.Geometry{}, 0
	}
	return render.Geometry{Vector: f.vector}, f.version
}

func (f *fakeGeometry) set(v *geo.Vector) {
	f.mu.Lock()
	f.vector = v
	f.version++
	f.mu.Unlock()
}

// countingRenderer counts geometry passes.
type countingRenderer struct {
	render.Renderer
	builds *int
}

func (c countingRenderer) Build(g render.Geometry, vp render.Viewport) error {
	*c.builds++
	return c.Renderer.Build(g, vp)
}

func square(lon, lat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{lon, lat}, {lon + 5, lat}, {lon + 5, lat + 5}, {lon, lat + 5}, {lon, lat}}}}
}

func testVector() *geo.Vector {
	return &geo.Vector{Countries: []geo.Country{
		{Code: "NGA", Geometry: square(5, 5)},
		{Code: "USA", Geometry: square(-100, 35)},
		{Code: "IND", Geometry: square(75, 20)},
		{Code: "ATA", Geometry: square(0, -80)},
	}}
}

func newTestDashboard(t *testing.T) *dashboard.Service {
	t.Helper()
	svc := dashboard.NewService(zerolog.Nop(), nil)
	require.NoError(t, svc.SetDataset(domain.Dataset{
		Territories:         map[string]string{"t1": "Sub-Saharan Africa", "t2": "North America", "t3": "South Asia"},
		TerritoryUserCounts: map[string]int{"t1": 100, "t2": 50},
		LanguagesByTerritory: map[string]map[string]int{
			"t1": {"en": 30, "fr": 70},
		},
	}))
	return svc
}

func newTestView(t *testing.T, opts Options) (*View, *fakeGeometry, *int) {
	t.Helper()
	g := &fakeGeometry{}
	g.set(testVector())
	v, err := NewView("v1", opts, newTestDashboard(t), g, nil)
	require.NoError(t, err)
	builds := 0
	v.newRenderer = func(s render.Style) (render.Renderer, error) {
		r, err := render.New(s)
		if err != nil {
			return nil, err
		}
		return countingRenderer{Renderer: r, builds: &builds}, nil
	}
	return v, g, &builds
}

func renderString(t *testing.T, v *View) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, v.Render(context.Background(), &buf))
	return buf.String()
}

// pathFill extracts the fill of the path for country code.
func pathFill(t *testing.T, svg, code string) string {
	t.Helper()
	marker := `" data-country="` + code + `"`
	i := strings.Index(svg, marker)
	require.GreaterOrEqual(t, i, 0, "no path for %s", code)
	start := strings.LastIndex(svg[:i], `fill="`)
	return svg[start+len(`fill="`) : i]
}

// ═══════════════════════════════════════════════════════════════════════════
// Config
// ═══════════════════════════════════════════════════════════════════════════

func TestConfig_Viewport(t *testing.T) {
	tests := []struct {
		cfg  Config
		w, h float64
	}{
		{Config{}, 960, 480},
		{Config{IsMobile: true}, 960, 720},
		{Config{ViewportWidth: 100}, 320, 160},
		{Config{ViewportWidth: 10000, IsMobile: true}, 4096, 3072},
		{Config{ViewportWidth: 1200}, 1200, 600},
	}
	for _, tt := range tests {
		vp := tt.cfg.Viewport()
		assert.Equal(t, tt.w, vp.Width, "%+v", tt.cfg)
		assert.Equal(t, tt.h, vp.Height, "%+v", tt.cfg)
	}
}

func TestSources_MissingSources(t *testing.T) {
	g, version := Sources{}.Geometry(context.Background(), render.StyleVector)
	assert.Nil(t, g.Vector)
	assert.Zero(t, version)

	g, _ = Sources{}.Geometry(context.Background(), render.StyleFlat)
	assert.Nil(t, g.Flat)
}

func TestSources_LoadsFlatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.svg")
	require.NoError(t, os.WriteFile(path, []byte(`<svg viewBox="0 0 10 10"><path id="FRA" d="M0,0"/></svg>`), 0o644))

	src := Sources{Flat: geo.NewFlatSource(path), Vector: geo.NewVectorSource(filepath.Join(t.TempDir(), "missing.geojson"))}
	g, version := src.Geometry(context.Background(), render.StyleFlat)
	require.NotNil(t, g.Flat)
	assert.Equal(t, uint64(1), version)

	g, version = src.Geometry(context.Background(), render.StyleVector)
	assert.Nil(t, g.Vector)
	assert.Zero(t, version)
}

// ═══════════════════════════════════════════════════════════════════════════
// View
// ═══════════════════════════════════════════════════════════════════════════

func TestNewView_Validates(t *testing.T) {
	agg := newTestDashboard(t)
	_, err := NewView("x", Options{Style: "raster"}, agg, &fakeGeometry{}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownStyle)
	_, err = NewView("x", Options{Mode: "regions"}, agg, &fakeGeometry{}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownViewMode)

	v, err := NewView("x", Options{Mode: domain.ViewLanguages, Zoom: 99}, agg, &fakeGeometry{}, nil)
	require.NoError(t, err)
	snap, err := v.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, render.StyleVector, snap.Options.Style)
	assert.Equal(t, "all", snap.Options.Filter)
	assert.Equal(t, 8.0, snap.Options.Zoom)
}

func TestView_RenderColors(t *testing.T) {
	v, _, _ := newTestView(t, Options{})
	out := renderString(t, v)

	a := colorscale.AnchorsFor(domain.ViewUsers, domain.ThemeLight)
	assert.Equal(t, a.Base.Hex(), pathFill(t, out, "NGA"), "SSA holds the max")
	assert.Equal(t, colorscale.ColorFor(50, 100, a).Hex(), pathFill(t, out, "USA"))
	assert.Equal(t, colorscale.Fallback(domain.ThemeLight).Hex(), pathFill(t, out, "IND"), "SA has no aggregate entry")
	assert.Equal(t, colorscale.Fallback(domain.ThemeLight).Hex(), pathFill(t, out, "ATA"), "no region")
}

func TestView_SelectionAndHover(t *testing.T) {
	v, _, builds := newTestView(t, Options{})
	renderString(t, v)
	require.Equal(t, 1, *builds)

	require.NoError(t, v.Click(domain.RegionSSA))
	require.NoError(t, v.Enter("na"))
	out := renderString(t, v)

	sel, _ := colorscale.SelectedColor(domain.RegionSSA)
	assert.Equal(t, sel.Hex(), pathFill(t, out, "NGA"))
	a := colorscale.AnchorsFor(domain.ViewUsers, domain.ThemeLight)
	assert.Equal(t, colorscale.BrightenAdditive(colorscale.ColorFor(50, 100, a)).Hex(), pathFill(t, out, "USA"))

	snap, err := v.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, selection.StateSelectedHovering, snap.State)
	n, ok := snap.SelectedCount()
	assert.True(t, ok)
	assert.Equal(t, 100, n)

	v.Leave()
	require.NoError(t, v.Click(domain.RegionSSA))
	snap, err = v.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, selection.StateNone, snap.State)

	assert.ErrorIs(t, v.Click("EU"), domain.ErrUnknownRegion)
	assert.Equal(t, 1, *builds, "selection changes only recolor")
}

func TestView_GeometryPassKeyedOnInputs(t *testing.T) {
	v, g, builds := newTestView(t, Options{})
	renderString(t, v)
	renderString(t, v)
	assert.Equal(t, 1, *builds)

	dark := true
	require.NoError(t, v.Update(Patch{DarkMode: &dark}))
	out := renderString(t, v)
	assert.Equal(t, 1, *builds, "theme is a recolor")
	assert.Equal(t, colorscale.AnchorsFor(domain.ViewUsers, domain.ThemeDark).Base.Hex(), pathFill(t, out, "NGA"))

	zoom := 4.0
	require.NoError(t, v.Update(Patch{Zoom: &zoom}))
	out = renderString(t, v)
	assert.Equal(t, 1, *builds, "zoom is a recolor")
	assert.Contains(t, out, "scale(4)")

	width := 1200
	require.NoError(t, v.Update(Patch{ViewportWidth: &width}))
	renderString(t, v)
	assert.Equal(t, 2, *builds, "viewport change rebuilds")

	g.set(testVector())
	renderString(t, v)
	assert.Equal(t, 3, *builds, "new geometry rebuilds")

	style := render.StyleFlat
	require.NoError(t, v.Update(Patch{Style: &style}))
	out = renderString(t, v)
	assert.Equal(t, 4, *builds, "style change rebuilds")
	assert.NotContains(t, out, "<path", "no flat geometry loaded")
}

func TestView_ModeChangeResetsFilter(t *testing.T) {
	v, _, _ := newTestView(t, Options{Mode: domain.ViewLanguages, Filter: "fr"})
	snap, err := v.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 70, snap.Counts[domain.RegionSSA])

	mode := domain.ViewCapacities
	require.NoError(t, v.Update(Patch{Mode: &mode}))
	snap, err = v.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "all", snap.Options.Filter)
	assert.Empty(t, snap.Counts)
	assert.Equal(t, 1, snap.Max)
}

func TestView_UpdateRejectsInvalid(t *testing.T) {
	v, _, _ := newTestView(t, Options{})
	bad := domain.ViewMode("bogus")
	assert.ErrorIs(t, v.Update(Patch{Mode: &bad}), domain.ErrUnknownViewMode)
	snap, err := v.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, domain.ViewUsers, snap.Options.Mode)
}

func TestView_EmptyUntilGeometry(t *testing.T) {
	g := &fakeGeometry{}
	v, err := NewView("v", Options{}, newTestDashboard(t), g, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, v.Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "<path")

	g.set(testVector())
	buf.Reset()
	require.NoError(t, v.Render(context.Background(), &buf))
	assert.Equal(t, 4, strings.Count(buf.String(), "<path"))
}

// ═══════════════════════════════════════════════════════════════════════════
// Manager
// ═══════════════════════════════════════════════════════════════════════════

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zerolog.Nop(), newTestDashboard(t), &fakeGeometry{}, colorscale.BrightenRelative, 2)

	v1, err := m.Create(Options{})
	require.NoError(t, err)
	v2, err := m.Create(Options{Style: render.StyleFlat})
	require.NoError(t, err)
	assert.NotEqual(t, v1.ID(), v2.ID())
	assert.Len(t, v1.ID(), 36)

	_, err = m.Create(Options{})
	assert.ErrorIs(t, err, domain.ErrTooManyViews)

	got, err := m.Get(v1.ID())
	require.NoError(t, err)
	assert.Same(t, v1, got)
	assert.Equal(t, 2, m.Len())
	assert.Len(t, m.IDs(), 2)

	require.NoError(t, m.Delete(v1.ID()))
	_, err = m.Get(v1.ID())
	assert.ErrorIs(t, err, domain.ErrViewNotFound)
	assert.ErrorIs(t, m.Delete(v1.ID()), domain.ErrViewNotFound)

	_, err = m.Create(Options{Mode: "bogus"})
	assert.ErrorIs(t, err, domain.ErrUnknownViewMode)
}

func TestManager_ConcurrentRender(t *testing.T) {
	g := &fakeGeometry{}
	g.set(testVector())
	m := NewManager(zerolog.Nop(), newTestDashboard(t), g, nil, 0)
	v, err := m.Create(Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, v.Enter(domain.RegionNA))
			} else {
				v.Leave()
			}
			assert.NoError(t, v.Render(context.Background(), io.Discard))
		}(i)
	}
	wg.Wait()
}
