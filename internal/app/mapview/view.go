// Package mapview holds stateful map views: a style, a view mode and
// filter, a display config, a zoom/pan/rotation frame and a selection.
// Rendering runs a geometry pass only when the geometry, style or viewport
// changed, and a recolor pass on every render.
package mapview

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/app/dashboard"
	"github.com/capx-network/capmap/internal/app/selection"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/metrics"
	"github.com/capx-network/capmap/internal/infra/render"
)

// Aggregator serves per-region aggregates.
type Aggregator interface {
	Aggregate(mode domain.ViewMode, filter string) (*dashboard.Aggregate, error)
}

// Options configure a new view.
type Options struct {
	Style   render.Style    `json:"style"`
	Mode    domain.ViewMode `json:"mode"`
	Filter  string          `json:"filter"`
	Config  Config          `json:"config"`
	Zoom    float64         `json:"zoom"`
	PanX    float64         `json:"pan_x"`
	PanY    float64         `json:"pan_y"`
	SouthUp bool            `json:"south_up"`
}

func (o Options) validate() (Options, error) {
	style, err := render.ParseStyle(string(o.Style))
	if err != nil {
		return o, err
	}
	o.Style = style
	mode, err := domain.ParseViewMode(string(o.Mode))
	if err != nil {
		return o, err
	}
	o.Mode = mode
	o.Filter = dashboard.NormalizeFilter(mode, o.Filter)
	if math.IsNaN(o.Zoom) {
		return o, fmt.Errorf("%w: zoom must be a number", domain.ErrInvalidViewOption)
	}
	o.Zoom = render.ClampZoom(o.Zoom)
	if math.IsNaN(o.PanX) || math.IsNaN(o.PanY) {
		return o, fmt.Errorf("%w: pan must be a number", domain.ErrInvalidViewOption)
	}
	return o, nil
}

// Patch changes some options of a view. Nil fields are left alone.
type Patch struct {
	Style         *render.Style    `json:"style,omitempty"`
	Mode          *domain.ViewMode `json:"mode,omitempty"`
	Filter        *string          `json:"filter,omitempty"`
	DarkMode      *bool            `json:"dark_mode,omitempty"`
	IsMobile      *bool            `json:"is_mobile,omitempty"`
	ViewportWidth *int             `json:"viewport_width,omitempty"`
	Zoom          *float64         `json:"zoom,omitempty"`
	PanX          *float64         `json:"pan_x,omitempty"`
	PanY          *float64         `json:"pan_y,omitempty"`
	SouthUp       *bool            `json:"south_up,omitempty"`
}

func (p Patch) apply(o Options) Options {
	if p.Style != nil {
		o.Style = *p.Style
	}
	if p.Mode != nil {
		o.Mode = *p.Mode
		if p.Filter == nil {
			o.Filter = ""
		}
	}
	if p.Filter != nil {
		o.Filter = *p.Filter
	}
	if p.DarkMode != nil {
		o.Config.DarkMode = *p.DarkMode
	}
	if p.IsMobile != nil {
		o.Config.IsMobile = *p.IsMobile
	}
	if p.ViewportWidth != nil {
		o.Config.ViewportWidth = *p.ViewportWidth
	}
	if p.Zoom != nil {
		o.Zoom = *p.Zoom
	}
	if p.PanX != nil {
		o.PanX = *p.PanX
	}
	if p.PanY != nil {
		o.PanY = *p.PanY
	}
	if p.SouthUp != nil {
		o.SouthUp = *p.SouthUp
	}
	return o
}

// Snapshot is the observable state of a view.
type Snapshot struct {
	ID        string                  `json:"id"`
	Options   Options                 `json:"options"`
	Width     float64                 `json:"width"`
	Height    float64                 `json:"height"`
	State     selection.State         `json:"state"`
	Selected  domain.RegionID         `json:"selected,omitempty"`
	Hovered   domain.RegionID         `json:"hovered,omitempty"`
	Counts    map[domain.RegionID]int `json:"counts"`
	Max       int                     `json:"max"`
	Shapes    int                     `json:"shapes"`
	CreatedAt time.Time               `json:"created_at"`
}

// SelectedCount returns the count of the selected region, if any.
func (s Snapshot) SelectedCount() (int, bool) {
	if s.Selected == "" {
		return 0, false
	}
	return s.Counts[s.Selected], true
}

type builtKey struct {
	style   render.Style
	version uint64
	vp      render.Viewport
}

// View is safe for concurrent use.
type View struct {
	id          string
	createdAt   time.Time
	agg         Aggregator
	geometry    GeometryProvider
	brighten    colorscale.Brighten
	newRenderer func(render.Style) (render.Renderer, error)

	mu       sync.Mutex
	opts     Options
	sel      *selection.Machine
	renderer render.Renderer
	built    builtKey
	hasBuilt bool
}

// NewView creates a view. brighten may be nil for the additive default.
func NewView(id string, opts Options, agg Aggregator, geometry GeometryProvider, brighten colorscale.Brighten) (*View, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	if brighten == nil {
		brighten = colorscale.BrightenAdditive
	}
	return &View{
		id:          id,
		createdAt:   time.Now().UTC(),
		agg:         agg,
		geometry:    geometry,
		brighten:    brighten,
		newRenderer: render.New,
		opts:        opts,
		sel:         selection.New(),
	}, nil
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Update applies p. On error the view is unchanged.
func (v *View) Update(p Patch) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	opts, err := p.apply(v.opts).validate()
	if err != nil {
		return err
	}
	v.opts = opts
	return nil
}

// ─── Selection ──────────────────────────────────────────────────────────────

// Click toggles the selection of r.
func (v *View) Click(r domain.RegionID) error {
	return v.event("click", r, func(m *selection.Machine, r domain.RegionID) { m.Click(r) })
}

// Enter hovers r.
func (v *View) Enter(r domain.RegionID) error {
	return v.event("enter", r, func(m *selection.Machine, r domain.RegionID) { m.Enter(r) })
}

// Leave clears the hover.
func (v *View) Leave() {
	v.mu.Lock()
	v.sel.Leave()
	v.mu.Unlock()
	metrics.SelectionEvents.WithLabelValues("leave").Inc()
}

func (v *View) event(name string, r domain.RegionID, fn func(*selection.Machine, domain.RegionID)) error {
	id, err := domain.ParseRegionID(string(r))
	if err != nil {
		return err
	}
	v.mu.Lock()
	fn(v.sel, id)
	v.mu.Unlock()
	metrics.SelectionEvents.WithLabelValues(name).Inc()
	return nil
}

// ─── Rendering ──────────────────────────────────────────────────────────────

// Snapshot returns the current state with the active aggregate.
func (v *View) Snapshot() (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	agg, err := v.agg.Aggregate(v.opts.Mode, v.opts.Filter)
	if err != nil {
		return Snapshot{}, err
	}
	vp := v.opts.Config.Viewport()
	sel := v.sel.Selection()
	shapes := 0
	if v.renderer != nil {
		shapes = v.renderer.Shapes()
	}
	counts := make(map[domain.RegionID]int, len(agg.Counts))
	for r, n := range agg.Counts {
		counts[r] = n
	}
	return Snapshot{
		ID:        v.id,
		Options:   v.opts,
		Width:     vp.Width,
		Height:    vp.Height,
		State:     v.sel.State(),
		Selected:  sel.Selected,
		Hovered:   sel.Hovered,
		Counts:    counts,
		Max:       agg.Max,
		Shapes:    shapes,
		CreatedAt: v.createdAt,
	}, nil
}

// Render writes the map as SVG. Until geometry is available the SVG has
// no shapes.
func (v *View) Render(ctx context.Context, w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	start := time.Now()
	style := v.opts.Style
	if err := v.buildLocked(ctx); err != nil {
		return err
	}

	agg, err := v.agg.Aggregate(v.opts.Mode, v.opts.Filter)
	if err != nil {
		return err
	}
	palette := colorscale.Palette{
		Mode:     v.opts.Mode,
		Theme:    domain.ThemeFor(v.opts.Config.DarkMode),
		Brighten: v.brighten,
	}
	sel := v.sel.Selection()
	fill := func(_ string, r domain.RegionID) domain.RGB {
		n, ok := agg.Count(r)
		return palette.Fill(r, n, ok, agg.Max, sel)
	}
	frame := render.Frame{Zoom: v.opts.Zoom, PanX: v.opts.PanX, PanY: v.opts.PanY, SouthUp: v.opts.SouthUp}
	if err := v.renderer.Paint(w, fill, frame); err != nil {
		return fmt.Errorf("paint: %w", err)
	}
	metrics.RenderPasses.WithLabelValues(string(style), "paint").Inc()
	metrics.RenderLatency.WithLabelValues(string(style)).Observe(time.Since(start).Seconds())
	return nil
}

// buildLocked runs the geometry pass when its inputs changed.
func (v *View) buildLocked(ctx context.Context) error {
	style := v.opts.Style
	g, version := v.geometry.Geometry(ctx, style)
	key := builtKey{style: style, version: version, vp: v.opts.Config.Viewport()}
	if v.hasBuilt && v.built == key && v.renderer != nil {
		return nil
	}
	if v.renderer == nil || v.renderer.Style() != style {
		r, err := v.newRenderer(style)
		if err != nil {
			return err
		}
		v.renderer = r
	}
	if err := v.renderer.Build(g, key.vp); err != nil {
		return fmt.Errorf("build geometry: %w", err)
	}
	v.built, v.hasBuilt = key, true
	metrics.RenderPasses.WithLabelValues(string(style), "geometry").Inc()
	return nil
}
