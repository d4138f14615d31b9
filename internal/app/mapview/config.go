package mapview

import (
	"context"

	"github.com/capx-network/capmap/internal/infra/geo"
	"github.com/capx-network/capmap/internal/infra/render"
)

const (
	DefaultViewportWidth = 960
	MinViewportWidth     = 320
	MaxViewportWidth     = 4096

	desktopAspect = 0.5
	mobileAspect  = 0.75
)

// Config is the display context of a view.
type Config struct {
	DarkMode      bool `json:"dark_mode"`
	IsMobile      bool `json:"is_mobile"`
	ViewportWidth int  `json:"viewport_width"`
}

// Width returns the clamped viewport width; 0 means the default.
func (c Config) Width() int {
	switch w := c.ViewportWidth; {
	case w == 0:
		return DefaultViewportWidth
	case w < MinViewportWidth:
		return MinViewportWidth
	case w > MaxViewportWidth:
		return MaxViewportWidth
	default:
		return w
	}
}

// Viewport derives the pixel size: height is half the width on desktop and
// three quarters on mobile.
func (c Config) Viewport() render.Viewport {
	w := float64(c.Width())
	aspect := desktopAspect
	if c.IsMobile {
		aspect = mobileAspect
	}
	return render.Viewport{Width: w, Height: w * aspect}
}

// ─── Geometry ───────────────────────────────────────────────────────────────

// GeometryProvider supplies the current geometry of a style and its
// version. The version changes whenever the geometry does.
type GeometryProvider interface {
	Geometry(ctx context.Context, style render.Style) (render.Geometry, uint64)
}

// Sources adapts the two geo sources to a GeometryProvider. A source that
// is nil or fails to load yields no geometry.
type Sources struct {
	Vector *geo.VectorSource
	Flat   *geo.FlatSource
}

// Geometry loads the source of style on first use. Load errors are logged
// by the source and leave the geometry empty.
func (s Sources) Geometry(ctx context.Context, style render.Style) (render.Geometry, uint64) {
	switch style {
	case render.StyleVector:
		if s.Vector == nil {
			return render.Geometry{}, 0
		}
		_, _ = s.Vector.Load(ctx)
		v, version, _ := s.Vector.Get()
		return render.Geometry{Vector: v}, version
	case render.StyleFlat:
		if s.Flat == nil {
			return render.Geometry{}, 0
		}
		_, _ = s.Flat.Load(ctx)
		d, version, _ := s.Flat.Get()
		return render.Geometry{Flat: d}, version
	}
	return render.Geometry{}, 0
}
