// Package render paints choropleth maps as SVG. Two interchangeable styles
// exist: vector projects GeoJSON boundaries and supports zoom and pan; flat
// recolors a pre-rendered SVG map and supports a south-up rotation.
//
// Rendering is split into Build, which reconstructs shapes when geometry or
// viewport size change, and Paint, which only resolves fills.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/geo"
)

// Style names a rendering strategy.
type Style string

const (
	StyleVector Style = "vector"
	StyleFlat   Style = "flat"
)

// ParseStyle parses a style name; empty means vector.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleVector:
		return StyleVector, nil
	case StyleFlat:
		return StyleFlat, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownStyle, s)
}

// FillFunc resolves the fill of one country shape. region is empty when
// the country belongs to no region.
type FillFunc func(countryCode string, region domain.RegionID) domain.RGB

// Geometry carries the loaded sources. Either field may be nil.
type Geometry struct {
	Vector *geo.Vector
	Flat   *geo.Document
}

// Viewport is the output size in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Frame is the cheap per-paint view transform.
type Frame struct {
	Zoom    float64 // vector only, clamped to [MinZoom, MaxZoom]
	PanX    float64 // vector only, pixels
	PanY    float64
	SouthUp bool // flat only
}

const (
	MinZoom = 1.0
	MaxZoom = 8.0
)

// ClampZoom limits z to [MinZoom, MaxZoom]; 0 means MinZoom.
func ClampZoom(z float64) float64 {
	switch {
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	}
	return z
}

// Renderer is implemented by each style.
type Renderer interface {
	Style() Style
	// Build reconstructs shapes. A nil geometry for the renderer's style
	// leaves it with no shapes.
	Build(g Geometry, vp Viewport) error
	// Paint writes a complete SVG document.
	Paint(w io.Writer, fill FillFunc, f Frame) error
	// Regions maps each rendered country code to its region.
	Regions() map[string]domain.RegionID
	// Shapes is the number of country shapes built.
	Shapes() int
}

// New returns an empty renderer of the given style.
func New(s Style) (Renderer, error) {
	switch s {
	case StyleVector:
		return NewVector(), nil
	case StyleFlat:
		return NewFlat(), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, s)
}

// writeEmpty writes an SVG with no shapes.
func writeEmpty(w io.Writer, vp Viewport) error {
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s"></svg>`,
		num(vp.Width), num(vp.Height), num(vp.Width), num(vp.Height))
	return err
}

// num formats a coordinate with at most two decimals.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
