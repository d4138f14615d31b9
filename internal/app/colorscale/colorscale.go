// Package colorscale maps aggregated counts to choropleth fill colors.
package colorscale

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/region"
)

// ─── Anchors ────────────────────────────────────────────────────────────────

// Anchors is the endpoint pair of a linear scale: Light at zero, Base at max.
type Anchors struct {
	Light domain.RGB `json:"light"`
	Base  domain.RGB `json:"base"`
}

type anchorKey struct {
	mode  domain.ViewMode
	theme domain.Theme
}

var anchors = map[anchorKey]Anchors{
	{domain.ViewUsers, domain.ThemeLight}:      mustAnchors("#E8F4FC", "#0070B9"),
	{domain.ViewUsers, domain.ThemeDark}:       mustAnchors("#1A2F3A", "#339ED6"),
	{domain.ViewLanguages, domain.ThemeLight}:  mustAnchors("#E8F4FC", "#0B8E46"),
	{domain.ViewLanguages, domain.ThemeDark}:   mustAnchors("#1A2F3A", "#3FBF74"),
	{domain.ViewCapacities, domain.ThemeLight}: mustAnchors("#FDF1E7", "#D35400"),
	{domain.ViewCapacities, domain.ThemeDark}:  mustAnchors("#1A2F3A", "#F39C4A"),
}

var (
	fallbackLight = MustParseHex("#E5E5E5")
	fallbackDark  = MustParseHex("#1A2F3A")
)

// AnchorsFor returns the anchor pair of a mode and theme. Unknown modes use
// the users pair.
func AnchorsFor(mode domain.ViewMode, theme domain.Theme) Anchors {
	if !theme.IsDark() {
		theme = domain.ThemeLight
	}
	if a, ok := anchors[anchorKey{mode, theme}]; ok {
		return a
	}
	return anchors[anchorKey{domain.ViewUsers, theme}]
}

// Fallback is the neutral fill of shapes without data.
func Fallback(theme domain.Theme) domain.RGB {
	if theme.IsDark() {
		return fallbackDark
	}
	return fallbackLight
}

// ─── Interpolation ──────────────────────────────────────────────────────────

// ColorFor interpolates linearly from a.Light (count 0) to a.Base (count max).
// The ratio is clamped to [0,1]; maxCount <= 0 is treated as 1.
func ColorFor(count, maxCount int, a Anchors) domain.RGB {
	if maxCount <= 0 {
		maxCount = 1
	}
	t := float64(count) / float64(maxCount)
	switch {
	case t <= 0:
		return a.Light
	case t >= 1:
		return a.Base
	}
	c := toColorful(a.Light).BlendRgb(toColorful(a.Base), t)
	r, g, b := c.RGB255()
	return domain.RGB{R: r, G: g, B: b}
}

// ─── Selection & Hover ──────────────────────────────────────────────────────

var selected = func() map[domain.RegionID]domain.RGB {
	m := make(map[domain.RegionID]domain.RGB)
	for _, r := range region.All() {
		m[r.ID] = MustParseHex(r.LightColor)
	}
	return m
}()

// SelectedColor returns the fixed color of a selected region. The override
// ignores count, mode and theme.
func SelectedColor(r domain.RegionID) (domain.RGB, bool) {
	c, ok := selected[r]
	return c, ok
}

// Brighten lifts a color for hover feedback.
type Brighten func(domain.RGB) domain.RGB

// BrightenAdditive adds 30 to each channel, clamped to 255.
func BrightenAdditive(c domain.RGB) domain.RGB {
	add := func(v uint8) uint8 {
		if v > 255-30 {
			return 255
		}
		return v + 30
	}
	return domain.RGB{R: add(c.R), G: add(c.G), B: add(c.B)}
}

// relativeFactor is d3's brighter(0.3) multiplier.
var relativeFactor = math.Pow(1/0.7, 0.3)

// BrightenRelative scales each channel by (1/0.7)^0.3, clamped to 255.
func BrightenRelative(c domain.RGB) domain.RGB {
	scale := func(v uint8) uint8 {
		return uint8(math.Min(255, math.Round(float64(v)*relativeFactor)))
	}
	return domain.RGB{R: scale(c.R), G: scale(c.G), B: scale(c.B)}
}

// ParseBrighten maps a config name to a Brighten function.
func ParseBrighten(name string) (Brighten, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "additive":
		return BrightenAdditive, nil
	case "relative":
		return BrightenRelative, nil
	}
	return nil, fmt.Errorf("unknown hover brighten %q (want additive or relative)", name)
}

// ─── Palette ────────────────────────────────────────────────────────────────

// Palette resolves the final fill of a region under one mode and theme.
type Palette struct {
	Mode     domain.ViewMode
	Theme    domain.Theme
	Brighten Brighten
}

// Fill applies, in order: the selected override, the fallback for regions
// without data (present=false or empty region), the interpolated scale, and
// finally the hover brighten.
func (p Palette) Fill(r domain.RegionID, count int, present bool, maxCount int, sel domain.Selection) domain.RGB {
	if sel.IsSelected(r) {
		if c, ok := SelectedColor(r); ok {
			return c
		}
	}
	var c domain.RGB
	if r == "" || !present {
		c = Fallback(p.Theme)
	} else {
		c = ColorFor(count, maxCount, AnchorsFor(p.Mode, p.Theme))
	}
	if sel.IsHovered(r) {
		b := p.Brighten
		if b == nil {
			b = BrightenAdditive
		}
		c = b(c)
	}
	return c
}

// ─── Hex ────────────────────────────────────────────────────────────────────

// ParseHex parses "#RRGGBB" or "#RGB".
func ParseHex(s string) (domain.RGB, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return domain.RGB{}, fmt.Errorf("%w: %q", domain.ErrInvalidColor, s)
	}
	r, g, b := c.RGB255()
	return domain.RGB{R: r, G: g, B: b}, nil
}

// MustParseHex is ParseHex for package-level tables.
func MustParseHex(s string) domain.RGB {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func mustAnchors(light, base string) Anchors {
	return Anchors{Light: MustParseHex(light), Base: MustParseHex(base)}
}

func toColorful(c domain.RGB) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}
