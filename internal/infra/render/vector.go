package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/region"
)

const (
	// maxLat keeps Web-Mercator finite.
	maxLat = 85.0
	// centerLat is the latitude placed at the vertical center of the map.
	centerLat = 15.0
	// mercatorHalf is half the Web-Mercator world width in meters.
	mercatorHalf = math.Pi * 6378137.0
)

type vectorShape struct {
	code   string
	name   string
	region domain.RegionID
	d      string
}

// VectorRenderer projects GeoJSON country boundaries.
type VectorRenderer struct {
	vp      Viewport
	shapes  []vectorShape
	regions map[string]domain.RegionID
}

// NewVector returns a vector renderer with no shapes.
func NewVector() *VectorRenderer {
	return &VectorRenderer{regions: map[string]domain.RegionID{}}
}

// Style is StyleVector.
func (v *VectorRenderer) Style() Style { return StyleVector }

// Build projects every country into vp. The full longitude range spans the
// viewport width.
func (v *VectorRenderer) Build(g Geometry, vp Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("invalid viewport %gx%g", vp.Width, vp.Height)
	}
	v.vp = vp
	v.shapes = nil
	v.regions = make(map[string]domain.RegionID)
	if g.Vector == nil {
		return nil
	}

	proj := fitMercator(vp)
	for _, c := range g.Vector.Countries {
		mp := project.MultiPolygon(c.Geometry.Clone(), proj)
		d := pathData(mp)
		if d == "" {
			continue
		}
		r, _ := region.RegionOfCountry(c.Code)
		v.shapes = append(v.shapes, vectorShape{code: c.Code, name: c.Name, region: r, d: d})
		if r != "" {
			v.regions[c.Code] = r
		}
	}
	return nil
}

// Regions maps each shape's country code to its region.
func (v *VectorRenderer) Regions() map[string]domain.RegionID {
	out := make(map[string]domain.RegionID, len(v.regions))
	for k, r := range v.regions {
		out[k] = r
	}
	return out
}

// Shapes is the number of projected countries.
func (v *VectorRenderer) Shapes() int { return len(v.shapes) }

// Paint writes one <path> per country inside a zoom/pan group.
func (v *VectorRenderer) Paint(w io.Writer, fill FillFunc, f Frame) error {
	if len(v.shapes) == 0 {
		return writeEmpty(w, v.vp)
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" class="capmap capmap-vector" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(v.vp.Width), num(v.vp.Height), num(v.vp.Width), num(v.vp.Height))

	zoom := ClampZoom(f.Zoom)
	if zoom != 1 || f.PanX != 0 || f.PanY != 0 {
		cx, cy := v.vp.Width/2, v.vp.Height/2
		fmt.Fprintf(&b, `<g transform="translate(%s %s) scale(%s) translate(%s %s)">`,
			num(cx+f.PanX), num(cy+f.PanY), num(zoom), num(-cx), num(-cy))
	} else {
		b.WriteString("<g>")
	}

	for _, s := range v.shapes {
		c := fill(s.code, s.region)
		fmt.Fprintf(&b, `<path d="%s" fill="%s" data-country="%s"`, s.d, c.Hex(), s.code)
		if s.region != "" {
			fmt.Fprintf(&b, ` data-region="%s"`, s.region)
		}
		if s.name == "" {
			b.WriteString("/>")
			continue
		}
		b.WriteString("><title>")
		_ = xml.EscapeText(&b, []byte(s.name))
		b.WriteString("</title></path>")
	}
	b.WriteString("</g></svg>")

	_, err := io.WriteString(w, b.String())
	return err
}

// fitMercator maps WGS84 lon/lat to viewport pixels: Web-Mercator scaled so
// that 360° of longitude spans vp.Width, centered on centerLat.
func fitMercator(vp Viewport) orb.Projection {
	scale := vp.Width / (2 * mercatorHalf)
	center := project.WGS84.ToMercator(orb.Point{0, centerLat})
	return func(p orb.Point) orb.Point {
		lat := math.Max(-maxLat, math.Min(maxLat, p.Lat()))
		m := project.WGS84.ToMercator(orb.Point{p.Lon(), lat})
		return orb.Point{
			vp.Width/2 + m.X()*scale,
			vp.Height/2 + (center.Y()-m.Y())*scale,
		}
	}
}

// pathData encodes projected polygons as SVG path data. Rings with fewer
// than three points are dropped.
func pathData(mp orb.MultiPolygon) string {
	var buf []byte
	for _, poly := range mp {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			for i, p := range ring {
				if i == 0 {
					buf = append(buf, 'M')
				} else {
					buf = append(buf, 'L')
				}
				buf = strconv.AppendFloat(buf, round1(p.X()), 'f', 1, 64)
				buf = append(buf, ',')
				buf = strconv.AppendFloat(buf, round1(p.Y()), 'f', 1, 64)
			}
			buf = append(buf, 'Z')
		}
	}
	return string(buf)
}

// round1 rounds to one decimal and folds -0 into 0.
func round1(f float64) float64 {
	f = math.Round(f*10) / 10
	if f == 0 {
		return 0
	}
	return f
}
