package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/geo"
	"github.com/capx-network/capmap/internal/infra/region"
)

// shapeElements are filled when nested inside an identified country group.
var shapeElements = map[string]bool{
	"path": true, "polygon": true, "polyline": true,
	"rect": true, "circle": true, "ellipse": true,
}

// FlatRenderer recolors a pre-rendered SVG map. A country element is any
// element whose id, or one of whose class tokens, is a taxonomy code in any
// case or another alpha-3 code in upper case. Countries outside the taxonomy
// are painted with region "".
type FlatRenderer struct {
	doc     *geo.Document
	vp      Viewport
	owners  map[*geo.Node]string // identified country elements
	fills   map[*geo.Node]string // elements whose fill is overwritten
	regions map[string]domain.RegionID // mapped countries only
}

// NewFlat returns a flat renderer with no shapes.
func NewFlat() *FlatRenderer {
	return &FlatRenderer{regions: map[string]domain.RegionID{}}
}

// Style is StyleFlat.
func (r *FlatRenderer) Style() Style { return StyleFlat }

// Build indexes the country elements of g.Flat. The document is shared and
// never modified.
func (r *FlatRenderer) Build(g Geometry, vp Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("invalid viewport %gx%g", vp.Width, vp.Height)
	}
	r.vp = vp
	r.doc = g.Flat
	r.owners = make(map[*geo.Node]string)
	r.fills = make(map[*geo.Node]string)
	r.regions = make(map[string]domain.RegionID)
	if r.doc == nil || r.doc.Root == nil {
		r.doc = nil
		return nil
	}

	var walk func(n *geo.Node, inherited string)
	walk = func(n *geo.Node, inherited string) {
		if n.Kind != geo.ElementNode {
			return
		}
		var code string
		if n != r.doc.Root {
			code = countryOf(n)
		}
		if code != "" {
			r.owners[n] = code
			r.fills[n] = code
			if reg, ok := region.RegionOfCountry(code); ok {
				r.regions[code] = reg
			}
		} else if inherited != "" && shapeElements[n.Name.Local] {
			r.fills[n] = inherited
		}
		if code == "" {
			code = inherited
		}
		for _, c := range n.Children {
			walk(c, code)
		}
	}
	walk(r.doc.Root, "")
	return nil
}

// countryOf returns the alpha-3 code identifying n, or "".
func countryOf(n *geo.Node) string {
	if id, ok := n.Attr("id"); ok {
		if code, ok := countryToken(strings.TrimSpace(id)); ok {
			return code
		}
	}
	if class, ok := n.Attr("class"); ok {
		for _, tok := range strings.Fields(class) {
			if code, ok := countryToken(tok); ok {
				return code
			}
		}
	}
	return ""
}

// countryToken accepts taxonomy codes in any case and other alpha-3 codes in
// upper case only, so ids and classes like "map" or "sea" are not countries.
func countryToken(tok string) (string, bool) {
	code := strings.ToUpper(tok)
	if _, ok := region.RegionOfCountry(code); ok {
		return code, true
	}
	return code, tok == code && region.IsAlpha3(code)
}

// Regions maps each identified country code to its region. Countries
// outside the taxonomy are omitted.
func (r *FlatRenderer) Regions() map[string]domain.RegionID {
	out := make(map[string]domain.RegionID, len(r.regions))
	for k, v := range r.regions {
		out[k] = v
	}
	return out
}

// Shapes is the number of identified country elements.
func (r *FlatRenderer) Shapes() int { return len(r.owners) }

// Paint writes the document with country fills overwritten. SouthUp wraps
// the content in a 180° rotation about the viewBox center.
func (r *FlatRenderer) Paint(w io.Writer, fill FillFunc, f Frame) error {
	if r.doc == nil {
		return writeEmpty(w, r.vp)
	}

	colors := make(map[string]domain.RGB, len(r.regions))
	colorOf := func(code string) domain.RGB {
		c, ok := colors[code]
		if !ok {
			c = fill(code, r.regions[code])
			colors[code] = c
		}
		return c
	}

	rewrite := func(n *geo.Node) []xml.Attr {
		if n == r.doc.Root {
			return r.rootAttrs()
		}
		code, ok := r.fills[n]
		if !ok {
			return n.Attrs
		}
		attrs := make([]xml.Attr, 0, len(n.Attrs)+3)
		for _, a := range n.Attrs {
			if a.Name.Space != "" {
				attrs = append(attrs, a)
				continue
			}
			switch a.Name.Local {
			case "fill", "data-country", "data-region":
				continue
			case "style":
				if s := stripFill(a.Value); s != "" {
					attrs = append(attrs, xml.Attr{Name: a.Name, Value: s})
				}
				continue
			}
			attrs = append(attrs, a)
		}
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "fill"}, Value: colorOf(code).Hex()})
		if _, owner := r.owners[n]; owner {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "data-country"}, Value: code})
			if reg := r.regions[code]; reg != "" {
				attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "data-region"}, Value: string(reg)})
			}
		}
		return attrs
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	for _, n := range r.doc.Prolog {
		if err := geo.WriteNode(w, n, nil); err != nil {
			return err
		}
	}
	root := r.doc.Root
	if err := geo.WriteStart(w, root, rewrite(root), false); err != nil {
		return err
	}
	if f.SouthUp {
		cx, cy := r.center()
		if _, err := fmt.Fprintf(w, `<g transform="rotate(180 %s %s)">`, num(cx), num(cy)); err != nil {
			return err
		}
	}
	for _, c := range root.Children {
		if err := geo.WriteNode(w, c, rewrite); err != nil {
			return err
		}
	}
	if f.SouthUp {
		if _, err := io.WriteString(w, "</g>"); err != nil {
			return err
		}
	}
	return geo.WriteEnd(w, root)
}

// rootAttrs sizes the root to the viewport, keeping or adding a viewBox so
// the map scales.
func (r *FlatRenderer) rootAttrs() []xml.Attr {
	root := r.doc.Root
	attrs := make([]xml.Attr, 0, len(root.Attrs)+1)
	hasViewBox := false
	for _, a := range root.Attrs {
		if a.Name.Space == "" {
			switch a.Name.Local {
			case "width", "height":
				continue
			case "viewBox":
				hasViewBox = true
			}
		}
		attrs = append(attrs, a)
	}
	if !hasViewBox {
		if minX, minY, w, h, ok := r.doc.ViewBox(); ok {
			attrs = append(attrs, xml.Attr{
				Name:  xml.Name{Local: "viewBox"},
				Value: fmt.Sprintf("%s %s %s %s", num(minX), num(minY), num(w), num(h)),
			})
		}
	}
	return append(attrs,
		xml.Attr{Name: xml.Name{Local: "width"}, Value: num(r.vp.Width)},
		xml.Attr{Name: xml.Name{Local: "height"}, Value: num(r.vp.Height)},
	)
}

func (r *FlatRenderer) center() (float64, float64) {
	if minX, minY, w, h, ok := r.doc.ViewBox(); ok {
		return minX + w/2, minY + h/2
	}
	return r.vp.Width / 2, r.vp.Height / 2
}

// stripFill removes fill declarations from an inline style.
func stripFill(style string) string {
	var keep []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "fill") {
			continue
		}
		keep = append(keep, decl)
	}
	return strings.Join(keep, ";")
}
