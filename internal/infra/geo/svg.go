package geo

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ─── SVG Document ───────────────────────────────────────────────────────────
// The flat map is kept as a raw token tree so it can be written back with
// its namespace prefixes and attribute case intact.

// NodeKind classifies a Node.
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Node is one node of a parsed SVG document.
type Node struct {
	Kind     NodeKind
	Name     xml.Name // raw prefix in Space
	Attrs    []xml.Attr
	Children []*Node
	Data     string // text, comment or directive body; procinst instruction
}

// Attr returns the value of the attribute with the given local name and no
// prefix.
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Document is a parsed SVG file.
type Document struct {
	Prolog []*Node // nodes before the root element
	Root   *Node
}

// ParseSVG parses an SVG document.
func ParseSVG(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity

	doc := &Document{}
	var stack []*Node
	appendNode := func(n *Node) {
		if len(stack) == 0 {
			if n.Kind == ElementNode {
				doc.Root = n
			} else if doc.Root == nil {
				doc.Prolog = append(doc.Prolog, n)
			}
			return
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, n)
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && doc.Root != nil {
				return nil, errors.New("parse svg: multiple root elements")
			}
			n := &Node{Kind: ElementNode, Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			appendNode(n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse svg: unexpected </%s>", qualified(t.Name))
			}
			if top := stack[len(stack)-1]; top.Name != t.Name {
				return nil, fmt.Errorf("parse svg: </%s> closes <%s>", qualified(t.Name), qualified(top.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			appendNode(&Node{Kind: TextNode, Data: string(t)})
		case xml.Comment:
			appendNode(&Node{Kind: CommentNode, Data: string(t)})
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
			appendNode(&Node{Kind: ProcInstNode, Name: xml.Name{Local: t.Target}, Data: string(t.Inst)})
		case xml.Directive:
			appendNode(&Node{Kind: DirectiveNode, Data: string(t)})
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("parse svg: unclosed <%s>", qualified(stack[len(stack)-1].Name))
	}
	if doc.Root == nil || doc.Root.Name.Local != "svg" {
		return nil, errors.New("parse svg: root element is not <svg>")
	}
	return doc, nil
}

// Elements counts the element nodes of the document.
func (d *Document) Elements() int {
	if d == nil || d.Root == nil {
		return 0
	}
	n := 0
	d.Walk(func(*Node) { n++ })
	return n
}

// Walk visits every element depth first, root included.
func (d *Document) Walk(fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Kind != ElementNode {
			return
		}
		fn(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	if d != nil && d.Root != nil {
		walk(d.Root)
	}
}

// ViewBox returns the root viewBox, falling back to 0 0 width height.
func (d *Document) ViewBox() (minX, minY, width, height float64, ok bool) {
	if d == nil || d.Root == nil {
		return 0, 0, 0, 0, false
	}
	if vb, found := d.Root.Attr("viewBox"); found {
		f := strings.FieldsFunc(vb, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
		if len(f) == 4 {
			var vals [4]float64
			var err error
			for i := range f {
				if vals[i], err = strconv.ParseFloat(f[i], 64); err != nil {
					break
				}
			}
			if err == nil && vals[2] > 0 && vals[3] > 0 {
				return vals[0], vals[1], vals[2], vals[3], true
			}
		}
	}
	w, wok := parseLength(d.Root, "width")
	h, hok := parseLength(d.Root, "height")
	if wok && hok {
		return 0, 0, w, h, true
	}
	return 0, 0, 0, 0, false
}

func parseLength(n *Node, attr string) (float64, bool) {
	v, ok := n.Attr(attr)
	if !ok {
		return 0, false
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// ─── Writing ────────────────────────────────────────────────────────────────

// AttrFunc rewrites the attributes of an element as it is written. It
// returns the attributes to emit.
type AttrFunc func(n *Node) []xml.Attr

// WriteStart writes the start tag of n with attrs. selfClose writes "/>".
func WriteStart(w io.Writer, n *Node, attrs []xml.Attr, selfClose bool) error {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(qualified(n.Name))
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(qualified(a.Name))
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Value))
		b.WriteByte('"')
	}
	if selfClose {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteEnd writes the end tag of n.
func WriteEnd(w io.Writer, n *Node) error {
	_, err := io.WriteString(w, "</"+qualified(n.Name)+">")
	return err
}

// WriteNode writes n and its subtree. rewrite may be nil.
func WriteNode(w io.Writer, n *Node, rewrite AttrFunc) error {
	switch n.Kind {
	case TextNode:
		_, err := io.WriteString(w, textEscaper.Replace(n.Data))
		return err
	case CommentNode:
		_, err := io.WriteString(w, "<!--"+n.Data+"-->")
		return err
	case ProcInstNode:
		s := "<?" + n.Name.Local
		if n.Data != "" {
			s += " " + n.Data
		}
		_, err := io.WriteString(w, s+"?>")
		return err
	case DirectiveNode:
		_, err := io.WriteString(w, "<!"+n.Data+">")
		return err
	}

	attrs := n.Attrs
	if rewrite != nil {
		attrs = rewrite(n)
	}
	if len(n.Children) == 0 {
		return WriteStart(w, n, attrs, true)
	}
	if err := WriteStart(w, n, attrs, false); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := WriteNode(w, c, rewrite); err != nil {
			return err
		}
	}
	return WriteEnd(w, n)
}

// Write writes the whole document.
func (d *Document) Write(w io.Writer, rewrite AttrFunc) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	for _, n := range d.Prolog {
		if err := WriteNode(w, n, rewrite); err != nil {
			return err
		}
	}
	return WriteNode(w, d.Root, rewrite)
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;",
	)
)
