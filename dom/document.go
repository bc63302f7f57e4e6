// Package dom assigns stable identities to document elements and decorates
// document with results of the conversion.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"twc/style"
)

const (
	// DefaultAttribute carries element identity in decorated document.
	DefaultAttribute = "data-twc-id"
	// AuthoredStyleID is id of injected <style> element holding normalized stylesheet.
	AuthoredStyleID = "twc-authored"
)

// ErrNoRoot is returned when document has no element to start numbering from.
var ErrNoRoot = errors.New("document root element not found")

// Document is parsed HTML document with element identities.
type Document struct {
	doc   *html.Node
	attr  string
	elems []*html.Node // identity i is at index i-1
}

// Parse reads HTML document. Unless encoding is forced, it is detected from BOM,
// <meta> declaration or content sniffing.
func Parse(r io.Reader, enc encoding.Encoding) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}

	var rd io.Reader
	if enc != nil {
		rd = transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	} else if rd, err = charset.NewReader(bytes.NewReader(data), "text/html"); err != nil {
		return nil, fmt.Errorf("unable to detect document encoding: %w", err)
	}

	doc, err := html.Parse(rd)
	if err != nil {
		return nil, fmt.Errorf("unable to parse document: %w", err)
	}
	return &Document{doc: doc, attr: DefaultAttribute}, nil
}

// Assign numbers elements starting with root element (first element with root
// tag name in document order) which gets 1, then its descendants depth first,
// parent before children. Identities left by previous runs are replaced, so
// assignment depends only on document structure. Returns number of elements.
func (d *Document) Assign(root, attr string) (int, error) {
	if attr == "" {
		attr = DefaultAttribute
	}
	d.attr = attr

	start := findElement(d.doc, func(n *html.Node) bool { return strings.EqualFold(n.Data, root) })
	if start == nil {
		return 0, fmt.Errorf("%w: <%s>", ErrNoRoot, root)
	}

	walkElements(d.doc, func(n *html.Node) bool {
		removeAttr(n, attr)
		return true
	})

	d.elems = d.elems[:0]
	walkElements(start, func(n *html.Node) bool {
		d.elems = append(d.elems, n)
		setAttr(n, attr, strconv.Itoa(len(d.elems)))
		return true
	})
	return len(d.elems), nil
}

// Count returns number of elements with identities.
func (d *Document) Count() int {
	return len(d.elems)
}

// Attribute returns name of identity attribute.
func (d *Document) Attribute() string {
	return d.attr
}

// Identities returns all assigned identities in ascending order.
func (d *Document) Identities() []style.Identity {
	ids := make([]style.Identity, len(d.elems))
	for i := range d.elems {
		ids[i] = style.Identity(i + 1)
	}
	return ids
}

// Lookup returns element with given identity or nil.
func (d *Document) Lookup(id style.Identity) *html.Node {
	if !id.Valid() || int(id) > len(d.elems) {
		return nil
	}
	return d.elems[id-1]
}

// Selector returns CSS selector matching element with identity.
func (d *Document) Selector(id style.Identity) string {
	return Selector(d.attr, id)
}

// Selector returns CSS selector matching element with identity attribute.
func Selector(attr string, id style.Identity) string {
	return fmt.Sprintf(`[%s="%d"]`, attr, id)
}

// Describe returns short human readable description of element for logs.
func (d *Document) Describe(id style.Identity) string {
	n := d.Lookup(id)
	if n == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(n.Data)
	if v, ok := getAttr(n, "id"); ok && v != "" {
		sb.WriteString("#" + v)
	}
	if v, ok := getAttr(n, "class"); ok {
		for c := range strings.FieldsSeq(v) {
			sb.WriteString("." + c)
		}
	}
	return sb.String()
}

// Title returns text of document <title> element with whitespace collapsed.
func (d *Document) Title() string {
	t := findElement(d.doc, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Prepare removes all stylesheets referenced or embedded in the document and
// injects normalized stylesheet instead. When normalize is not nil it is
// applied to every inline style attribute. Call it before Assign.
func (d *Document) Prepare(stylesheet []byte, normalize func(block string) string) {
	var drop []*html.Node
	walkElements(d.doc, func(n *html.Node) bool {
		switch {
		case n.DataAtom == atom.Style:
			drop = append(drop, n)
			return false
		case n.DataAtom == atom.Link && isStylesheetLink(n):
			drop = append(drop, n)
		}
		return true
	})
	for _, n := range drop {
		n.Parent.RemoveChild(n)
	}

	if normalize != nil {
		walkElements(d.doc, func(n *html.Node) bool {
			if v, ok := getAttr(n, "style"); ok {
				if block := normalize(v); block != "" {
					setAttr(n, "style", block)
				} else {
					removeAttr(n, "style")
				}
			}
			return true
		})
	}

	s := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     atom.Style.String(),
		Attr:     []html.Attribute{{Key: "id", Val: AuthoredStyleID}},
	}
	s.AppendChild(&html.Node{Type: html.TextNode, Data: "\n" + string(stylesheet)})
	head(d.doc).AppendChild(s)
}

// Decorate merges utility classes into class attribute of every element:
// existing classes are kept first, duplicates are dropped. Injected stylesheet
// and inline styles of numbered elements are removed as their effect is now
// expressed by classes. Unless keepIDs is set identity attributes are removed.
func (d *Document) Decorate(classes map[style.Identity]string, keepIDs bool) {
	for i, n := range d.elems {
		if cls := classes[style.Identity(i+1)]; cls != "" {
			old, _ := getAttr(n, "class")
			setAttr(n, "class", mergeClasses(old, cls))
		}
		removeAttr(n, "style")
		if !keepIDs {
			removeAttr(n, d.attr)
		}
	}
	if s := findElement(d.doc, func(n *html.Node) bool {
		v, _ := getAttr(n, "id")
		return n.DataAtom == atom.Style && v == AuthoredStyleID
	}); s != nil {
		s.Parent.RemoveChild(s)
	}
}

// Render writes document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.doc)
}

// Bytes returns rendered document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mergeClasses(existing, added string) string {
	var res []string
	for _, c := range slices.Concat(strings.Fields(existing), strings.Fields(added)) {
		if !slices.Contains(res, c) {
			res = append(res, c)
		}
	}
	return strings.Join(res, " ")
}

func isStylesheetLink(n *html.Node) bool {
	rel, _ := getAttr(n, "rel")
	for r := range strings.FieldsSeq(rel) {
		if strings.EqualFold(r, "stylesheet") {
			return true
		}
	}
	return false
}

// head returns <head> element, html.Parse always synthesizes one for HTML
// documents but fragments may lack it.
func head(doc *html.Node) *html.Node {
	if h := findElement(doc, func(n *html.Node) bool { return n.DataAtom == atom.Head }); h != nil {
		return h
	}
	return doc
}

// walkElements visits element nodes depth first in document order, parent
// before children. When visit returns false children are skipped.
func walkElements(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, visit)
	}
}

func findElement(n *html.Node, match func(*html.Node) bool) (found *html.Node) {
	walkElements(n, func(e *html.Node) bool {
		if found == nil && match(e) {
			found = e
		}
		return found == nil
	})
	return found
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}
