// Package dom is a small mutable HTML document used as the dashboard's
// rendering surface. Callers address elements by id; every mutation runs
// under the document lock. Text set through SetText or Text nodes is escaped
// when the document is rendered.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoElement is returned when no element carries the requested id
var ErrNoElement = errors.New("element not found")

// Document is an HTML page held in memory
type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Parse builds a document from a full HTML page
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// MustParse parses a static page skeleton and panics on error
func MustParse(page string) *Document {
	d, err := Parse(strings.NewReader(page))
	if err != nil {
		panic(err)
	}
	return d
}

// Render writes the page
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the page into a string
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// Update runs fn with the element carrying id, under the write lock
func (d *Document) Update(id string, fn func(n *html.Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := findByID(d.root, id)
	if n == nil {
		return fmt.Errorf("%w: #%s", ErrNoElement, id)
	}
	return fn(n)
}

// Has reports whether an element with id exists
func (d *Document) Has(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return findByID(d.root, id) != nil
}

// SetText replaces the children of an element with a single text node
func (d *Document) SetText(id, text string) error {
	return d.Update(id, func(n *html.Node) error {
		removeChildren(n)
		n.AppendChild(Text(text))
		return nil
	})
}

// ReplaceChildren swaps the children of an element for nodes
func (d *Document) ReplaceChildren(id string, nodes ...*html.Node) error {
	return d.Update(id, func(n *html.Node) error {
		removeChildren(n)
		for _, c := range nodes {
			n.AppendChild(c)
		}
		return nil
	})
}

// SetAttr sets an attribute on an element
func (d *Document) SetAttr(id, key, val string) error {
	return d.Update(id, func(n *html.Node) error {
		SetAttr(n, key, val)
		return nil
	})
}

// Attr reads an attribute; ok is false when the element or the attribute
// is missing.
func (d *Document) Attr(id, key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := findByID(d.root, id)
	if n == nil {
		return "", false
	}
	return GetAttr(n, key)
}

// AppendToBody adds a node as the last child of <body>
func (d *Document) AppendToBody(n *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	body := findAtom(d.root, atom.Body)
	if body == nil {
		return fmt.Errorf("%w: body", ErrNoElement)
	}
	body.AppendChild(n)
	return nil
}

// Remove detaches the element with id from the document
func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := findByID(d.root, id)
	if n == nil || n.Parent == nil {
		return false
	}
	n.Parent.RemoveChild(n)
	return true
}

// Count returns the number of nodes matching an XPath expression.
// Invalid expressions count as zero.
func (d *Document) Count(expr string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return 0
	}
	return len(nodes)
}

// Texts returns the inner text of every node matching an XPath expression
func (d *Document) Texts(expr string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, htmlquery.InnerText(n))
	}
	return out
}

// OuterHTML renders the element carrying id
func (d *Document) OuterHTML(id string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := findByID(d.root, id)
	if n == nil {
		return ""
	}
	return htmlquery.OutputHTML(n, true)
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		if v, ok := GetAttr(n, "id"); ok && v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}

func removeChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}
