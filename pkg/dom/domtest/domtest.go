// Package domtest provides an in-memory dom.Document for tests.
//
// Markup is parsed with golang.org/x/net/html. Layout is not computed:
// element sizes come from data-width and data-height attributes, and an
// element is invisible when it carries the hidden attribute.
//
//	doc := domtest.Must("https://app.example", `
//	    <div id="review-preview" data-width="600" data-height="400">
//	        <img src="/logo.png" alt="Logo">
//	    </div>`)
package domtest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/matzehuels/reviewcraft/pkg/dom"
)

const containerAttr = "data-rc-container"

// Document is an in-memory dom.Document.
type Document struct {
	mu     sync.Mutex
	origin *url.URL
	root   *html.Node
	refs   map[dom.Ref]*html.Node
	nodes  map[*html.Node]dom.Ref

	// Fault injection. Set before use.
	CloneErr  error
	RemoveErr error

	// Recorded calls.
	Waits      []time.Duration
	Settles    []time.Duration
	SetSources int
}

// New parses markup as the body of a document served from origin.
func New(origin, markup string) (*Document, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return &Document{
		origin: u,
		root:   root,
		refs:   make(map[dom.Ref]*html.Node),
		nodes:  make(map[*html.Node]dom.Ref),
	}, nil
}

// Must is New that panics on error.
func Must(origin, markup string) *Document {
	d, err := New(origin, markup)
	if err != nil {
		panic(err)
	}
	return d
}

var _ dom.Document = (*Document)(nil)

// Origin implements dom.Document.
func (d *Document) Origin() string {
	return d.origin.Scheme + "://" + d.origin.Host
}

// Lookup implements dom.Document.
func (d *Document) Lookup(ctx context.Context, id string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := find(d.root, func(n *html.Node) bool { return attr(n, "id") == id })
	if n == nil {
		return dom.Element{}, dom.NotFound(id)
	}
	return dom.Element{
		ID:       id,
		Ref:      d.ref(n),
		Width:    floatAttr(n, "data-width"),
		Height:   floatAttr(n, "data-height"),
		Visible:  !hasAttr(n, "hidden"),
		Children: countChildren(n),
	}, nil
}

// Clone implements dom.Document.
func (d *Document) Clone(ctx context.Context, el dom.Element) (dom.Snapshot, error) {
	if d.CloneErr != nil {
		return dom.Snapshot{}, d.CloneErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	src, ok := d.refs[el.Ref]
	if !ok {
		return dom.Snapshot{}, dom.NotFound(el.ID)
	}
	body := find(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	if body == nil {
		return dom.Snapshot{}, fmt.Errorf("document has no body")
	}

	clone := deepCopy(src)
	removeAttr(clone, "id")
	setAttr(clone, "data-rc-clone-of", el.ID)
	setAttr(clone, "style", fmt.Sprintf("width:%gpx", el.Width))

	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	setAttr(container, containerAttr, "")
	setAttr(container, "style", fmt.Sprintf(
		"position:fixed;left:-10000px;top:0;opacity:0;pointer-events:none;width:%gpx", el.Width))
	container.AppendChild(clone)
	body.AppendChild(container)

	return dom.Snapshot{
		Container: d.ref(container),
		Node:      d.ref(clone),
		ElementID: el.ID,
		Width:     el.Width,
		Height:    el.Height,
		Children:  el.Children,
	}, nil
}

// Images implements dom.Document.
func (d *Document) Images(ctx context.Context, node dom.Ref) ([]dom.ImageRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.refs[node]
	if !ok {
		return nil, fmt.Errorf("unknown node %s", node)
	}
	var out []dom.ImageRef
	for i, img := range images(n) {
		raw := attr(img, "src")
		out = append(out, dom.ImageRef{
			Index:         i,
			Src:           d.resolve(raw),
			OriginalSrc:   raw,
			Alt:           attr(img, "alt"),
			Complete:      !hasAttr(img, "data-loading"),
			NaturalWidth:  int(floatAttr(img, "data-natural-width")),
			NaturalHeight: int(floatAttr(img, "data-natural-height")),
		})
	}
	return out, nil
}

// SetImageSource implements dom.Document.
func (d *Document) SetImageSource(ctx context.Context, node dom.Ref, index int, src string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.refs[node]
	if !ok {
		return fmt.Errorf("unknown node %s", node)
	}
	imgs := images(n)
	if index < 0 || index >= len(imgs) {
		return fmt.Errorf("image index %d out of range (%d images)", index, len(imgs))
	}
	setAttr(imgs[index], "src", src)
	d.SetSources++
	return nil
}

// Remove implements dom.Document.
func (d *Document) Remove(ctx context.Context, ref dom.Ref) error {
	if d.RemoveErr != nil {
		return d.RemoveErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.refs[ref]
	if !ok {
		return nil
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	delete(d.refs, ref)
	delete(d.nodes, n)
	return nil
}

// WaitImages implements dom.Document.
func (d *Document) WaitImages(ctx context.Context, node dom.Ref, timeout time.Duration) error {
	d.mu.Lock()
	d.Waits = append(d.Waits, timeout)
	d.mu.Unlock()
	return ctx.Err()
}

// Settle implements dom.Document.
func (d *Document) Settle(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	d.Settles = append(d.Settles, dur)
	d.mu.Unlock()
	return ctx.Err()
}

// Containers returns the number of off-screen containers still attached.
func (d *Document) Containers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	walk(d.root, func(node *html.Node) {
		if hasAttr(node, containerAttr) {
			n++
		}
	})
	return n
}

// Anchors returns the number of <a> elements in the document.
func (d *Document) Anchors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	walk(d.root, func(node *html.Node) {
		if node.DataAtom == atom.A {
			n++
		}
	})
	return n
}

// ImageSources returns the src attributes of the images under the element
// with the given id.
func (d *Document) ImageSources(id string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := find(d.root, func(n *html.Node) bool { return attr(n, "id") == id })
	if n == nil {
		return nil
	}
	var out []string
	for _, img := range images(n) {
		out = append(out, attr(img, "src"))
	}
	return out
}

// Node returns the node for ref, or nil.
func (d *Document) Node(ref dom.Ref) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs[ref]
}

// HTML renders the whole document.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, d.root)
	return buf.String()
}

func (d *Document) ref(n *html.Node) dom.Ref {
	if r, ok := d.nodes[n]; ok {
		return r
	}
	r := dom.Ref(uuid.NewString())
	d.refs[r] = n
	d.nodes[n] = r
	return r
}

func (d *Document) resolve(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return d.origin.ResolveReference(u).String()
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func images(n *html.Node) []*html.Node {
	var out []*html.Node
	walk(n, func(c *html.Node) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Img {
			out = append(out, c)
		}
	})
	return out
}

func countChildren(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// deepCopy copies n and its subtree.
func deepCopy(n *html.Node) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	out.Attr = append(out.Attr, n.Attr...)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(deepCopy(c))
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func floatAttr(n *html.Node, key string) float64 {
	v, _ := strconv.ParseFloat(attr(n, key), 64)
	return v
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}
