// Package layering patches the stacking order of the scheduling overlay so its
// close control stays reachable.
package layering

import (
	"bytes"
	"io"
	"slices"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// MutationType mirrors the DOM mutation record types.
type MutationType int

const (
	ChildList MutationType = iota
	Attributes
)

func (t MutationType) String() string {
	if t == Attributes {
		return "attributes"
	}
	return "childList"
}

// Mutation describes one change made through a Document.
type Mutation struct {
	Type      MutationType
	Target    *html.Node
	Added     []*html.Node
	Removed   []*html.Node
	Attribute string
	OldValue  string
}

// Document is a parsed HTML tree whose changes are published to subscribers.
// It is not safe for concurrent use.
type Document struct {
	root *html.Node
	subs []func(Mutation)
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse html")
	}
	return NewDocument(root), nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// NewDocument wraps an existing tree.
func NewDocument(root *html.Node) *Document {
	return &Document{root: root}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element, or the root when there is none.
func (d *Document) Body() *html.Node {
	if body := htmlquery.FindOne(d.root, "//body"); body != nil {
		return body
	}
	return d.root
}

// Subscribe registers fn for every later mutation. There is no unsubscribe.
func (d *Document) Subscribe(fn func(Mutation)) {
	d.subs = append(d.subs, fn)
}

func (d *Document) publish(m Mutation) {
	for _, fn := range slices.Clone(d.subs) {
		fn(m)
	}
}

// Append detaches child from its current parent and appends it to parent.
func (d *Document) Append(parent, child *html.Node) {
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.AppendChild(child)
	d.publish(Mutation{Type: ChildList, Target: parent, Added: []*html.Node{child}})
}

// AppendHTML parses fragment in the context of parent and appends the
// resulting nodes as one mutation.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	ctx := parent
	if ctx.Type != html.ElementNode {
		ctx = d.Body()
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse fragment")
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.publish(Mutation{Type: ChildList, Target: parent, Added: nodes})
	return nodes, nil
}

// Remove detaches n from the tree. It reports false when n was already detached.
func (d *Document) Remove(n *html.Node) bool {
	parent := n.Parent
	if parent == nil {
		return false
	}
	parent.RemoveChild(n)
	d.publish(Mutation{Type: ChildList, Target: parent, Removed: []*html.Node{n}})
	return true
}

// Attached reports whether n is still reachable from the document root.
func (d *Document) Attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// SetAttr sets an attribute and publishes a mutation when the value changes.
func (d *Document) SetAttr(n *html.Node, key, val string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return false
			}
			n.Attr[i].Val = val
			d.publish(Mutation{Type: Attributes, Target: n, Attribute: key, OldValue: a.Val})
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.publish(Mutation{Type: Attributes, Target: n, Attribute: key})
	return true
}

// Declaration is one inline style property.
type Declaration struct {
	Property string
	Value    string
}

// Style parses the inline style attribute of n.
func Style(n *html.Node) []Declaration {
	var decls []Declaration
	for _, part := range strings.Split(htmlquery.SelectAttr(n, "style"), ";") {
		prop, val, ok := strings.Cut(part, ":")
		prop = strings.ToLower(strings.TrimSpace(prop))
		if !ok || prop == "" {
			continue
		}
		decls = append(decls, Declaration{Property: prop, Value: strings.TrimSpace(val)})
	}
	return decls
}

// StyleValue returns the inline value of prop, or "".
func StyleValue(n *html.Node, prop string) string {
	for _, d := range Style(n) {
		if d.Property == prop {
			return d.Value
		}
	}
	return ""
}

// SetStyle merges decls into the inline style of n, keeping the order of
// existing properties. Nothing is published when the result is unchanged.
func (d *Document) SetStyle(n *html.Node, decls ...Declaration) bool {
	current := Style(n)
	for _, decl := range decls {
		replaced := false
		for i := range current {
			if current[i].Property == decl.Property {
				current[i].Value = decl.Value
				replaced = true
				break
			}
		}
		if !replaced {
			current = append(current, decl)
		}
	}

	parts := make([]string, len(current))
	for i, c := range current {
		parts[i] = c.Property + ": " + c.Value
	}
	style := strings.Join(parts, "; ")
	if style != "" {
		style += ";"
	}
	if style == htmlquery.SelectAttr(n, "style") {
		return false
	}
	return d.SetAttr(n, "style", style)
}

// Render writes the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
