package features

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr is a key/value attribute shorthand.
type Attr struct {
	Key, Val string
}

// Element builds an element node.
func Element(tag string, attrs ...Attr) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for _, a := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	return n
}

// Text builds a text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Icon is an <i> with the given classes.
func Icon(classes string) *html.Node {
	return Element("i", Attr{"class", classes})
}

// Button is a titled button holding children.
func Button(id, title string, children ...*html.Node) *html.Node {
	b := Element("button", Attr{"id", id}, Attr{"title", title})
	for _, c := range children {
		b.AppendChild(c)
	}
	return b
}

// Option is one <select> entry.
type Option struct {
	Value, Label string
	Selected     bool
}

// Select is an icon label followed by a <select>.
func Select(id, iconClasses string, options []Option) []*html.Node {
	label := Element("span")
	label.AppendChild(Icon(iconClasses))

	sel := Element("select", Attr{"id", id})
	for _, o := range options {
		opt := Element("option", Attr{"value", o.Value})
		if o.Selected {
			opt.Attr = append(opt.Attr, html.Attribute{Key: "selected"})
		}
		opt.AppendChild(Text(o.Label))
		sel.AppendChild(opt)
	}
	return []*html.Node{label, sel}
}

func renderNode(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Render serializes nodes; used by callers that build controls.
func Render(nodes ...*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		_ = html.Render(&b, n)
	}
	return b.String()
}
