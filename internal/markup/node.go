// Package markup holds the element tree that the Markdown converter walks.
// Trees are built from golang.org/x/net/html parse trees and are read-only
// once constructed.
package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind distinguishes text leaves from elements.
type Kind int

const (
	TextNode Kind = iota
	ElementNode
)

// Tag is the closed set of element names the converter dispatches on.
// Everything else is TagOther and keeps its raw name in Node.Name.
type Tag int

const (
	TagOther Tag = iota
	TagH1
	TagH2
	TagH3
	TagH4
	TagPre
	TagCode
	TagA
	TagStrong
	TagB
	TagEm
	TagI
	TagP
	TagUL
	TagOL
	TagLI
	TagSpan
)

var tagsByAtom = map[atom.Atom]Tag{
	atom.H1:     TagH1,
	atom.H2:     TagH2,
	atom.H3:     TagH3,
	atom.H4:     TagH4,
	atom.Pre:    TagPre,
	atom.Code:   TagCode,
	atom.A:      TagA,
	atom.Strong: TagStrong,
	atom.B:      TagB,
	atom.Em:     TagEm,
	atom.I:      TagI,
	atom.P:      TagP,
	atom.Ul:     TagUL,
	atom.Ol:     TagOL,
	atom.Li:     TagLI,
	atom.Span:   TagSpan,
}

// TagFor maps a lowercase element name to its Tag.
func TagFor(name string) Tag {
	return tagsByAtom[atom.Lookup([]byte(strings.ToLower(name)))]
}

// HeadingLevel returns 1-4 for heading tags and 0 otherwise.
func (t Tag) HeadingLevel() int {
	switch t {
	case TagH1:
		return 1
	case TagH2:
		return 2
	case TagH3:
		return 3
	case TagH4:
		return 4
	}
	return 0
}

// Attr is a single element attribute.
type Attr struct {
	Key string
	Val string
}

// Node is either a text leaf or an element with ordered children.
type Node struct {
	Kind     Kind
	Tag      Tag
	Name     string // lowercase element name, empty for text
	Data     string // text content of a text node
	Attrs    []Attr
	Children []*Node

	// parent is advisory; ownership runs strictly from parent to children.
	parent *Node
}

// Text returns a text leaf.
func Text(s string) *Node {
	return &Node{Kind: TextNode, Data: s}
}

// Element returns an element with the given attributes (key, value pairs)
// and children. Children are re-parented onto the new element.
func Element(name string, attrs []Attr, children ...*Node) *Node {
	name = strings.ToLower(name)
	n := &Node{
		Kind:  ElementNode,
		Tag:   TagFor(name),
		Name:  name,
		Attrs: attrs,
	}
	for _, c := range children {
		n.Append(c)
	}
	return n
}

// Append adds c as the last child of n.
func (n *Node) Append(c *Node) {
	c.parent = n
	n.Children = append(n.Children, c)
}

// Parent returns the enclosing element, or nil at the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsElement reports whether n is an element with tag t.
func (n *Node) IsElement(t Tag) bool {
	return n != nil && n.Kind == ElementNode && n.Tag == t
}

// Attr returns the value of key, or "" when absent.
func (n *Node) Attr(key string) string {
	v, _ := n.LookupAttr(key)
	return v
}

// LookupAttr returns the value of key and whether it was present.
func (n *Node) LookupAttr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Classes returns the whitespace-separated class list.
func (n *Node) Classes() []string {
	return strings.Fields(n.Attr("class"))
}

// HasClass reports whether the class list contains c.
func (n *Node) HasClass(c string) bool {
	for _, have := range n.Classes() {
		if have == c {
			return true
		}
	}
	return false
}

// TextContent concatenates every descendant text leaf in document order.
func (n *Node) TextContent() string {
	if n.Kind == TextNode {
		return n.Data
	}
	var buf strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Kind == TextNode {
			buf.WriteString(n.Data)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

// Closest returns the nearest ancestor (excluding n) with tag t.
func (n *Node) Closest(t Tag) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if p.IsElement(t) {
			return p
		}
	}
	return nil
}

// OuterHTML serializes the subtree rooted at n back to HTML.
func (n *Node) OuterHTML() string {
	var buf strings.Builder
	if err := html.Render(&buf, n.toHTML()); err != nil {
		return n.TextContent()
	}
	return buf.String()
}

func (n *Node) toHTML() *html.Node {
	if n.Kind == TextNode {
		return &html.Node{Type: html.TextNode, Data: n.Data}
	}
	h := &html.Node{
		Type:     html.ElementNode,
		Data:     n.Name,
		DataAtom: atom.Lookup([]byte(n.Name)),
	}
	for _, a := range n.Attrs {
		h.Attr = append(h.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	for _, c := range n.Children {
		h.AppendChild(c.toHTML())
	}
	return h
}
