package markup

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// RootName is the element name given to the synthetic root of a parsed page.
const RootName = "#document"

// Parse reads an HTML document and returns its element tree. The root is a
// synthetic element named RootName holding the document's top-level nodes.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromHTML(doc), nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// FromHTML converts an x/net/html tree. Comments, doctypes and raw nodes are
// dropped.
func FromHTML(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		return Text(h.Data)
	case html.DocumentNode:
		root := &Node{Kind: ElementNode, Tag: TagOther, Name: RootName}
		appendChildren(root, h)
		return root
	case html.ElementNode:
		attrs := make([]Attr, 0, len(h.Attr))
		for _, a := range h.Attr {
			attrs = append(attrs, Attr{Key: a.Key, Val: a.Val})
		}
		n := Element(h.Data, attrs)
		appendChildren(n, h)
		return n
	}
	return nil
}

func appendChildren(n *Node, h *html.Node) {
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if child := FromHTML(c); child != nil {
			n.Append(child)
		}
	}
}
