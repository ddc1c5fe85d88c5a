// Package markdown serializes element trees from chat interfaces into
// Markdown text.
package markdown

import (
	"strconv"
	"strings"

	"github.com/dgallion1/chatmd/internal/codeblock"
	"github.com/dgallion1/chatmd/internal/markup"
)

// Convert renders n and its subtree as Markdown. It never mutates the tree
// and holds no state between calls.
func Convert(n *markup.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == markup.TextNode {
		return n.Data
	}

	switch n.Tag {
	case markup.TagH1, markup.TagH2, markup.TagH3, markup.TagH4:
		return "\n" + strings.Repeat("#", n.Tag.HeadingLevel()) + " " + children(n) + "\n"

	case markup.TagP, markup.TagUL, markup.TagOL:
		return "\n" + children(n) + "\n"

	case markup.TagLI:
		return listItem(n)

	case markup.TagA:
		text := n.TextContent()
		if href := n.Attr("href"); href != "" {
			return "[" + text + "](" + href + ")"
		}
		return text

	case markup.TagStrong, markup.TagB:
		return "**" + children(n) + "**"

	case markup.TagEm, markup.TagI:
		return "*" + children(n) + "*"

	case markup.TagCode:
		if n.Closest(markup.TagPre) != nil {
			return n.TextContent()
		}
		return "`" + strings.TrimSpace(strings.ReplaceAll(n.TextContent(), "`", "\\`")) + "`"

	case markup.TagSpan:
		if hasColorStyle(n.Attr("style")) {
			return n.OuterHTML()
		}
		return children(n)

	case markup.TagPre:
		b := codeblock.Reconstruct(n)
		return "\n\n```" + b.Language + "\n" + b.Code + "\n```\n\n"
	}

	return children(n)
}

func children(n *markup.Node) string {
	var buf strings.Builder
	for _, c := range n.Children {
		buf.WriteString(Convert(c))
	}
	return buf.String()
}

// listItem prefixes an LI according to its immediate parent: "- " under UL,
// its 1-based position among sibling LIs under OL, nothing otherwise.
func listItem(n *markup.Node) string {
	parent := n.Parent()
	switch {
	case parent.IsElement(markup.TagUL):
		return "- " + children(n) + "\n"
	case parent.IsElement(markup.TagOL):
		return strconv.Itoa(itemIndex(parent, n)) + ". " + children(n) + "\n"
	}
	return children(n)
}

func itemIndex(ol, li *markup.Node) int {
	k := 0
	for _, c := range ol.Children {
		if c.IsElement(markup.TagLI) {
			k++
		}
		if c == li {
			break
		}
	}
	return k
}

// hasColorStyle reports whether an inline style declares the color property.
func hasColorStyle(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, _, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(prop), "color") {
			return true
		}
	}
	return false
}
