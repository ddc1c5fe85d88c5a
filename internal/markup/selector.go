package markup

import (
	"fmt"
	"strings"
)

// Selector is a small subset of CSS selectors: compound selectors made of an
// optional tag name, .class and [attr] / [attr="value"] parts, joined by the
// descendant combinator (whitespace).
type Selector struct {
	src   string
	parts []compound
}

type compound struct {
	tag     string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key    string
	val    string
	hasVal bool
}

// Compile parses a selector.
func Compile(src string) (Selector, error) {
	sel := Selector{src: src}
	for _, field := range splitCompounds(src) {
		c, err := parseCompound(field)
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: %w", src, err)
		}
		sel.parts = append(sel.parts, c)
	}
	if len(sel.parts) == 0 {
		return Selector{}, fmt.Errorf("selector %q: empty", src)
	}
	return sel, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(src string) Selector {
	s, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Selector) String() string { return s.src }

// IsZero reports whether s was never compiled.
func (s Selector) IsZero() bool { return len(s.parts) == 0 }

// splitCompounds splits on whitespace outside brackets and quotes.
func splitCompounds(src string) []string {
	var (
		out     []string
		cur     strings.Builder
		inBrack bool
		quote   rune
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			if inBrack {
				quote = r
			}
		case r == '[':
			inBrack = true
		case r == ']':
			inBrack = false
		case (r == ' ' || r == '\t' || r == '\n') && !inBrack:
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return out
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	name := func() string {
		start := i
		for i < len(s) && s[i] != '.' && s[i] != '[' {
			i++
		}
		return s[start:i]
	}
	c.tag = strings.ToLower(name())
	if c.tag == "*" {
		c.tag = ""
	}
	for _, r := range c.tag {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return c, fmt.Errorf("invalid tag name %q", c.tag)
		}
	}
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			cls := name()
			if cls == "" {
				return c, fmt.Errorf("empty class at offset %d", i)
			}
			c.classes = append(c.classes, cls)
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute at offset %d", i)
			}
			body := s[i+1 : i+end]
			i += end + 1
			m := attrMatch{key: strings.TrimSpace(body)}
			if k, v, ok := strings.Cut(body, "="); ok {
				m.key = strings.TrimSpace(k)
				m.val = strings.Trim(strings.TrimSpace(v), `"'`)
				m.hasVal = true
			}
			if m.key == "" {
				return c, fmt.Errorf("empty attribute name")
			}
			c.attrs = append(c.attrs, m)
		default:
			return c, fmt.Errorf("unexpected %q at offset %d", s[i], i)
		}
	}
	return c, nil
}

func (c compound) match(n *Node) bool {
	if n == nil || n.Kind != ElementNode {
		return false
	}
	if c.tag != "" && c.tag != n.Name {
		return false
	}
	for _, cls := range c.classes {
		if !n.HasClass(cls) {
			return false
		}
	}
	for _, a := range c.attrs {
		v, ok := n.LookupAttr(a.key)
		if !ok || (a.hasVal && v != a.val) {
			return false
		}
	}
	return true
}

// Match reports whether n matches the selector. Ancestor compounds may match
// anywhere above n.
func (s Selector) Match(n *Node) bool {
	if len(s.parts) == 0 || !s.parts[len(s.parts)-1].match(n) {
		return false
	}
	i := len(s.parts) - 2
	for p := n.parent; p != nil && i >= 0; p = p.parent {
		if s.parts[i].match(p) {
			i--
		}
	}
	return i < 0
}

// QueryAll returns every descendant of n (n excluded) matching s, in document
// order.
func (n *Node) QueryAll(s Selector) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if s.Match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Query returns the first descendant matching s, or nil.
func (n *Node) Query(s Selector) *Node {
	var found *Node
	var walk func(*Node) bool
	walk = func(cur *Node) bool {
		for _, c := range cur.Children {
			if s.Match(c) {
				found = c
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(n)
	return found
}

// QueryText returns the trimmed text content of the first match, or "".
func (n *Node) QueryText(s Selector) string {
	if m := n.Query(s); m != nil {
		return strings.TrimSpace(m.TextContent())
	}
	return ""
}
