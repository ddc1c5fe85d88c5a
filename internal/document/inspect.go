package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Meta mirrors the frontmatter written by Frontmatter.
type Meta struct {
	Date  string   `yaml:"date" json:"date"`
	Model string   `yaml:"model" json:"model"`
	Topic string   `yaml:"topic" json:"topic"`
	Tags  []string `yaml:"tags" json:"tags"`
}

// Summary describes an exported document as read back from its text.
type Summary struct {
	Meta           Meta     `json:"meta"`
	Title          string   `json:"title"`
	MessageHeaders []string `json:"message_headers"`
	CodeLanguages  []string `json:"code_languages"`
	CodeBlocks     int      `json:"code_blocks"`
}

// Inspect parses an exported document: frontmatter first, then the Markdown
// body. The H1 is the title. A top-level H2 opens a message when it follows
// the title or a message separator; other H2s belong to a message body.
func Inspect(src []byte) (Summary, error) {
	var s Summary
	body, err := frontmatter.Parse(bytes.NewReader(src), &s.Meta)
	if err != nil {
		return Summary{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(body))
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			t := strings.TrimSpace(inlineText(node, body))
			switch node.Level {
			case 1:
				if s.Title == "" {
					s.Title = t
				}
			case 2:
				if node.Parent() == doc && opensMessage(node) {
					s.MessageHeaders = append(s.MessageHeaders, t)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			s.CodeBlocks++
			if lang := string(node.Language(body)); lang != "" {
				s.CodeLanguages = append(s.CodeLanguages, lang)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("walk markdown: %w", err)
	}
	return s, nil
}

func opensMessage(h *ast.Heading) bool {
	switch prev := h.PreviousSibling().(type) {
	case *ast.Heading:
		return prev.Level == 1
	case *ast.ThematicBreak:
		return true
	}
	return false
}

// inlineText flattens a heading's inline children, keeping raw inline HTML
// such as colored author spans.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(src))
		case *ast.String:
			buf.Write(v.Value)
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				buf.Write(seg.Value(src))
			}
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}
