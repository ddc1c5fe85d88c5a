// Package codeblock recovers source code from rendered, syntax-highlighted
// code blocks.
package codeblock

import (
	"regexp"
	"strings"

	"github.com/dgallion1/chatmd/internal/markup"
)

// Block is a reconstructed fenced code block.
type Block struct {
	Language string
	Code     string
}

var (
	tokenLineSel   = markup.MustCompile(".token-line")
	headerLabelSel = markup.MustCompile(".bg-zinc-800 span.text-xs")
	prismSel       = markup.MustCompile(".prism-code")
	codeSel        = markup.MustCompile("code")

	languageClassRe = regexp.MustCompile(`(?:^|\s)language-(\w+)`)
	allDigitsRe     = regexp.MustCompile(`^\d+$`)
)

// decorationClasses mark gutter and line-number nodes inside token lines.
var decorationClasses = []string{"select-none", "mx-4"}

// Reconstruct recovers the language and source text of a PRE subtree.
// Token-line markup is preferred; otherwise the subtree's text is used.
func Reconstruct(pre *markup.Node) Block {
	lines := pre.QueryAll(tokenLineSel)
	if len(lines) == 0 {
		return Block{
			Language: classLanguage(pre),
			Code:     DedentText(strings.TrimSpace(pre.TextContent())),
		}
	}

	lang := strings.ToLower(pre.QueryText(headerLabelSel))
	if lang == "" {
		lang = classLanguage(pre)
	}

	code := make([]string, 0, len(lines))
	for _, line := range lines {
		code = append(code, NormalizeLine(lineText(line)))
	}
	joined := strings.TrimRight(strings.Join(code, "\n"), " \t\r\n") + "\n"

	return Block{
		Language: lang,
		Code:     DedentText(joined),
	}
}

// classLanguage looks for a language-<name> class on the PRE itself, a
// prism-code element, or a nested CODE element.
func classLanguage(pre *markup.Node) string {
	candidates := []*markup.Node{pre, pre.Query(prismSel), pre.Query(codeSel)}
	for _, n := range candidates {
		if n == nil {
			continue
		}
		if m := languageClassRe.FindStringSubmatch(n.Attr("class")); m != nil {
			return strings.ToLower(m[1])
		}
	}
	return ""
}

func lineText(line *markup.Node) string {
	var buf strings.Builder
	for _, c := range line.Children {
		if isDecoration(c) {
			continue
		}
		switch {
		case c.Kind == markup.TextNode:
			buf.WriteString(c.Data)
		case isNewlineToken(c):
			buf.WriteByte('\n')
		default:
			buf.WriteString(c.TextContent())
		}
	}
	return buf.String()
}

func isDecoration(n *markup.Node) bool {
	if n.Kind != markup.ElementNode {
		return false
	}
	for _, cls := range decorationClasses {
		if n.HasClass(cls) {
			return true
		}
	}
	return n.HasClass("bg-black") && allDigitsRe.MatchString(strings.TrimSpace(n.TextContent()))
}

func isNewlineToken(n *markup.Node) bool {
	if n.HasClass("newline") {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(n.Attr("style")), " ", "")
	return strings.Contains(style, "display:inline-block")
}
