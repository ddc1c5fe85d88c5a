package codeblock

import (
	"regexp"
	"strings"
)

// LineStep is one pure stage of token-line normalization.
type LineStep func(string) string

// LinePipeline is applied, in order, to each joined token line.
var LinePipeline = []LineStep{
	StripLeading,
	StripTrailing,
	CollapseBlankRuns,
	TrimEdges,
}

// NormalizeLine runs s through LinePipeline.
func NormalizeLine(s string) string {
	for _, step := range LinePipeline {
		s = step(s)
	}
	return s
}

var leadingBlankRe = regexp.MustCompile(`^[ \t\r\f\v]*\n(?:[ \t\r\f\v]*\n)*`)

// StripLeading removes whitespace that precedes the first content line of
// s, i.e. leading blank lines. Indentation of the first content line stays.
func StripLeading(s string) string {
	if strings.TrimSpace(s) == "" {
		return strings.TrimLeft(s, " \t\r\f\v\n")
	}
	return leadingBlankRe.ReplaceAllString(s, "")
}

// StripTrailing removes trailing spaces and tabs, keeping newlines.
func StripTrailing(s string) string {
	return strings.TrimRight(s, " \t")
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// CollapseBlankRuns turns runs of three or more newlines into two.
func CollapseBlankRuns(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// TrimEdges removes leading and trailing newlines.
func TrimEdges(s string) string {
	return strings.Trim(s, "\n")
}

// Dedent strips the smallest leading-whitespace run found on any non-blank
// line from every line. Blank lines shorter than that margin become empty.
func Dedent(lines []string) []string {
	margin := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := indentWidth(l)
		if margin < 0 || n < margin {
			margin = n
		}
	}
	out := make([]string, len(lines))
	if margin <= 0 {
		copy(out, lines)
		return out
	}
	for i, l := range lines {
		if len(l) <= margin {
			out[i] = ""
			continue
		}
		out[i] = l[margin:]
	}
	return out
}

// DedentText is Dedent over a newline-separated block.
func DedentText(s string) string {
	return strings.Join(Dedent(strings.Split(s, "\n")), "\n")
}

func indentWidth(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\r\f\v"))
}
