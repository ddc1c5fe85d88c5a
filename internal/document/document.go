// Package document assembles exported transcripts into Markdown documents
// with YAML frontmatter.
package document

import (
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/dgallion1/chatmd/internal/platform"
)

// DateLayout is the ISO calendar date used in frontmatter and filenames.
const DateLayout = "2006-01-02"

// MessageSeparator is placed between consecutive messages.
const MessageSeparator = "\n\n---\n\n"

// Document is a finished export. It is not modified after New returns.
type Document struct {
	Title     string
	ModelName string
	Date      time.Time
	Messages  []platform.Message

	platformNames *regexp.Regexp
}

// New builds a document from a transcript. now fixes the export date.
func New(t platform.Transcript, now time.Time, platformNames *regexp.Regexp) *Document {
	msgs := make([]platform.Message, len(t.Messages))
	copy(msgs, t.Messages)
	return &Document{
		Title:         t.Title,
		ModelName:     t.ModelName,
		Date:          now,
		Messages:      msgs,
		platformNames: platformNames,
	}
}

// DateString returns the export date at day precision.
func (d *Document) DateString() string {
	return d.Date.Format(DateLayout)
}

var nonAlnumRunRe = regexp.MustCompile(`[^a-z0-9]+`)

// ModelTag returns "model/<slug>" or "model/unknown".
func (d *Document) ModelTag() string {
	if d.ModelName == "" {
		return "model/unknown"
	}
	return "model/" + nonAlnumRunRe.ReplaceAllString(strings.ToLower(d.ModelName), "-")
}

var (
	stopWordsRe      = regexp.MustCompile(`\b(?:chat|export|with|the|a|an|and|or|but|in|on|at|to|for|of)\b`)
	chatExportTailRe = regexp.MustCompile(`(?i)chat export$`)
)

// TopicTag derives a topic slug from the title, or "general".
func (d *Document) TopicTag() string {
	s := strings.ToLower(d.Title)
	s = stopWordsRe.ReplaceAllString(s, "")
	s = chatExportTailRe.ReplaceAllString(strings.TrimSpace(s), "")
	if d.platformNames != nil {
		s = d.platformNames.ReplaceAllString(s, "")
	}
	if s = Slugify(s); s != "" {
		return s
	}
	return "general"
}

// Slugify lowercases s, collapses non-alphanumeric runs to single hyphens and
// trims hyphens from both ends. Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	s = nonAlnumRunRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Frontmatter renders the YAML metadata block, delimiters included.
func (d *Document) Frontmatter() string {
	model := d.ModelName
	if model == "" {
		model = "unknown"
	}
	topic := d.TopicTag()

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("date: " + d.DateString() + "\n")
	b.WriteString("model: " + yamlScalar(model) + "\n")
	b.WriteString("topic: " + topic + "\n")
	b.WriteString("tags:\n")
	b.WriteString("  - " + yamlScalar(d.ModelTag()) + "\n")
	b.WriteString("  - topic/" + topic + "\n")
	b.WriteString("---\n")
	return b.String()
}

// Render returns the complete Markdown document.
func (d *Document) Render() string {
	var b strings.Builder
	b.WriteString(d.Frontmatter())
	b.WriteString("\n# " + d.Title + "\n\n")
	for i, m := range d.Messages {
		if i > 0 {
			b.WriteString(MessageSeparator)
		}
		b.WriteString("## " + m.Header + "\n\n" + m.Body)
	}
	return b.String()
}

var nonAlnumRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename returns "<title>_<date>.md" with every non-alphanumeric title
// character replaced by an underscore.
func (d *Document) Filename() string {
	return strings.ToLower(nonAlnumRe.ReplaceAllString(d.Title, "_")) + "_" + d.DateString() + ".md"
}

// yamlScalar quotes s only when a plain scalar would not round-trip as the
// same string.
func yamlScalar(s string) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return strings.TrimSuffix(string(out), "\n")
}
