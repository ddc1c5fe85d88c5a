package platform

import (
	"fmt"
	"html"
	"strings"

	"github.com/dgallion1/chatmd/internal/markdown"
	"github.com/dgallion1/chatmd/internal/markup"
)

// TeamGPT extracts threads from app.team-gpt.com.
type TeamGPT struct {
	p       TeamGPTProfile
	title   []markup.Selector
	model   markup.Selector
	message markup.Selector
	stamp   markup.Selector
	author  markup.Selector
	content markup.Selector
}

// NewTeamGPT compiles the profile's selectors.
func NewTeamGPT(p TeamGPTProfile) (*TeamGPT, error) {
	title, err := compileAll(p.Title...)
	if err != nil {
		return nil, fmt.Errorf("%s title: %w", p.Name, err)
	}
	sels, err := compileAll(p.Model, p.Message, p.Timestamp, p.Author, p.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	return &TeamGPT{
		p:       p,
		title:   title,
		model:   sels[0],
		message: sels[1],
		stamp:   sels[2],
		author:  sels[3],
		content: sels[4],
	}, nil
}

func (e *TeamGPT) Name() string { return e.p.Name }

func (e *TeamGPT) Extract(root *markup.Node) Transcript {
	t := Transcript{
		Platform:  e.p.Name,
		Title:     firstText(root, e.title),
		ModelName: root.QueryText(e.model),
	}
	if t.Title == "" {
		t.Title = e.p.DefaultTitle
	}

	for _, msg := range root.QueryAll(e.message) {
		var body string
		if c := msg.Query(e.content); c != nil {
			body = strings.TrimSpace(markdown.Convert(c))
		}
		if body == "" {
			t.Skipped++
			continue
		}
		author := msg.QueryText(e.author)
		t.Messages = append(t.Messages, Message{
			Header: e.styleAuthor(author) + " - " + msg.QueryText(e.stamp),
			Body:   body,
		})
	}
	return t
}

// styleAuthor colors the assistant's name so it stands out in Markdown
// renderers that honor inline HTML.
func (e *TeamGPT) styleAuthor(author string) string {
	moniker := strings.ToLower(e.p.AssistantMoniker)
	if moniker == "" || !strings.Contains(strings.ToLower(author), moniker) {
		return author
	}
	return fmt.Sprintf(`<span style="color:%s;">%s</span>`, e.p.AssistantColor, html.EscapeString(author))
}
