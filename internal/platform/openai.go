package platform

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/chatmd/internal/markdown"
	"github.com/dgallion1/chatmd/internal/markup"
)

// OpenAI extracts conversations from the OpenAI Playground. The playground
// shows no per-message times, so headers carry the export time.
type OpenAI struct {
	p            OpenAIProfile
	now          func() time.Time
	model        markup.Selector
	conversation markup.Selector
	message      markup.Selector
	system       markup.Selector
	role         markup.Selector
	content      markup.Selector
}

// NewOpenAI compiles the profile's selectors.
func NewOpenAI(p OpenAIProfile, now func() time.Time) (*OpenAI, error) {
	sels, err := compileAll(p.Model, p.Conversation, p.Message, p.System, p.Role, p.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	if now == nil {
		now = time.Now
	}
	return &OpenAI{
		p:            p,
		now:          now,
		model:        sels[0],
		conversation: sels[1],
		message:      sels[2],
		system:       sels[3],
		role:         sels[4],
		content:      sels[5],
	}, nil
}

func (e *OpenAI) Name() string { return e.p.Name }

var excessNewlinesRe = regexp.MustCompile(`\n{3,}`)

func (e *OpenAI) Extract(root *markup.Node) Transcript {
	t := Transcript{
		Platform:  e.p.Name,
		Title:     e.p.DefaultTitle,
		ModelName: root.QueryText(e.model),
	}

	conv := root.Query(e.conversation)
	if conv == nil {
		return t
	}

	layout := e.p.TimeLayout
	if layout == "" {
		layout = time.Kitchen
	}
	stamp := e.now().Format(layout)

	for _, block := range conv.QueryAll(e.message) {
		if block.Query(e.system) != nil {
			continue
		}
		role := strings.ToLower(block.QueryText(e.role))
		if role == "" {
			t.Skipped++
			continue
		}

		var body string
		if c := block.Query(e.content); c != nil {
			body = strings.TrimSpace(excessNewlinesRe.ReplaceAllString(markdown.Convert(c), "\n\n"))
		}
		if body == "" {
			t.Skipped++
			continue
		}

		who := "Assistant"
		if role == "user" {
			who = "User"
		}
		t.Messages = append(t.Messages, Message{
			Header: who + " - " + stamp,
			Body:   body,
		})
	}
	return t
}
