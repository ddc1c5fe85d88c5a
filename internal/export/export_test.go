package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/chatmd/internal/document"
	"github.com/dgallion1/chatmd/internal/platform"
)

const teamGPTURL = "https://app.team-gpt.com/c/abc/chat/123"

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func TestRun_TeamGPTDocument(t *testing.T) {
	page := `<html><body>` +
		`<div data-test-id="thread-name">Debugging the Parser</div>` +
		`<button data-test-id="chat-settings-btn">GPT-4o</button>` +
		`<div data-test-id="chat-msg">` +
		`<span class="text-sm font-semibold leading-5">Alice</span>` +
		`<span class="text-xs text-muted-foreground">10:01 AM</span>` +
		`<div class="prose break-words"><p>Hello</p></div>` +
		`</div></body></html>`

	res, err := Run(strings.NewReader(page), teamGPTURL, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "---\n" +
		"date: 2026-03-14\n" +
		"model: GPT-4o\n" +
		"topic: debugging-parser\n" +
		"tags:\n" +
		"  - model/gpt-4o\n" +
		"  - topic/debugging-parser\n" +
		"---\n" +
		"\n# Debugging the Parser\n\n" +
		"## Alice - 10:01 AM\n\nHello"
	if res.Text != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, res.Text)
	}
	if res.Filename != "debugging_the_parser_2026-03-14.md" {
		t.Errorf("unexpected filename %q", res.Filename)
	}
	if res.Platform != "team-gpt" {
		t.Errorf("unexpected platform %q", res.Platform)
	}
	if res.Skipped != 0 {
		t.Errorf("expected no skipped containers, got %d", res.Skipped)
	}
}

func TestRun_CodeBlockSurvivesRoundTrip(t *testing.T) {
	page := `<div data-test-id="chat-msg">` +
		`<span class="text-sm font-semibold leading-5">Team-GPT</span>` +
		`<span class="text-xs text-muted-foreground">9:00 AM</span>` +
		`<div class="prose break-words"><p>Run:</p><pre><code class="language-bash">echo hi</code></pre></div>` +
		`</div>` +
		`<div data-test-id="chat-msg"><div class="prose break-words"><span></span></div></div>`

	res, err := Run(strings.NewReader(page), teamGPTURL, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "```bash\necho hi\n```") {
		t.Errorf("expected fenced bash block, got:\n%s", res.Text)
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped container, got %d", res.Skipped)
	}

	s, err := document.Inspect([]byte(res.Text))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if s.Title != "Team-GPT Chat Export" || s.Meta.Topic != "general" {
		t.Errorf("unexpected summary %+v", s)
	}
	if len(s.MessageHeaders) != 1 || len(s.CodeLanguages) != 1 || s.CodeLanguages[0] != "bash" {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestRun_MessageHeadingKeepsMessageCount(t *testing.T) {
	page := `<div data-test-id="chat-msg">` +
		`<span class="text-sm font-semibold leading-5">Team-GPT</span>` +
		`<span class="text-xs text-muted-foreground">9:00 AM</span>` +
		`<div class="prose break-words"><h2>Summary</h2><p>x</p></div>` +
		`</div>`

	res, err := Run(strings.NewReader(page), teamGPTURL, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "## Summary") {
		t.Fatalf("expected heading in body, got:\n%s", res.Text)
	}

	s, err := document.Inspect([]byte(res.Text))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(s.MessageHeaders) != len(res.Document.Messages) {
		t.Errorf("expected %d message headers, got %v", len(res.Document.Messages), s.MessageHeaders)
	}
}

func TestRun_OpenAIUsesInjectedClock(t *testing.T) {
	page := `<div class="_5taum" data-comparing="false">` +
		`<div class="OLOUn"><span class="v9phc">User</span><div class="tiptap ProseMirror"><p>Hi</p></div></div>` +
		`</div>`

	res, err := Run(strings.NewReader(page), "https://platform.openai.com/playground/chat", Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "## User - 3:09:26 PM\n\nHi") {
		t.Errorf("expected export-time header, got:\n%s", res.Text)
	}
	if res.Filename != "openai_playground_chat_export_2026-03-14.md" {
		t.Errorf("unexpected filename %q", res.Filename)
	}
	if !strings.Contains(res.Text, "topic: playground\n") {
		t.Errorf("expected playground topic, got:\n%s", res.Text)
	}
}

func TestRun_UnsupportedPlatform(t *testing.T) {
	res, err := Run(strings.NewReader("<p>x</p>"), "https://example.com/chat", Options{})
	if !errors.Is(err, platform.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	if res != nil {
		t.Error("expected no result for unsupported platform")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestRun_ReadError(t *testing.T) {
	_, err := Run(failingReader{}, teamGPTURL, Options{})
	if err == nil || !strings.Contains(err.Error(), "disk gone") {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestRun_CustomRegistry(t *testing.T) {
	p := platform.DefaultProfiles()
	p.TeamGPT.Match = []string{"chat.internal.example"}
	reg := platform.NewRegistry(p, fixedNow)

	if _, err := Run(strings.NewReader("<p/>"), teamGPTURL, Options{Registry: reg}); !errors.Is(err, platform.ErrUnsupportedPlatform) {
		t.Errorf("expected default host to be rejected, got %v", err)
	}
	res, err := Run(strings.NewReader("<p/>"), "https://chat.internal.example/t/1", Options{Registry: reg, Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Platform != "team-gpt" {
		t.Errorf("unexpected platform %q", res.Platform)
	}
}

func TestRun_BadPlatformNamesReturnError(t *testing.T) {
	p := platform.DefaultProfiles()
	p.PlatformNames = []string{"team("}
	reg := platform.NewRegistry(p, fixedNow)

	res, err := Run(strings.NewReader("<p/>"), teamGPTURL, Options{Registry: reg})
	if err == nil {
		t.Fatal("expected error for invalid platform names")
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
}
