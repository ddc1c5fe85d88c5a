// Package platform extracts ordered chat messages from the rendered markup of
// each supported chat interface.
package platform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/chatmd/internal/markup"
)

// ErrUnsupportedPlatform is returned when a page address matches no platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Message is one exported chat turn.
type Message struct {
	Header string
	Body   string
}

// Transcript is everything an extractor recovers from a page.
type Transcript struct {
	Platform  string
	Title     string
	ModelName string
	Messages  []Message
	Skipped   int // containers dropped for empty content or missing role
}

// Extractor pulls a transcript out of a page's element tree.
type Extractor interface {
	Name() string
	Extract(root *markup.Node) Transcript
}

// Registry selects extractors by page address.
type Registry struct {
	profiles Profiles
	now      func() time.Time
}

// NewRegistry builds a registry over the given profiles. now supplies the
// export-time clock used where a platform exposes no message timestamps.
func NewRegistry(p Profiles, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{profiles: p, now: now}
}

// Profiles returns the registry's profile set.
func (r *Registry) Profiles() Profiles {
	return r.profiles
}

// ForURL returns the extractor for pageURL.
func (r *Registry) ForURL(pageURL string) (Extractor, error) {
	switch {
	case matchesAny(pageURL, r.profiles.TeamGPT.Match):
		return NewTeamGPT(r.profiles.TeamGPT)
	case matchesAny(pageURL, r.profiles.OpenAI.Match):
		return NewOpenAI(r.profiles.OpenAI, r.now)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, pageURL)
}

// ForURL selects an extractor using the embedded profiles and the wall clock.
func ForURL(pageURL string) (Extractor, error) {
	return NewRegistry(DefaultProfiles(), nil).ForURL(pageURL)
}

func matchesAny(pageURL string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(pageURL, p) {
			return true
		}
	}
	return false
}

func firstText(root *markup.Node, sels []markup.Selector) string {
	for _, s := range sels {
		if t := root.QueryText(s); t != "" {
			return t
		}
	}
	return ""
}
