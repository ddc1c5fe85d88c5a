package platform

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/dgallion1/chatmd/internal/markup"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Profiles is the decoded selector configuration for every platform.
type Profiles struct {
	TeamGPT       TeamGPTProfile `yaml:"team_gpt"`
	OpenAI        OpenAIProfile  `yaml:"openai"`
	PlatformNames []string       `yaml:"platform_names"`
}

// TeamGPTProfile holds selectors for app.team-gpt.com threads.
type TeamGPTProfile struct {
	Name             string   `yaml:"name"`
	Match            []string `yaml:"match"`
	DefaultTitle     string   `yaml:"default_title"`
	Title            []string `yaml:"title"`
	Model            string   `yaml:"model"`
	Message          string   `yaml:"message"`
	Timestamp        string   `yaml:"timestamp"`
	Author           string   `yaml:"author"`
	Content          string   `yaml:"content"`
	AssistantMoniker string   `yaml:"assistant_moniker"`
	AssistantColor   string   `yaml:"assistant_color"`
}

// OpenAIProfile holds selectors for the OpenAI Playground.
type OpenAIProfile struct {
	Name         string   `yaml:"name"`
	Match        []string `yaml:"match"`
	DefaultTitle string   `yaml:"default_title"`
	Model        string   `yaml:"model"`
	Conversation string   `yaml:"conversation"`
	Message      string   `yaml:"message"`
	System       string   `yaml:"system"`
	Role         string   `yaml:"role"`
	Content      string   `yaml:"content"`
	TimeLayout   string   `yaml:"time_layout"`
}

// LoadProfiles decodes a profile document and checks that its platform
// names form a valid pattern.
func LoadProfiles(data []byte) (Profiles, error) {
	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profiles{}, fmt.Errorf("decode profiles: %w", err)
	}
	if _, err := p.NamePattern(); err != nil {
		return Profiles{}, err
	}
	return p, nil
}

// DefaultProfiles returns the embedded profiles.
func DefaultProfiles() Profiles {
	p, err := LoadProfiles(profilesYAML)
	if err != nil {
		panic(err)
	}
	return p
}

// NamePattern matches any known platform name inside free text. It is nil
// when no names are configured.
func (p Profiles) NamePattern() (*regexp.Regexp, error) {
	if len(p.PlatformNames) == 0 {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)(?:" + strings.Join(p.PlatformNames, "|") + ")")
	if err != nil {
		return nil, fmt.Errorf("platform_names: %w", err)
	}
	return re, nil
}

func compileAll(srcs ...string) ([]markup.Selector, error) {
	out := make([]markup.Selector, 0, len(srcs))
	for _, s := range srcs {
		if s == "" {
			out = append(out, markup.Selector{})
			continue
		}
		sel, err := markup.Compile(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}
