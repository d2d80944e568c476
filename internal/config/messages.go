package config

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var messagesYAML []byte

// MessageRule maps backend error text to a user-facing message. A rule
// matches when the raw error contains any of its substrings (case-insensitive).
type MessageRule struct {
	Contains []string `yaml:"contains"`
	Message  string   `yaml:"message"`
}

// Messages holds every user-facing string the photo workspace shows.
type Messages struct {
	Fetch  []MessageRule     `yaml:"fetch"`
	Upload []MessageRule     `yaml:"upload"`
	Texts  map[string]string `yaml:"text"`
}

// LoadMessages parses the embedded messages.yaml.
func LoadMessages() (*Messages, error) {
	var m Messages
	if err := yaml.Unmarshal(messagesYAML, &m); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	return &m, nil
}

// DefaultMessages returns the embedded messages and panics if they are malformed.
func DefaultMessages() *Messages {
	m, err := LoadMessages()
	if err != nil {
		panic(err)
	}
	return m
}

func matchRule(rules []MessageRule, raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, rule := range rules {
		for _, needle := range rule.Contains {
			if strings.Contains(lower, strings.ToLower(needle)) {
				return rule.Message, true
			}
		}
	}
	return "", false
}

// TranslateFetch converts a collection fetch error into the message shown in
// the error panel.
func (m *Messages) TranslateFetch(raw string) string {
	if msg, ok := matchRule(m.Fetch, raw); ok {
		return msg
	}
	return m.Text("fetch_failed", raw)
}

// TranslateUpload converts an upload error into a notification message.
// Unknown errors are shown as-is.
func (m *Messages) TranslateUpload(raw string) string {
	if msg, ok := matchRule(m.Upload, raw); ok {
		return msg
	}
	return raw
}

// Text formats the named UI string. Unknown keys fall back to the key itself
// so a missing entry is visible rather than silent.
func (m *Messages) Text(key string, args ...any) string {
	format, ok := m.Texts[key]
	if !ok {
		format = key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
