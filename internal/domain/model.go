package domain

import "strings"

// NewModelMarker prefixes the titles of recently added catalog models.
const NewModelMarker = "🆕"

// ModelDescriptor is a static catalog entry describing one selectable generation model.
type ModelDescriptor struct {
	Title                  string   `json:"title"`
	Name                   string   `json:"name"`
	GenerationApp          string   `json:"generation_app"`
	SupportsNegativePrompt bool     `json:"supports_negative_prompt"`
	NegativePrompt         string   `json:"negative_prompt"`
	CompatibleStyles       []string `json:"compatible_styles"`
}

// IsNew reports whether the model is flagged as a recent addition.
func (m ModelDescriptor) IsNew() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Title), NewModelMarker)
}

// SupportsStyle reports whether the style can be combined with this model.
// An empty compatibility list accepts every style.
func (m ModelDescriptor) SupportsStyle(style string) bool {
	if len(m.CompatibleStyles) == 0 {
		return true
	}
	style = strings.TrimSpace(style)
	for _, s := range m.CompatibleStyles {
		if strings.TrimSpace(s) == style {
			return true
		}
	}
	return false
}

// StyleDescriptor is a named prompt prefix selectable alongside the user prompt.
type StyleDescriptor struct {
	Name           string `json:"name"`
	PromptPrefix   string `json:"prompt_prefix"`
	NegativePrompt string `json:"negative_prompt"`
}

// IsFree reports whether the style leaves the prompt untouched.
func (s StyleDescriptor) IsFree() bool {
	return strings.TrimSpace(s.PromptPrefix) == ""
}

// ExamplePrompt is a curated prompt offered to users as a starting point.
type ExamplePrompt struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}
