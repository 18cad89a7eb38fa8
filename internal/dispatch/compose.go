package dispatch

import (
	"strings"

	"imagelab/internal/domain"
)

// ComposePrompt prefixes prompt with the style unless the style is free-form.
func ComposePrompt(style domain.StyleDescriptor, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if style.IsFree() {
		return prompt
	}
	return strings.TrimSpace(style.PromptPrefix) + " " + prompt
}

// ComposeNegativePrompt merges the model and style negative prompts. Models
// that do not accept a negative prompt always get an empty string.
func ComposeNegativePrompt(model domain.ModelDescriptor, style domain.StyleDescriptor) string {
	if !model.SupportsNegativePrompt {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{model.NegativePrompt, style.NegativePrompt} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
