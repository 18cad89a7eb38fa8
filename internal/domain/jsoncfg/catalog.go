package jsoncfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"imagelab/internal/domain"
)

// LegacyInferenceProvider is the provider key assigned to catalog entries whose
// generation_app holds a bare "owner/model" inference path.
const LegacyInferenceProvider = "huggingface"

type modelsFile struct {
	Models []domain.ModelDescriptor `json:"models"`
}

type stylesFile struct {
	Styles []domain.StyleDescriptor `json:"styles"`
}

type examplesFile struct {
	Examples []domain.ExamplePrompt `json:"examples"`
}

// Catalog bundles the read-only descriptors loaded at startup.
type Catalog struct {
	Models   []domain.ModelDescriptor
	Styles   []domain.StyleDescriptor
	Examples []domain.ExamplePrompt
}

// LoadCatalog reads the models, styles and examples files. The examples path is optional.
func LoadCatalog(modelsPath, stylesPath, examplesPath string) (*Catalog, error) {
	raw, err := os.ReadFile(modelsPath)
	if err != nil {
		return nil, fmt.Errorf("jsoncfg: read models: %w", err)
	}
	models, err := ParseModels(raw)
	if err != nil {
		return nil, err
	}
	raw, err = os.ReadFile(stylesPath)
	if err != nil {
		return nil, fmt.Errorf("jsoncfg: read styles: %w", err)
	}
	styles, err := ParseStyles(raw)
	if err != nil {
		return nil, err
	}
	var examples []domain.ExamplePrompt
	if strings.TrimSpace(examplesPath) != "" {
		raw, err = os.ReadFile(examplesPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("jsoncfg: read examples: %w", err)
		}
		if err == nil {
			examples, err = ParseExamples(raw)
			if err != nil {
				return nil, err
			}
		}
	}
	return &Catalog{Models: models, Styles: styles, Examples: examples}, nil
}

// ParseModels decodes {"models": [...]} and checks required fields and title uniqueness.
func ParseModels(raw []byte) ([]domain.ModelDescriptor, error) {
	var file modelsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("jsoncfg: decode models: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Models))
	var errs []error
	for i := range file.Models {
		m := &file.Models[i]
		m.Title = strings.TrimSpace(m.Title)
		m.Name = strings.TrimSpace(m.Name)
		m.GenerationApp = strings.TrimSpace(m.GenerationApp)
		m.NegativePrompt = strings.TrimSpace(m.NegativePrompt)
		if m.Title == "" {
			errs = append(errs, fmt.Errorf("model #%d: title is required", i))
			continue
		}
		if m.GenerationApp == "" {
			errs = append(errs, fmt.Errorf("model %q: generation_app is required", m.Title))
		}
		if _, dup := seen[m.Title]; dup {
			errs = append(errs, fmt.Errorf("model %q: duplicate title", m.Title))
		}
		seen[m.Title] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("jsoncfg: invalid models: %w", err)
	}
	return file.Models, nil
}

// ParseStyles decodes {"styles": [...]}.
func ParseStyles(raw []byte) ([]domain.StyleDescriptor, error) {
	var file stylesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("jsoncfg: decode styles: %w", err)
	}
	if len(file.Styles) == 0 {
		return nil, errors.New("jsoncfg: at least one style is required")
	}
	for i := range file.Styles {
		s := &file.Styles[i]
		s.Name = strings.TrimSpace(s.Name)
		s.PromptPrefix = strings.TrimSpace(s.PromptPrefix)
		s.NegativePrompt = strings.TrimSpace(s.NegativePrompt)
		if s.Name == "" {
			return nil, fmt.Errorf("jsoncfg: style #%d: name is required", i)
		}
	}
	return file.Styles, nil
}

// ParseExamples accepts either a bare list or {"examples": [...]}.
func ParseExamples(raw []byte) ([]domain.ExamplePrompt, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []domain.ExamplePrompt
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("jsoncfg: decode examples: %w", err)
		}
		return list, nil
	}
	var file examplesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("jsoncfg: decode examples: %w", err)
	}
	return file.Examples, nil
}

// Normalize rewrites legacy entries whose generation_app is an inference model
// path into the inference provider key. known reports registered provider keys.
func (c *Catalog) Normalize(known func(string) bool) {
	if c == nil {
		return
	}
	for i := range c.Models {
		m := &c.Models[i]
		if known(m.GenerationApp) || !looksLikeModelPath(m.GenerationApp) {
			continue
		}
		m.Name = m.GenerationApp
		m.GenerationApp = LegacyInferenceProvider
	}
}

// Validate fails when any model references a provider key that does not exist.
func (c *Catalog) Validate(known func(string) bool) error {
	if c == nil {
		return errors.New("jsoncfg: catalog is nil")
	}
	var errs []error
	for _, m := range c.Models {
		if !known(m.GenerationApp) {
			errs = append(errs, fmt.Errorf("model %q: %w %q", m.Title, domain.ErrUnknownProvider, m.GenerationApp))
		}
	}
	return errors.Join(errs...)
}

// Model looks a model up by title.
func (c *Catalog) Model(title string) (domain.ModelDescriptor, bool) {
	title = strings.TrimSpace(title)
	for _, m := range c.Models {
		if m.Title == title {
			return m, true
		}
	}
	return domain.ModelDescriptor{}, false
}

// Style looks a style up by name. An empty name selects the default style.
func (c *Catalog) Style(name string) (domain.StyleDescriptor, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return c.DefaultStyle(), len(c.Styles) > 0
	}
	for _, s := range c.Styles {
		if s.Name == name {
			return s, true
		}
	}
	return domain.StyleDescriptor{}, false
}

// DefaultStyle returns the first configured style.
func (c *Catalog) DefaultStyle() domain.StyleDescriptor {
	if len(c.Styles) == 0 {
		return domain.StyleDescriptor{}
	}
	return c.Styles[0]
}

// NewModelCount counts models flagged as recent additions.
func (c *Catalog) NewModelCount() int {
	n := 0
	for _, m := range c.Models {
		if m.IsNew() {
			n++
		}
	}
	return n
}

func looksLikeModelPath(app string) bool {
	parts := strings.Split(app, "/")
	if len(parts) != 2 {
		return false
	}
	return parts[0] != "" && parts[1] != "" && !strings.ContainsAny(app, " ?#")
}
