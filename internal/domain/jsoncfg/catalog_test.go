package jsoncfg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imagelab/internal/domain"
)

func knownKeys(keys ...string) func(string) bool {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(k string) bool {
		_, ok := set[k]
		return ok
	}
}

func TestParseModelsRequiresFields(t *testing.T) {
	_, err := ParseModels([]byte(`{"models":[{"title":"A","generation_app":"pollinations"},{"title":"","generation_app":"x"},{"title":"A","generation_app":"pollinations"},{"title":"B"}]}`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"title is required", "duplicate title", `"B": generation_app is required`} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestParseExamplesAcceptsListAndObject(t *testing.T) {
	list, err := ParseExamples([]byte(`[{"title":"חתול","prompt":"a cat"}]`))
	if err != nil || len(list) != 1 || list[0].Prompt != "a cat" {
		t.Fatalf("list form: %v %+v", err, list)
	}
	obj, err := ParseExamples([]byte(`{"examples":[{"title":"כלב","prompt":"a dog"}]}`))
	if err != nil || len(obj) != 1 || obj[0].Title != "כלב" {
		t.Fatalf("object form: %v %+v", err, obj)
	}
}

func TestCatalogNormalizeLegacyInferencePaths(t *testing.T) {
	c := &Catalog{Models: []domain.ModelDescriptor{
		{Title: "Boreal", GenerationApp: "kudzueye/boreal-flux-dev-v2"},
		{Title: "Flux", Name: "flux", GenerationApp: "pollinations"},
		{Title: "Broken", GenerationApp: "not a key"},
	}}
	known := knownKeys("pollinations", "huggingface")
	c.Normalize(known)

	if c.Models[0].GenerationApp != LegacyInferenceProvider || c.Models[0].Name != "kudzueye/boreal-flux-dev-v2" {
		t.Fatalf("legacy entry not normalized: %+v", c.Models[0])
	}
	if c.Models[1].GenerationApp != "pollinations" || c.Models[1].Name != "flux" {
		t.Fatalf("known entry changed: %+v", c.Models[1])
	}
	err := c.Validate(known)
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("Validate error = %v, want ErrUnknownProvider", err)
	}
	if !strings.Contains(err.Error(), "Broken") {
		t.Fatalf("error should name the offending model: %v", err)
	}
}

func TestLoadCatalogFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}
	models := write("models.json", `{"models":[{"title":"🆕 Flux","name":"flux","generation_app":"pollinations"}]}`)
	styles := write("styles.json", `{"styles":[{"name":"סגנון חופשי","prompt_prefix":""},{"name":"אנימה","prompt_prefix":"anime style"}]}`)

	c, err := LoadCatalog(models, styles, filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Examples) != 0 {
		t.Fatalf("missing examples file should yield no examples, got %d", len(c.Examples))
	}
	if c.NewModelCount() != 1 {
		t.Fatalf("NewModelCount = %d, want 1", c.NewModelCount())
	}
	if s := c.DefaultStyle(); !s.IsFree() {
		t.Fatalf("default style should be the free style, got %+v", s)
	}
	if s, ok := c.Style("אנימה"); !ok || s.PromptPrefix != "anime style" {
		t.Fatalf("Style lookup = %+v %v", s, ok)
	}
	if _, ok := c.Model("🆕 Flux"); !ok {
		t.Fatal("expected model lookup by title")
	}
}
