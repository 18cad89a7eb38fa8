package render

import (
	"strings"
	"testing"
	"time"

	"imagelab/internal/domain"
)

func sampleResults() []domain.Result {
	img := domain.NewResult(domain.ModelDescriptor{Title: "Flux"}, "https://i.imgur.com/a.png", nil)
	img.Duration = 3 * time.Second
	vid := domain.NewResult(domain.ModelDescriptor{Title: "AnimateDiff"}, "https://i.imgur.com/b.mp4", nil)
	bad := domain.NewResult(domain.ModelDescriptor{Title: "Broken"}, "", domain.ErrProviderFailure)
	return []domain.Result{img, vid, bad}
}

func TestRenderIsDeterministic(t *testing.T) {
	first, err := Render("מכונית אדומה", "סגנון חופשי", sampleResults())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	changed := sampleResults()
	changed[0].Duration = time.Hour
	changed[0].Attempts = 3
	second, err := Render("מכונית אדומה", "סגנון חופשי", changed)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first != second {
		t.Fatal("identical inputs must render byte-identical output")
	}
}

func TestRenderContent(t *testing.T) {
	out, err := Render(`<script>alert(1)</script>`, "", sampleResults())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	checks := []string{
		`dir="rtl"`,
		`<img src="https://i.imgur.com/a.png" alt="Flux"`,
		`<video src="https://i.imgur.com/b.mp4"`,
		`היצירה נכשלה`,
		`2 מתוך 3`,
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatal("prompt must be escaped")
	}
	if strings.Contains(out, "סגנון:") {
		t.Fatal("empty style name should be omitted")
	}
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render("p", "s", nil)
	if err != nil || !strings.Contains(out, "0 מתוך 0") {
		t.Fatalf("Render(nil) = %v", err)
	}
}
