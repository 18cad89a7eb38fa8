package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"imagelab/internal/domain"
)

// ArtifactFilename is the download name of a rendered comparison page.
const ArtifactFilename = "comparison_results.html"

//go:embed templates/comparison.html.tmpl
var templateFS embed.FS

var comparisonTemplate = template.Must(template.ParseFS(templateFS, "templates/comparison.html.tmpl"))

type card struct {
	Title  string
	URL    string
	Video  bool
	Failed bool
}

type page struct {
	Prompt    string
	StyleName string
	Cards     []card
	Succeeded int
	Total     int
}

// Render fills the comparison template. Output depends only on its inputs.
// Results without media render as a failure placeholder.
func Render(prompt, styleName string, results []domain.Result) (string, error) {
	p := page{Prompt: prompt, StyleName: styleName, Total: len(results)}
	p.Cards = make([]card, 0, len(results))
	for _, r := range results {
		c := card{Title: r.Model.Title, URL: r.MediaURL}
		switch {
		case !r.Succeeded():
			c.Failed = true
			c.URL = ""
		case r.MediaType == domain.MediaTypeVideo:
			c.Video = true
			p.Succeeded++
		default:
			p.Succeeded++
		}
		p.Cards = append(p.Cards, c)
	}
	var buf bytes.Buffer
	if err := comparisonTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render: execute template: %w", err)
	}
	return buf.String(), nil
}
