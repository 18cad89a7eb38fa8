package handlers

import (
	"net/http"
	"strings"

	"imagelab/internal/domain"
	"imagelab/internal/providers/media"
)

type modelView struct {
	Title                  string   `json:"title"`
	Name                   string   `json:"name"`
	Provider               string   `json:"provider"`
	ProviderName           string   `json:"provider_name"`
	SupportsNegativePrompt bool     `json:"supports_negative_prompt"`
	CompatibleStyles       []string `json:"compatible_styles,omitempty"`
	New                    bool     `json:"new"`
}

type modelsResponse struct {
	Models      []modelView `json:"models"`
	Unavailable []modelView `json:"unavailable"`
	Total       int         `json:"total"`
	Available   int         `json:"available"`
	NewCount    int         `json:"new_count"`
}

func newModelView(m domain.ModelDescriptor) modelView {
	return modelView{
		Title:                  m.Title,
		Name:                   m.Name,
		Provider:               m.GenerationApp,
		ProviderName:           media.DisplayName(m.GenerationApp),
		SupportsNegativePrompt: m.SupportsNegativePrompt,
		CompatibleStyles:       m.CompatibleStyles,
		New:                    m.IsNew(),
	}
}

// Models lists the catalog split by whether the model's provider is configured.
// ?style= keeps only models compatible with that style.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	style := strings.TrimSpace(r.URL.Query().Get("style"))
	resp := modelsResponse{Models: []modelView{}, Unavailable: []modelView{}}
	for _, m := range a.Catalog.Models {
		if style != "" && !m.SupportsStyle(style) {
			continue
		}
		view := newModelView(m)
		if a.Providers != nil && a.Providers.Has(m.GenerationApp) {
			resp.Models = append(resp.Models, view)
		} else {
			resp.Unavailable = append(resp.Unavailable, view)
		}
		if view.New {
			resp.NewCount++
		}
	}
	resp.Available = len(resp.Models)
	resp.Total = resp.Available + len(resp.Unavailable)
	a.json(w, http.StatusOK, resp)
}

func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"styles":  a.Catalog.Styles,
		"default": a.Catalog.DefaultStyle().Name,
	})
}

func (a *App) Examples(w http.ResponseWriter, r *http.Request) {
	examples := a.Catalog.Examples
	if examples == nil {
		examples = []domain.ExamplePrompt{}
	}
	a.json(w, http.StatusOK, map[string]any{"examples": examples})
}
