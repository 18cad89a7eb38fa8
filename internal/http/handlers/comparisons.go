package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagelab/internal/dispatch"
	"imagelab/internal/domain"
	"imagelab/internal/middleware"
	"imagelab/internal/render"

	"github.com/rs/zerolog"
)

const maxComparisonBody = 64 << 10

type comparisonRequest struct {
	Prompt string   `json:"prompt"`
	Style  string   `json:"style"`
	Models []string `json:"models"`
}

type comparisonResponse struct {
	BatchID          string          `json:"batch_id"`
	Prompt           string          `json:"prompt"`
	TranslatedPrompt string          `json:"translated_prompt"`
	FullPrompt       string          `json:"full_prompt"`
	Style            string          `json:"style"`
	Results          []domain.Result `json:"results"`
	Failed           int             `json:"failed"`
	DurationMS       int64           `json:"duration_ms"`
	HTML             string          `json:"html"`
}

// requestError is a rejected comparison request: a domain sentinel plus the
// API code and the localized message that describe it.
type requestError struct {
	err  error
	code string
	key  string
	args []any
}

func (e *requestError) Error() string { return fmt.Sprintf(e.key, e.args...) }

func (e *requestError) Unwrap() error { return e.err }

func rejectRequest(err error, args ...any) *requestError {
	re := &requestError{err: err, args: args}
	switch {
	case errors.Is(err, domain.ErrInvalidPrompt):
		re.code, re.key = "invalid_prompt", middleware.MsgPromptRequired
	case errors.Is(err, domain.ErrNoModels):
		re.code, re.key = "no_models", middleware.MsgNoModels
	case errors.Is(err, domain.ErrUnknownStyle):
		re.code, re.key = "unknown_style", middleware.MsgUnknownStyle
	case errors.Is(err, domain.ErrUnknownModel):
		re.code, re.key = "unknown_model", middleware.MsgUnknownModels
	case errors.Is(err, domain.ErrIncompatibleStyle):
		re.code, re.key = "incompatible_style", middleware.MsgIncompatibleStyle
	default:
		return nil
	}
	return re
}

// selectComparison resolves the requested style and model titles against the catalog.
func (a *App) selectComparison(req comparisonRequest) (domain.StyleDescriptor, []domain.ModelDescriptor, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return domain.StyleDescriptor{}, nil, rejectRequest(domain.ErrInvalidPrompt)
	}
	if len(req.Models) == 0 {
		return domain.StyleDescriptor{}, nil, rejectRequest(domain.ErrNoModels)
	}
	style, ok := a.Catalog.Style(req.Style)
	if !ok {
		return domain.StyleDescriptor{}, nil, rejectRequest(domain.ErrUnknownStyle, req.Style)
	}

	models := make([]domain.ModelDescriptor, 0, len(req.Models))
	var unknown, incompatible []string
	for _, title := range req.Models {
		m, ok := a.Catalog.Model(title)
		switch {
		case !ok:
			unknown = append(unknown, title)
		case !m.SupportsStyle(style.Name):
			incompatible = append(incompatible, m.Title)
		default:
			models = append(models, m)
		}
	}
	if len(unknown) > 0 {
		return style, nil, rejectRequest(domain.ErrUnknownModel, strings.Join(unknown, ", "))
	}
	if len(incompatible) > 0 {
		return style, nil, rejectRequest(domain.ErrIncompatibleStyle, style.Name, strings.Join(incompatible, ", "))
	}
	return style, models, nil
}

// CreateComparison runs the prompt against every selected model and returns the
// results with the rendered comparison page. ?format=html returns only the page,
// as a download.
func (a *App) CreateComparison(w http.ResponseWriter, r *http.Request) {
	var req comparisonRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxComparisonBody)).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", middleware.MsgInvalidPayload)
		return
	}
	style, models, err := a.selectComparison(req)
	if err != nil {
		a.reject(w, r, err)
		return
	}

	logger := a.log(r)
	// The batch outlives a dropped connection; the dispatcher applies its own deadline.
	ctx := context.WithoutCancel(r.Context())
	batch, err := a.Dispatcher.Run(ctx, dispatch.Submission{
		Prompt: req.Prompt,
		Style:  style,
		Models: models,
		OnProgress: func(p domain.Progress) {
			logger.Debug().
				Str("batch_id", p.BatchID).
				Str("model", p.Model).
				Str("status", string(p.Status)).
				Int("completed", p.Completed).
				Int("total", p.Total).
				Float64("fraction", p.Fraction()).
				Msg("comparison progress")
		},
	})
	if err != nil {
		if rejected := rejectRequest(err); rejected != nil {
			a.reject(w, r, rejected)
			return
		}
		logger.Error().Err(err).Msg("comparison failed")
		a.error(w, r, http.StatusInternalServerError, "internal", middleware.MsgComparisonFailed)
		return
	}

	styleName := ""
	if !batch.Style.IsFree() {
		styleName = batch.Style.Name
	}
	html, err := render.Render(batch.Prompt, styleName, batch.Results)
	if err != nil {
		logger.Error().Err(err).Str("batch_id", batch.ID).Msg("render comparison")
		a.error(w, r, http.StatusInternalServerError, "internal", middleware.MsgRenderFailed)
		return
	}

	logger.Info().
		Str("batch_id", batch.ID).
		Int("models", len(batch.Results)).
		Int("failed", batch.Failed()).
		Dur("duration", batch.Duration).
		Msg("comparison finished")

	a.notify(logger, batch, html)

	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Language", "he")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.ArtifactFilename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
		return
	}

	a.json(w, http.StatusOK, comparisonResponse{
		BatchID:          batch.ID,
		Prompt:           batch.Prompt,
		TranslatedPrompt: batch.TranslatedPrompt,
		FullPrompt:       batch.FullPrompt,
		Style:            batch.Style.Name,
		Results:          batch.Results,
		Failed:           batch.Failed(),
		DurationMS:       batch.Duration.Milliseconds(),
		HTML:             html,
	})
}

// notify delivers the artifact in the background. Failures are only logged.
func (a *App) notify(logger *zerolog.Logger, batch *dispatch.Batch, html string) {
	if a.Notifier == nil {
		return
	}
	timeout := a.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	a.notifications.Add(1)
	go func() {
		defer a.notifications.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		if err := a.Notifier.SendDocument(ctx, batch.FullPrompt, render.ArtifactFilename, []byte(html)); err != nil {
			logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("telegram delivery failed")
			return
		}
		logger.Debug().Str("batch_id", batch.ID).Dur("duration", time.Since(start)).Msg("telegram delivery sent")
	}()
}
