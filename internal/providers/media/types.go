package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/storage"
)

// Provider keys referenced by the generation_app field of the model catalog.
const (
	ProviderHuggingFace          = "huggingface"
	ProviderPollinations         = "pollinations"
	ProviderReplicate            = "replicate"
	ProviderUnsplash             = "unsplash"
	ProviderHandDrawnCartoon     = "hand_drawn_cartoon_style"
	ProviderSDXLLightning        = "sdxl_lightning"
	ProviderAnimateDiffLightning = "animatediff_lightning"
)

var knownProviders = []string{
	ProviderHuggingFace,
	ProviderPollinations,
	ProviderReplicate,
	ProviderUnsplash,
	ProviderHandDrawnCartoon,
	ProviderSDXLLightning,
	ProviderAnimateDiffLightning,
}

// KnownProvider reports whether key names an adapter this build can construct,
// whether or not it is configured.
func KnownProvider(key string) bool {
	for _, k := range knownProviders {
		if k == key {
			return true
		}
	}
	return false
}

// Request is the normalized input handed to every adapter.
type Request struct {
	// Prompt is the fully composed prompt (style prefix plus translated text).
	Prompt string
	// ModelRef is the provider-specific model identifier (the catalog "name").
	ModelRef string
	// NegativePrompt is empty when the model does not support one.
	NegativePrompt string
	// Title labels uploaded media; usually the catalog title.
	Title string
}

// Generator is the contract implemented by all provider adapters. A successful
// call returns a public media URL; any error is treated as a failed slot.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// withTimestamp appends a cache-busting marker so inference endpoints do not
// serve a cached image for a repeated prompt.
func withTimestamp(prompt string, now time.Time) string {
	return fmt.Sprintf("%s [Timestamp: %d]", prompt, now.Unix())
}

func validatePrompt(req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", domain.ErrInvalidPrompt
	}
	return prompt, nil
}

func uploadTitle(req Request) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	return strings.TrimSpace(req.ModelRef)
}

// rehost base64-encodes data and hands it to the uploader.
func rehost(ctx context.Context, uploader storage.Uploader, data []byte, kind domain.MediaType, req Request, prompt string) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrEmptyMedia
	}
	url, err := uploader.Upload(ctx, base64.StdEncoding.EncodeToString(data), kind, uploadTitle(req), prompt)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return url, nil
}
