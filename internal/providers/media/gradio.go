package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/providers/gradio"
	"imagelab/internal/storage"
)

type spaceClient interface {
	Predict(ctx context.Context, space, apiName string, args ...any) ([]json.RawMessage, error)
	Download(ctx context.Context, space string, file gradio.FileData) ([]byte, error)
}

// SpaceConfig describes how one provider key maps onto a Space endpoint.
type SpaceConfig struct {
	Space   string
	APIName string
	// Args follow the prompt positionally.
	Args []any
	Kind domain.MediaType
}

// DefaultSpaces lists the Space-backed provider keys.
var DefaultSpaces = map[string]SpaceConfig{
	ProviderHandDrawnCartoon: {
		Space:   "fujohnwang/alvdansen-littletinies",
		APIName: "/predict",
		Kind:    domain.MediaTypeImage,
	},
	ProviderSDXLLightning: {
		Space:   "ByteDance/SDXL-Lightning",
		APIName: "/generate_image",
		Args:    []any{"4-Step"},
		Kind:    domain.MediaTypeImage,
	},
	ProviderAnimateDiffLightning: {
		Space:   "ByteDance/AnimateDiff-Lightning",
		APIName: "/generate_image",
		Args:    []any{"ToonYou", "", "4"},
		Kind:    domain.MediaTypeVideo,
	},
}

// Space runs a prompt through a Gradio Space and re-hosts the produced file.
type Space struct {
	key      string
	cfg      SpaceConfig
	client   spaceClient
	uploader storage.Uploader
	now      func() time.Time
}

func NewSpace(key string, cfg SpaceConfig, client spaceClient, uploader storage.Uploader) (*Space, error) {
	if client == nil || uploader == nil {
		return nil, fmt.Errorf("%s: client and uploader are required", key)
	}
	if strings.TrimSpace(cfg.Space) == "" || strings.TrimSpace(cfg.APIName) == "" {
		return nil, fmt.Errorf("%s: space and api name are required", key)
	}
	if cfg.Kind == "" {
		cfg.Kind = domain.MediaTypeImage
	}
	return &Space{key: key, cfg: cfg, client: client, uploader: uploader, now: time.Now}, nil
}

func (g *Space) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := validatePrompt(req)
	if err != nil {
		return "", err
	}
	args := append([]any{withTimestamp(prompt, g.now())}, g.cfg.Args...)
	outputs, err := g.client.Predict(ctx, g.cfg.Space, g.cfg.APIName, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.key, err)
	}
	var file gradio.FileData
	found := false
	for _, out := range outputs {
		if file, found = gradio.ExtractFile(out); found {
			break
		}
	}
	if !found {
		return "", fmt.Errorf("%s: no file in outputs: %w", g.key, domain.ErrMalformedResponse)
	}
	data, err := g.client.Download(ctx, g.cfg.Space, file)
	if err != nil {
		return "", fmt.Errorf("%s: download output: %w", g.key, err)
	}
	if g.cfg.Kind == domain.MediaTypeImage {
		if data, err = webpToPNG(data); err != nil {
			return "", fmt.Errorf("%s: %w", g.key, err)
		}
	}
	return rehost(ctx, g.uploader, data, g.cfg.Kind, req, prompt)
}

var _ Generator = (*Space)(nil)
