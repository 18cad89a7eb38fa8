package media

import (
	"context"
	"fmt"
	"strings"

	"imagelab/internal/domain"
	"imagelab/internal/storage"
)

type predictionClient interface {
	Run(ctx context.Context, modelRef string, input map[string]any) ([]string, error)
	Download(ctx context.Context, fileURL string) ([]byte, error)
}

// Replicate runs a hosted model and re-hosts its first output, since delivery URLs expire.
type Replicate struct {
	client   predictionClient
	uploader storage.Uploader
}

func NewReplicate(client predictionClient, uploader storage.Uploader) (*Replicate, error) {
	if client == nil || uploader == nil {
		return nil, fmt.Errorf("replicate: client and uploader are required")
	}
	return &Replicate{client: client, uploader: uploader}, nil
}

func (g *Replicate) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := validatePrompt(req)
	if err != nil {
		return "", err
	}
	input := map[string]any{"prompt": prompt}
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		input["negative_prompt"] = neg
	}
	urls, err := g.client.Run(ctx, req.ModelRef, input)
	if err != nil {
		return "", err
	}
	if len(urls) == 0 {
		return "", domain.ErrEmptyMedia
	}
	data, err := g.client.Download(ctx, urls[0])
	if err != nil {
		return "", err
	}
	kind := domain.MediaTypeFromURL(urls[0])
	if kind == domain.MediaTypeImage {
		if data, err = webpToPNG(data); err != nil {
			return "", fmt.Errorf("replicate: %w", err)
		}
	}
	return rehost(ctx, g.uploader, data, kind, req, prompt)
}

var _ Generator = (*Replicate)(nil)
