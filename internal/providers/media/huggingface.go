package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/storage"
)

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/models/"

// HuggingFaceOptions configures the inference endpoint adapter.
type HuggingFaceOptions struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Uploader   storage.Uploader
	Now        func() time.Time
}

// HuggingFace posts prompts to serverless inference endpoints, which answer
// with raw image bytes.
type HuggingFace struct {
	token      string
	baseURL    string
	httpClient *http.Client
	uploader   storage.Uploader
	now        func() time.Time
}

type inferencePayload struct {
	Inputs         string `json:"inputs"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

func NewHuggingFace(opts HuggingFaceOptions) (*HuggingFace, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("huggingface: token: %w", domain.ErrMissingCredentials)
	}
	if opts.Uploader == nil {
		return nil, fmt.Errorf("huggingface: uploader is required")
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HuggingFace{token: token, baseURL: baseURL, httpClient: httpClient, uploader: opts.Uploader, now: now}, nil
}

func (g *HuggingFace) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := validatePrompt(req)
	if err != nil {
		return "", err
	}
	model := strings.Trim(strings.TrimSpace(req.ModelRef), "/")
	if model == "" {
		return "", fmt.Errorf("huggingface: model path is required")
	}
	body, err := json.Marshal(inferencePayload{
		Inputs:         withTimestamp(prompt, g.now()),
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
	})
	if err != nil {
		return "", fmt.Errorf("huggingface: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+model, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("huggingface: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.UpstreamError{Provider: ProviderHuggingFace, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UpstreamError{Provider: ProviderHuggingFace, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.UpstreamError{Provider: ProviderHuggingFace, Status: resp.StatusCode, Body: string(raw)}
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "application/json" {
		return "", &domain.UpstreamError{Provider: ProviderHuggingFace, Body: string(raw), Err: domain.ErrMalformedResponse}
	}
	return rehost(ctx, g.uploader, raw, domain.MediaTypeImage, req, prompt)
}

var _ Generator = (*HuggingFace)(nil)
