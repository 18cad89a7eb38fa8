package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/storage"
)

const defaultPollinationsURL = "https://image.pollinations.ai"

// PollinationsOptions configures the Pollinations adapter. The API key is optional.
type PollinationsOptions struct {
	BaseURL    string
	APIKey     string
	Width      int
	Height     int
	Seed       int
	HTTPClient *http.Client
	Uploader   storage.Uploader
}

// Pollinations renders prompts through the public GET endpoint and re-hosts the image.
type Pollinations struct {
	baseURL    string
	apiKey     string
	width      int
	height     int
	seed       int
	httpClient *http.Client
	uploader   storage.Uploader
}

func NewPollinations(opts PollinationsOptions) (*Pollinations, error) {
	if opts.Uploader == nil {
		return nil, fmt.Errorf("pollinations: uploader is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPollinationsURL
	}
	width, height, seed := opts.Width, opts.Height, opts.Seed
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if seed == 0 {
		seed = 42
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Pollinations{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		width:      width,
		height:     height,
		seed:       seed,
		httpClient: httpClient,
		uploader:   opts.Uploader,
	}, nil
}

// imageURL builds /prompt/{escaped prompt}?model=...&width=...&height=...&seed=...&nologo=true&enhance=true.
func (g *Pollinations) imageURL(prompt, model string) string {
	q := url.Values{}
	q.Set("model", model)
	q.Set("width", fmt.Sprint(g.width))
	q.Set("height", fmt.Sprint(g.height))
	q.Set("seed", fmt.Sprint(g.seed))
	q.Set("nologo", "true")
	q.Set("enhance", "true")
	return g.baseURL + "/prompt/" + url.PathEscape(prompt) + "?" + q.Encode()
}

func (g *Pollinations) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := validatePrompt(req)
	if err != nil {
		return "", err
	}
	model := strings.TrimSpace(req.ModelRef)
	if model == "" {
		model = "flux"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.imageURL(prompt, model), nil)
	if err != nil {
		return "", fmt.Errorf("pollinations: build request: %w", err)
	}
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.UpstreamError{Provider: ProviderPollinations, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UpstreamError{Provider: ProviderPollinations, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.UpstreamError{Provider: ProviderPollinations, Status: resp.StatusCode, Body: string(raw)}
	}
	return rehost(ctx, g.uploader, raw, domain.MediaTypeImage, req, prompt)
}

var _ Generator = (*Pollinations)(nil)
