package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagelab/internal/domain"
)

const defaultUnsplashURL = "https://api.unsplash.com"

// UnsplashOptions configures the stock photo adapter.
type UnsplashOptions struct {
	AccessKey  string
	BaseURL    string
	HTTPClient *http.Client
}

// Unsplash returns a random stock photo matching the prompt. Photos are
// already publicly hosted, so nothing is uploaded.
type Unsplash struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
}

type unsplashPhoto struct {
	URLs struct {
		Regular string `json:"regular"`
		Full    string `json:"full"`
	} `json:"urls"`
}

func NewUnsplash(opts UnsplashOptions) (*Unsplash, error) {
	key := strings.TrimSpace(opts.AccessKey)
	if key == "" {
		return nil, fmt.Errorf("unsplash: access key: %w", domain.ErrMissingCredentials)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultUnsplashURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Unsplash{accessKey: key, baseURL: baseURL, httpClient: httpClient}, nil
}

func (g *Unsplash) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := validatePrompt(req)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("query", prompt)
	q.Set("orientation", "landscape")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/photos/random?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("unsplash: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Client-ID "+g.accessKey)
	httpReq.Header.Set("Accept-Version", "v1")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.UpstreamError{Provider: ProviderUnsplash, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UpstreamError{Provider: ProviderUnsplash, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.UpstreamError{Provider: ProviderUnsplash, Status: resp.StatusCode, Body: string(raw)}
	}
	var photo unsplashPhoto
	if err := json.Unmarshal(raw, &photo); err != nil {
		return "", fmt.Errorf("unsplash: decode response: %w", errors.Join(domain.ErrMalformedResponse, err))
	}
	if u := strings.TrimSpace(photo.URLs.Regular); u != "" {
		return u, nil
	}
	if u := strings.TrimSpace(photo.URLs.Full); u != "" {
		return u, nil
	}
	return "", domain.ErrEmptyMedia
}

var _ Generator = (*Unsplash)(nil)
