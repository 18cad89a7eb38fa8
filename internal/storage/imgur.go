package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/infra"
)

const defaultImgurBaseURL = "https://api.imgur.com/3"

// ImgurOptions configures the Imgur uploader.
type ImgurOptions struct {
	ClientID       string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// ImgurUploader posts base64 media to the anonymous Imgur upload API.
type ImgurUploader struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type imgurResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// NewImgurUploader constructs an uploader. A client id is required.
func NewImgurUploader(opts ImgurOptions) (*ImgurUploader, error) {
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("imgur: client id: %w", domain.ErrMissingCredentials)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultImgurBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Nop()
	}
	return &ImgurUploader{clientID: clientID, baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// Upload sends the payload as an image or video and returns the hosted link.
func (u *ImgurUploader) Upload(ctx context.Context, payload string, kind domain.MediaType, title, description string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", ErrEmptyPayload
	}
	endpoint, field := u.baseURL+"/image", "image"
	if kind == domain.MediaTypeVideo {
		endpoint, field = u.baseURL+"/upload", "video"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := []struct{ key, value string }{
		{field, payload},
		{"type", "base64"},
		{"title", title},
		{"description", description},
	}
	for _, f := range fields {
		if err := form.WriteField(f.key, f.value); err != nil {
			return "", fmt.Errorf("imgur: write form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("imgur: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("imgur: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Client-ID "+u.clientID)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &domain.UpstreamError{Provider: "imgur", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UpstreamError{Provider: "imgur", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{Provider: "imgur", Status: resp.StatusCode, Body: string(raw)}
	}

	var decoded imgurResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("imgur: decode response: %w", errors.Join(domain.ErrMalformedResponse, err))
	}
	link := strings.TrimSpace(decoded.Data.Link)
	if !decoded.Success || link == "" {
		return "", fmt.Errorf("imgur: upload rejected (status %d): %w", decoded.Status, domain.ErrProviderFailure)
	}
	u.logger.Debug().Str("kind", string(kind)).Str("url", link).Msg("imgur: media uploaded")
	return link, nil
}

var _ Uploader = (*ImgurUploader)(nil)
