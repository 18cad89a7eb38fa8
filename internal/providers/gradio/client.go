package gradio

import (
	"bufio"
	"bytes"
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
	"imagelab/internal/infra"
)

const providerName = "gradio"

// ErrSpaceFailed is reported when a Space finishes an event with an error.
var ErrSpaceFailed = errors.New("gradio: space reported an error")

// Options configures the Gradio Space client.
type Options struct {
	// Token is sent as a bearer token; required for gated or ZeroGPU Spaces.
	Token      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// ResolveSpace maps "owner/name" to the Space base URL. Defaults to SpaceURL.
	ResolveSpace   func(space string) string
	RequestTimeout time.Duration
}

// Client calls Space endpoints through the queue-backed /call API.
type Client struct {
	token      string
	httpClient *http.Client
	logger     *infra.Logger
	resolve    func(string) string
}

// FileData is the file reference Gradio returns for media outputs.
type FileData struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	OrigName string `json:"orig_name"`
}

type callRequest struct {
	Data []any `json:"data"`
}

type callResponse struct {
	EventID string `json:"event_id"`
}

// NewClient constructs a client with defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	resolve := opts.ResolveSpace
	if resolve == nil {
		resolve = SpaceURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Nop()
	}
	return &Client{
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		logger:     logger,
		resolve:    resolve,
	}
}

// SpaceURL returns the direct host of a Space, e.g.
// "ByteDance/SDXL-Lightning" becomes "https://bytedance-sdxl-lightning.hf.space".
func SpaceURL(space string) string {
	replacer := strings.NewReplacer("/", "-", ".", "-", "_", "-")
	host := replacer.Replace(strings.ToLower(strings.Trim(strings.TrimSpace(space), "/")))
	return "https://" + host + ".hf.space"
}

// Predict submits args to apiName on space and waits for the completed outputs.
func (c *Client) Predict(ctx context.Context, space, apiName string, args ...any) ([]json.RawMessage, error) {
	base := strings.TrimRight(c.resolve(space), "/")
	apiName = strings.Trim(strings.TrimSpace(apiName), "/")
	if base == "" || apiName == "" {
		return nil, fmt.Errorf("gradio: space and api name are required")
	}
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(callRequest{Data: args})
	if err != nil {
		return nil, fmt.Errorf("gradio: encode request: %w", err)
	}
	callURL := base + "/call/" + apiName

	raw, status, err := c.do(ctx, http.MethodPost, callURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &domain.UpstreamError{Provider: providerName, Status: status, Body: string(raw)}
	}
	var submitted callResponse
	if err := json.Unmarshal(raw, &submitted); err != nil || strings.TrimSpace(submitted.EventID) == "" {
		return nil, fmt.Errorf("gradio: missing event id: %w", domain.ErrMalformedResponse)
	}
	c.logger.Debug().
		Str("space", space).
		Str("api", apiName).
		Str("event_id", submitted.EventID).
		Msg("gradio: call queued")

	return c.await(ctx, callURL+"/"+url.PathEscape(submitted.EventID))
}

func (c *Client) await(ctx context.Context, streamURL string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gradio: build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Body: string(raw)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				var outputs []json.RawMessage
				if err := json.Unmarshal([]byte(data), &outputs); err != nil {
					return nil, fmt.Errorf("gradio: decode outputs: %w", errors.Join(domain.ErrMalformedResponse, err))
				}
				return outputs, nil
			case "error":
				if data == "" || data == "null" {
					return nil, ErrSpaceFailed
				}
				return nil, fmt.Errorf("%w: %s", ErrSpaceFailed, data)
			}
		case line == "":
			event = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.UpstreamError{Provider: providerName, Err: err}
	}
	return nil, fmt.Errorf("gradio: stream ended without result: %w", domain.ErrMalformedResponse)
}

// Download fetches a file output. Relative paths are served by the Space under /file=.
func (c *Client) Download(ctx context.Context, space string, file FileData) ([]byte, error) {
	target := strings.TrimSpace(file.URL)
	if target == "" {
		path := strings.TrimSpace(file.Path)
		if path == "" {
			return nil, fmt.Errorf("gradio: file has no url or path: %w", domain.ErrEmptyMedia)
		}
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			target = path
		} else {
			target = strings.TrimRight(c.resolve(space), "/") + "/file=" + path
		}
	}
	raw, status, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &domain.UpstreamError{Provider: providerName, Status: status, Body: string(raw)}
	}
	if len(raw) == 0 {
		return nil, domain.ErrEmptyMedia
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, fmt.Errorf("gradio: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Err: err}
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// ExtractFile finds the first file reference in an output value. It accepts a
// FileData object, a bare path string or an object wrapping one under any key
// (e.g. {"video": {...}}).
func ExtractFile(raw json.RawMessage) (FileData, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return FileData{}, false
	}
	switch trimmed[0] {
	case '"':
		var path string
		if err := json.Unmarshal(trimmed, &path); err != nil || strings.TrimSpace(path) == "" {
			return FileData{}, false
		}
		return FileData{Path: path}, true
	case '{':
		var file FileData
		if err := json.Unmarshal(trimmed, &file); err == nil && (file.Path != "" || file.URL != "") {
			return file, true
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return FileData{}, false
		}
		for _, key := range []string{"video", "image", "value"} {
			if v, ok := nested[key]; ok {
				if file, ok := ExtractFile(v); ok {
					return file, true
				}
			}
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return FileData{}, false
		}
		for _, item := range items {
			if file, ok := ExtractFile(item); ok {
				return file, true
			}
		}
	}
	return FileData{}, false
}
