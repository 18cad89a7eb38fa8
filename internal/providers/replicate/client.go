package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"imagelab/internal/domain"
	"imagelab/internal/infra"
)

const (
	providerName       = "replicate"
	defaultBaseURL     = "https://api.replicate.com/v1"
	defaultPollEvery   = time.Second
	defaultCallTimeout = 60 * time.Second
)

// ErrPredictionFailed is returned when a prediction ends as failed or canceled.
var ErrPredictionFailed = errors.New("replicate: prediction failed")

// Options configures the Replicate client.
type Options struct {
	Token          string
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Logger         *infra.Logger
	HTTPClient     *fasthttp.Client
}

// Client creates predictions and polls them until they settle.
type Client struct {
	token        string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	client       *fasthttp.Client
	logger       *infra.Logger
}

// Prediction mirrors the fields of the predictions resource the client reads.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

type createRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

// NewClient returns a client. The token is required.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("replicate: api token: %w", domain.ErrMissingCredentials)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: 64 << 20,
		}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollEvery
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Nop()
	}
	return &Client{
		token:        token,
		baseURL:      baseURL,
		pollInterval: poll,
		timeout:      timeout,
		client:       client,
		logger:       logger,
	}, nil
}

// Run creates a prediction for modelRef ("owner/name" or "owner/name:version")
// and returns its output URLs once it succeeds.
func (c *Client) Run(ctx context.Context, modelRef string, input map[string]any) ([]string, error) {
	pred, err := c.create(ctx, modelRef, input)
	if err != nil {
		return nil, err
	}
	for !settled(pred.Status) {
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		pred, err = c.get(ctx, pred)
		if err != nil {
			return nil, err
		}
	}
	if pred.Status != "succeeded" {
		detail := strings.Trim(strings.TrimSpace(string(pred.Error)), `"`)
		if detail == "" || detail == "null" {
			detail = pred.Status
		}
		return nil, fmt.Errorf("%w: %s", ErrPredictionFailed, detail)
	}
	urls := OutputURLs(pred.Output)
	if len(urls) == 0 {
		return nil, domain.ErrEmptyMedia
	}
	c.logger.Debug().Str("model", modelRef).Str("prediction", pred.ID).Int("outputs", len(urls)).Msg("replicate: prediction succeeded")
	return urls, nil
}

func (c *Client) create(ctx context.Context, modelRef string, input map[string]any) (*Prediction, error) {
	modelRef = strings.Trim(strings.TrimSpace(modelRef), "/")
	if modelRef == "" {
		return nil, errors.New("replicate: model is required")
	}
	payload := createRequest{Input: input}
	endpoint := c.baseURL + "/models/" + modelRef + "/predictions"
	if _, version, ok := strings.Cut(modelRef, ":"); ok {
		payload.Version = version
		endpoint = c.baseURL + "/predictions"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	return c.exchange(ctx, fasthttp.MethodPost, endpoint, body)
}

func (c *Client) get(ctx context.Context, pred *Prediction) (*Prediction, error) {
	endpoint := strings.TrimSpace(pred.URLs.Get)
	if endpoint == "" {
		endpoint = c.baseURL + "/predictions/" + pred.ID
	}
	return c.exchange(ctx, fasthttp.MethodGet, endpoint, nil)
}

func (c *Client) exchange(ctx context.Context, method, endpoint string, body []byte) (*Prediction, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}
	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	status := resp.StatusCode()
	if status >= 300 {
		return nil, &domain.UpstreamError{Provider: providerName, Status: status, Body: string(resp.Body())}
	}
	var pred Prediction
	if err := json.Unmarshal(resp.Body(), &pred); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w", errors.Join(domain.ErrMalformedResponse, err))
	}
	if pred.ID == "" {
		return nil, fmt.Errorf("replicate: prediction without id: %w", domain.ErrMalformedResponse)
	}
	return &pred, nil
}

// Download fetches an output file and returns its bytes.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimSpace(fileURL))
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, &domain.UpstreamError{Provider: providerName, Status: status, Body: string(resp.Body())}
	}
	data := append([]byte(nil), resp.Body()...)
	if len(data) == 0 {
		return nil, domain.ErrEmptyMedia
	}
	return data, nil
}

// do bounds the call by the context deadline when one is set.
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			err = errors.Join(context.DeadlineExceeded, err)
		}
		return &domain.UpstreamError{Provider: providerName, Err: err}
	}
	return nil
}

func settled(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

// OutputURLs normalizes a prediction output that is either a single URL or a list of URLs.
func OutputURLs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := list[:0]
	for _, u := range list {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
