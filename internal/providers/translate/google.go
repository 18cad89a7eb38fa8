package translate

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
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	defaultBaseURL = "https://translate.googleapis.com/translate_a/single"
	defaultTimeout = 10 * time.Second
	// maxChars mirrors the public endpoint's request size limit.
	maxChars = 5000
)

// Translator normalizes prompt text into the target language. It never fails:
// on any problem the input is returned unchanged.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Options configures the Google translator.
type Options struct {
	Target     string
	BaseURL    string
	HTTPClient *http.Client
	OnFallback func(reason string, err error)
}

// Google calls the keyless gtx translate endpoint with automatic source detection.
type Google struct {
	target     language.Tag
	baseURL    string
	client     *http.Client
	onFallback func(reason string, err error)
}

// NewGoogle validates the target language tag and applies defaults.
func NewGoogle(opts Options) (*Google, error) {
	target := strings.TrimSpace(opts.Target)
	if target == "" {
		target = "en"
	}
	tag, err := language.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("translate: invalid target %q: %w", target, err)
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Google{target: tag, baseURL: baseURL, client: client, onFallback: opts.OnFallback}, nil
}

// Target returns the configured target language tag.
func (g *Google) Target() language.Tag {
	return g.target
}

// Translate returns text in the target language or text itself when translation fails.
func (g *Google) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if utf8.RuneCountInString(text) > maxChars {
		g.fallback("too_long", fmt.Errorf("translate: %d characters exceeds limit", utf8.RuneCountInString(text)))
		return text
	}
	translated, err := g.call(ctx, text)
	if err != nil {
		g.fallback("request_failed", err)
		return text
	}
	if strings.TrimSpace(translated) == "" {
		g.fallback("empty_translation", errors.New("translate: empty result"))
		return text
	}
	return translated
}

func (g *Google) call(ctx context.Context, text string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", g.target.String())
	q.Set("dt", "t")
	q.Set("q", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("translate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: status %d", resp.StatusCode)
	}
	return parseSegments(raw)
}

// parseSegments joins the translated sentence segments of a gtx response:
// [[["translated","source",...],...],null,"he",...].
func parseSegments(raw []byte) (string, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if len(envelope) == 0 {
		return "", errors.New("translate: empty response")
	}
	var segments [][]any
	if err := json.Unmarshal(envelope[0], &segments); err != nil {
		return "", fmt.Errorf("translate: decode segments: %w", err)
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String(), nil
}

func (g *Google) fallback(reason string, err error) {
	if g.onFallback != nil {
		g.onFallback(reason, err)
	}
}

// Identity returns its input unchanged; used when translation is disabled.
type Identity struct{}

func (Identity) Translate(_ context.Context, text string) string {
	return text
}

var (
	_ Translator = (*Google)(nil)
	_ Translator = Identity{}
)
