package domain

import (
	"net/url"
	"strings"
	"time"
)

// MediaType classifies the outcome of a single generation slot.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeError MediaType = "error"
)

// MediaTypeFromURL derives the media type from the URL path suffix. Query
// strings and fragments are ignored and the extension match is case-insensitive.
func MediaTypeFromURL(raw string) MediaType {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MediaTypeError
	}
	path := raw
	if parsed, err := url.Parse(raw); err == nil {
		path = parsed.Path
	} else if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		path = raw[:idx]
	}
	if strings.HasSuffix(strings.ToLower(path), ".mp4") {
		return MediaTypeVideo
	}
	return MediaTypeImage
}

// Result is the immutable outcome of generating media for one model of a batch.
type Result struct {
	Model     ModelDescriptor `json:"model"`
	MediaURL  string          `json:"media_url,omitempty"`
	MediaType MediaType       `json:"media_type"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts"`
	Duration  time.Duration   `json:"duration_ns"`
}

// NewResult builds a result for model. A non-nil err or an empty mediaURL
// produces an error result.
func NewResult(model ModelDescriptor, mediaURL string, err error) Result {
	mediaURL = strings.TrimSpace(mediaURL)
	res := Result{Model: model}
	if err != nil {
		res.MediaType = MediaTypeError
		res.Error = err.Error()
		return res
	}
	if mediaURL == "" {
		res.MediaType = MediaTypeError
		res.Error = ErrEmptyMedia.Error()
		return res
	}
	res.MediaURL = mediaURL
	res.MediaType = MediaTypeFromURL(mediaURL)
	return res
}

// Succeeded reports whether the slot produced media.
func (r Result) Succeeded() bool {
	return r.MediaType != MediaTypeError && r.MediaURL != ""
}
