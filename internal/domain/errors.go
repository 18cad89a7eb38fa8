package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrNoModels           = errors.New("no models selected")
	ErrUnknownModel       = errors.New("unknown model")
	ErrUnknownStyle       = errors.New("unknown style")
	ErrIncompatibleStyle  = errors.New("style not available for model")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrProviderFailure    = errors.New("provider failure")
	ErrMalformedResponse  = errors.New("malformed upstream response")
	ErrEmptyMedia         = errors.New("provider returned no media")
)

// UpstreamError describes a failed call to a third-party service.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	if e.Status > 0 {
		fmt.Fprintf(&sb, ": status %d", e.Status)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		sb.WriteString(": ")
		sb.WriteString(body)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *UpstreamError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrProviderFailure
}

// Transient reports whether the failure is worth retrying.
func (e *UpstreamError) Transient() bool {
	if e.Status == 0 {
		return e.Err != nil && IsTransient(e.Err)
	}
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout || e.Status >= 500
}

// IsTransient classifies err as a temporary upstream condition: timeouts,
// connection failures, 5xx/429 responses and malformed payloads. Missing
// credentials, 4xx responses and caller cancellation are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrInvalidPrompt) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Status > 0 {
			return upstream.Transient()
		}
		if upstream.Err == nil {
			return false
		}
		err = upstream.Err
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "eof")
}
