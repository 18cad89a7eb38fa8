package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"imagelab/internal/domain"
)

// Uploader re-hosts generated media and returns a publicly reachable URL.
// Every call performs exactly one upload; payloads are never deduplicated.
type Uploader interface {
	Upload(ctx context.Context, payload string, kind domain.MediaType, title, description string) (string, error)
}

// ErrEmptyPayload is returned when there is nothing to upload.
var ErrEmptyPayload = errors.New("storage: payload is empty")

func decodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if idx := strings.Index(payload, ";base64,"); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("storage: decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return data, nil
}

// contentMeta sniffs the payload and returns its MIME type and file extension.
func contentMeta(kind domain.MediaType, data []byte) (string, string) {
	mime := http.DetectContentType(data)
	switch {
	case kind == domain.MediaTypeVideo || strings.HasPrefix(mime, "video/"):
		return "video/mp4", ".mp4"
	case mime == "image/jpeg":
		return mime, ".jpg"
	case mime == "image/gif":
		return mime, ".gif"
	case mime == "image/webp":
		return mime, ".webp"
	default:
		return "image/png", ".png"
	}
}

func objectKey(prefix, ext string) string {
	name := uuid.NewString() + ext
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func joinURL(base, key string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(key, "/")
}
