package media

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"

	"golang.org/x/image/webp"
)

// webpToPNG re-encodes WebP payloads as PNG. Other formats pass through unchanged.
func webpToPNG(data []byte) ([]byte, error) {
	if http.DetectContentType(data) != "image/webp" {
		return data, nil
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode webp: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
