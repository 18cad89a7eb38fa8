package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/providers/gradio"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, contentType string, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

type uploadCall struct {
	payload     string
	kind        domain.MediaType
	title       string
	description string
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []uploadCall
	url   string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, payload string, kind domain.MediaType, title, description string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, uploadCall{payload, kind, title, description})
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestHuggingFaceGenerate(t *testing.T) {
	imageBytes := tinyPNG(t)
	var gotURL, gotAuth string
	var payload map[string]any
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		gotAuth = req.Header.Get("Authorization")
		json.NewDecoder(req.Body).Decode(&payload)
		return response(http.StatusOK, "image/png", imageBytes), nil
	})}
	uploader := &fakeUploader{url: "https://i.imgur.com/x.png"}
	gen, err := NewHuggingFace(HuggingFaceOptions{
		Token:      "hf",
		BaseURL:    "https://hf.example/models/",
		HTTPClient: client,
		Uploader:   uploader,
		Now:        func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("NewHuggingFace: %v", err)
	}

	url, err := gen.Generate(context.Background(), Request{Prompt: "a red car", ModelRef: "kudzueye/boreal-flux-dev-v2", Title: "Boreal"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if url != "https://i.imgur.com/x.png" {
		t.Fatalf("url = %q", url)
	}
	if gotURL != "https://hf.example/models/kudzueye/boreal-flux-dev-v2" || gotAuth != "Bearer hf" {
		t.Fatalf("url = %q auth = %q", gotURL, gotAuth)
	}
	if payload["inputs"] != "a red car [Timestamp: 1700000000]" {
		t.Fatalf("inputs = %v", payload["inputs"])
	}
	if _, ok := payload["negative_prompt"]; ok {
		t.Fatal("negative_prompt should be omitted when empty")
	}
	if len(uploader.calls) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploader.calls))
	}
	call := uploader.calls[0]
	if call.title != "Boreal" || call.description != "a red car" || call.kind != domain.MediaTypeImage {
		t.Fatalf("upload call = %+v", call)
	}
	if call.payload != base64.StdEncoding.EncodeToString(imageBytes) {
		t.Fatal("payload should be the base64 of the response body")
	}
}

func TestHuggingFaceFailures(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		contentType   string
		body          string
		wantTransient bool
	}{
		{name: "model loading", status: http.StatusServiceUnavailable, contentType: "application/json", body: `{"error":"loading"}`, wantTransient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, contentType: "application/json", body: `{"error":"bad token"}`},
		{name: "json on success", status: http.StatusOK, contentType: "application/json; charset=utf-8", body: `{"error":"x"}`, wantTransient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return response(tt.status, tt.contentType, []byte(tt.body)), nil
			})}
			uploader := &fakeUploader{url: "u"}
			gen, _ := NewHuggingFace(HuggingFaceOptions{Token: "hf", HTTPClient: client, Uploader: uploader})
			_, err := gen.Generate(context.Background(), Request{Prompt: "p", ModelRef: "a/b", NegativePrompt: "blurry"})
			if err == nil {
				t.Fatal("expected error")
			}
			if domain.IsTransient(err) != tt.wantTransient {
				t.Fatalf("IsTransient(%v) = %v, want %v", err, !tt.wantTransient, tt.wantTransient)
			}
			if len(uploader.calls) != 0 {
				t.Fatal("nothing should be uploaded on failure")
			}
		})
	}
}

func TestHuggingFaceRequiresToken(t *testing.T) {
	if _, err := NewHuggingFace(HuggingFaceOptions{Uploader: &fakeUploader{}}); !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("err = %v", err)
	}
}

func TestPollinationsURL(t *testing.T) {
	var got *http.Request
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		return response(http.StatusOK, "image/jpeg", []byte{0xff, 0xd8, 0xff}), nil
	})}
	uploader := &fakeUploader{url: "https://i.imgur.com/p.jpg"}
	gen, _ := NewPollinations(PollinationsOptions{HTTPClient: client, Uploader: uploader})
	if _, err := gen.Generate(context.Background(), Request{Prompt: "cats & dogs/ok", ModelRef: "turbo"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.URL.EscapedPath() != "/prompt/cats%20&%20dogs%2Fok" {
		t.Fatalf("path = %q", got.URL.EscapedPath())
	}
	q := got.URL.Query()
	for k, want := range map[string]string{"model": "turbo", "width": "1280", "height": "720", "seed": "42", "nologo": "true", "enhance": "true"} {
		if q.Get(k) != want {
			t.Fatalf("query %s = %q, want %q", k, q.Get(k), want)
		}
	}
	if got.Header.Get("Authorization") != "" {
		t.Fatal("no auth header expected without api key")
	}
}

type fakeSpace struct {
	args    []any
	outputs []json.RawMessage
	file    []byte
	err     error
}

func (f *fakeSpace) Predict(_ context.Context, _, _ string, args ...any) ([]json.RawMessage, error) {
	f.args = args
	return f.outputs, f.err
}

func (f *fakeSpace) Download(context.Context, string, gradio.FileData) ([]byte, error) {
	return f.file, nil
}

func TestSpaceGenerateVideo(t *testing.T) {
	client := &fakeSpace{
		outputs: []json.RawMessage{json.RawMessage(`{"video":{"path":"/tmp/out.mp4"}}`)},
		file:    []byte("mp4"),
	}
	uploader := &fakeUploader{url: "https://i.imgur.com/v.mp4"}
	sp, err := NewSpace(ProviderAnimateDiffLightning, DefaultSpaces[ProviderAnimateDiffLightning], client, uploader)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	sp.now = func() time.Time { return time.Unix(10, 0) }
	url, err := sp.Generate(context.Background(), Request{Prompt: "a cat", Title: "AnimateDiff"})
	if err != nil || url != "https://i.imgur.com/v.mp4" {
		t.Fatalf("Generate = %q, %v", url, err)
	}
	if client.args[0] != "a cat [Timestamp: 10]" || len(client.args) != 4 {
		t.Fatalf("args = %v", client.args)
	}
	if uploader.calls[0].kind != domain.MediaTypeVideo || uploader.calls[0].description != "a cat" {
		t.Fatalf("upload = %+v", uploader.calls[0])
	}
}

func TestSpaceGenerateMissingFile(t *testing.T) {
	client := &fakeSpace{outputs: []json.RawMessage{json.RawMessage(`null`)}}
	sp, _ := NewSpace(ProviderSDXLLightning, DefaultSpaces[ProviderSDXLLightning], client, &fakeUploader{})
	_, err := sp.Generate(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestWebpToPNGPassesThroughOtherFormats(t *testing.T) {
	data := tinyPNG(t)
	out, err := webpToPNG(data)
	if err != nil || !bytes.Equal(out, data) {
		t.Fatalf("png should pass through unchanged: %v", err)
	}
	riffHeader := []byte("RIFF\x10\x00\x00\x00WEBPVP8 garbage")
	if _, err := webpToPNG(riffHeader); err == nil {
		t.Fatal("corrupt webp should fail to decode")
	}
}

type fakePredictions struct {
	input map[string]any
	urls  []string
}

func (f *fakePredictions) Run(_ context.Context, _ string, input map[string]any) ([]string, error) {
	f.input = input
	return f.urls, nil
}

func (f *fakePredictions) Download(context.Context, string) ([]byte, error) {
	return []byte("video"), nil
}

func TestReplicateGenerate(t *testing.T) {
	preds := &fakePredictions{urls: []string{"https://replicate.delivery/x/out.MP4"}}
	uploader := &fakeUploader{url: "https://i.imgur.com/r.mp4"}
	gen, _ := NewReplicate(preds, uploader)
	url, err := gen.Generate(context.Background(), Request{Prompt: "waves", ModelRef: "a/b", NegativePrompt: "blurry"})
	if err != nil || url != "https://i.imgur.com/r.mp4" {
		t.Fatalf("Generate = %q, %v", url, err)
	}
	if preds.input["negative_prompt"] != "blurry" {
		t.Fatalf("input = %v", preds.input)
	}
	if uploader.calls[0].kind != domain.MediaTypeVideo {
		t.Fatalf("kind = %s, want video", uploader.calls[0].kind)
	}

	preds.urls = nil
	if _, err := gen.Generate(context.Background(), Request{Prompt: "waves"}); !errors.Is(err, domain.ErrEmptyMedia) {
		t.Fatalf("empty output err = %v", err)
	}
}

func TestUnsplashGenerate(t *testing.T) {
	var got *http.Request
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		return response(http.StatusOK, "application/json", []byte(`{"urls":{"regular":"https://images.unsplash.com/photo-1"}}`)), nil
	})}
	gen, err := NewUnsplash(UnsplashOptions{AccessKey: "key", HTTPClient: client})
	if err != nil {
		t.Fatalf("NewUnsplash: %v", err)
	}
	url, err := gen.Generate(context.Background(), Request{Prompt: "mountain lake"})
	if err != nil || url != "https://images.unsplash.com/photo-1" {
		t.Fatalf("Generate = %q, %v", url, err)
	}
	if got.URL.Path != "/photos/random" || got.URL.Query().Get("query") != "mountain lake" {
		t.Fatalf("request = %s", got.URL)
	}
	if got.Header.Get("Authorization") != "Client-ID key" {
		t.Fatalf("auth = %q", got.Header.Get("Authorization"))
	}
}

func TestGeneratorsRejectEmptyPrompt(t *testing.T) {
	gen, _ := NewPollinations(PollinationsOptions{Uploader: &fakeUploader{}})
	if _, err := gen.Generate(context.Background(), Request{Prompt: "   "}); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildRegistrySkipsUnconfiguredAdapters(t *testing.T) {
	reg := BuildRegistry(Settings{}, &fakeUploader{}, nil)
	for _, key := range []string{ProviderPollinations, ProviderHandDrawnCartoon, ProviderAnimateDiffLightning} {
		if !reg.Has(key) {
			t.Fatalf("%s should be registered without credentials", key)
		}
	}
	for _, key := range []string{ProviderHuggingFace, ProviderSDXLLightning, ProviderReplicate, ProviderUnsplash} {
		if reg.Has(key) {
			t.Fatalf("%s should not be registered without credentials", key)
		}
	}
	_, policy, _ := reg.Lookup(ProviderHandDrawnCartoon)
	if policy.MaxAttempts != 3 || policy.Delay != 2*time.Second {
		t.Fatalf("space policy = %+v", policy)
	}
	if !policy.Retryable(gradio.ErrSpaceFailed) {
		t.Fatal("space errors should be retried")
	}

	full := BuildRegistry(Settings{HuggingFaceToken: "hf", ReplicateToken: "r8", UnsplashAccessKey: "u"}, &fakeUploader{}, nil)
	if got := len(full.Keys()); got != len(knownProviders) {
		t.Fatalf("registered = %v", full.Keys())
	}
	for _, key := range full.Keys() {
		if !KnownProvider(key) {
			t.Fatalf("%s is not a known provider", key)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("sdxl_lightning"); got != "Sdxl Lightning" {
		t.Fatalf("DisplayName = %q", got)
	}
	if !strings.EqualFold(DisplayName("pollinations"), "pollinations") {
		t.Fatal("single word should be title-cased")
	}
}
