package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"
)

func TestDetectLocale(t *testing.T) {
	supported := []language.Tag{language.Hebrew, language.English}
	matcher := language.NewMatcher(supported)

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			name: "x-locale overrides accept-language",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "EN")
				r.Header.Set("Accept-Language", "he-IL")
			},
			want: "en",
		},
		{
			name: "accept-language regional hebrew",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "he-IL,he;q=0.9,en;q=0.8")
			},
			want: "he",
		},
		{
			name: "accept-language english",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: "en",
		},
		{
			name: "unsupported language falls back",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "id-ID")
			},
			want: "he",
		},
		{
			name:  "no headers",
			setup: func(r *http.Request) {},
			want:  "he",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			if got := detectLocale(req, matcher, supported[0]); got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleMiddlewareStoresContext(t *testing.T) {
	var got string
	h := Locale(language.Hebrew, language.English)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-GB")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
	if rec.Header().Get("Content-Language") != "en" {
		t.Fatalf("Content-Language = %q", rec.Header().Get("Content-Language"))
	}
}
