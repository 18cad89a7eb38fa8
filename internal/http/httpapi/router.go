package httpapi

import (
	"net/http"
	"net/netip"
	"os"
	"time"

	"imagelab/internal/http/handlers"
	"imagelab/internal/infra"
	mw "imagelab/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	// TrustedProxies may set the client address through X-Forwarded-For.
	TrustedProxies []netip.Prefix
	// StaticDir is served under /static when set (local media sink).
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		mw.RealIP(opts.TrustedProxies),
		mw.RequestID,
		mw.Logger(opts.Logger),
		middleware.Recoverer,
		mw.CORS(opts.CORSOrigins),
		mw.Locale(language.Hebrew, language.English),
		mw.Session,
	)

	r.Get("/v1/healthz", app.Health)

	r.Get("/v1/models", app.Models)
	r.Get("/v1/styles", app.Styles)
	r.Get("/v1/examples", app.Examples)

	r.With(mw.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/v1/comparisons", app.CreateComparison)

	r.Get("/v1/stats", app.Stats)
	r.Post("/v1/visits", app.RecordVisit)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(filesOnly{http.Dir(opts.StaticDir)}))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}

// filesOnly serves regular files and reports directories as missing, so
// /static never lists generated media.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
