package media

import (
	"errors"
	"net/http"
	"time"

	"imagelab/internal/domain"
	"imagelab/internal/infra"
	"imagelab/internal/providers/gradio"
	"imagelab/internal/providers/replicate"
	"imagelab/internal/retry"
	"imagelab/internal/storage"
)

// Settings carries the credentials and endpoints used to build the registry.
type Settings struct {
	HuggingFaceToken    string
	HuggingFaceURL      string
	ReplicateToken      string
	UnsplashAccessKey   string
	PollinationsAPIKey  string
	CallTimeout         time.Duration
	InferenceRetry      retry.Policy
	HTTPClient          *http.Client
	ReplicatePollPeriod time.Duration
}

// BuildRegistry constructs every adapter that has the credentials it needs.
// Adapters that cannot be configured are skipped with a warning so their
// models surface as unavailable instead of failing startup.
func BuildRegistry(s Settings, uploader storage.Uploader, logger *infra.Logger) *Registry {
	reg := NewRegistry()
	if logger == nil {
		logger = infra.Nop()
	}
	if uploader == nil {
		logger.Warn().Msg("media: no uploader configured; only unsplash can be registered")
	}
	httpClient := s.HTTPClient
	if httpClient == nil {
		timeout := s.CallTimeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	inference := s.InferenceRetry
	if inference.MaxAttempts == 0 {
		inference = retry.Default()
	}
	spaceRetry := inference
	spaceRetry.Retryable = func(err error) bool {
		return errors.Is(err, gradio.ErrSpaceFailed) || domain.IsTransient(err)
	}

	skip := func(key string, err error) {
		logger.Warn().Err(err).Str("provider", key).Msg("media: adapter not registered")
	}

	if uploader != nil {
		if hf, err := NewHuggingFace(HuggingFaceOptions{
			Token:      s.HuggingFaceToken,
			BaseURL:    s.HuggingFaceURL,
			HTTPClient: httpClient,
			Uploader:   uploader,
		}); err != nil {
			skip(ProviderHuggingFace, err)
		} else {
			reg.Register(ProviderHuggingFace, hf, inference)
		}

		if p, err := NewPollinations(PollinationsOptions{
			APIKey:     s.PollinationsAPIKey,
			HTTPClient: httpClient,
			Uploader:   uploader,
		}); err != nil {
			skip(ProviderPollinations, err)
		} else {
			reg.Register(ProviderPollinations, p, retry.Single)
		}

		spaces := gradio.NewClient(gradio.Options{
			Token:      s.HuggingFaceToken,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		for key, cfg := range DefaultSpaces {
			if key == ProviderSDXLLightning && s.HuggingFaceToken == "" {
				skip(key, domain.ErrMissingCredentials)
				continue
			}
			sp, err := NewSpace(key, cfg, spaces, uploader)
			if err != nil {
				skip(key, err)
				continue
			}
			reg.Register(key, sp, spaceRetry)
		}

		if rc, err := replicate.NewClient(replicate.Options{
			Token:          s.ReplicateToken,
			PollInterval:   s.ReplicatePollPeriod,
			RequestTimeout: s.CallTimeout,
			Logger:         logger,
		}); err != nil {
			skip(ProviderReplicate, err)
		} else if r, err := NewReplicate(rc, uploader); err != nil {
			skip(ProviderReplicate, err)
		} else {
			reg.Register(ProviderReplicate, r, retry.Single)
		}
	}

	if u, err := NewUnsplash(UnsplashOptions{AccessKey: s.UnsplashAccessKey, HTTPClient: httpClient}); err != nil {
		skip(ProviderUnsplash, err)
	} else {
		reg.Register(ProviderUnsplash, u, retry.Single)
	}

	logger.Info().Strs("providers", reg.Keys()).Msg("media: adapters registered")
	return reg
}
