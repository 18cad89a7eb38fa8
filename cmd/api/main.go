package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagelab/internal/counter"
	"imagelab/internal/dispatch"
	"imagelab/internal/domain/jsoncfg"
	"imagelab/internal/http/handlers"
	httpapi "imagelab/internal/http/httpapi"
	"imagelab/internal/infra"
	mw "imagelab/internal/middleware"
	"imagelab/internal/notify/telegram"
	"imagelab/internal/providers/media"
	"imagelab/internal/providers/translate"
	"imagelab/internal/retry"
	"imagelab/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	catalog, err := jsoncfg.LoadCatalog(cfg.ModelsFile, cfg.StylesFile, cfg.ExamplesFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}
	catalog.Normalize(media.KnownProvider)
	if err := catalog.Validate(media.KnownProvider); err != nil {
		logger.Fatal().Err(err).Msg("catalog references unknown providers")
	}
	logger.Info().
		Int("models", len(catalog.Models)).
		Int("new_models", catalog.NewModelCount()).
		Int("styles", len(catalog.Styles)).
		Int("examples", len(catalog.Examples)).
		Msg("catalog loaded")

	uploader, staticDir := buildUploader(ctx, cfg, &logger)

	registry := media.BuildRegistry(media.Settings{
		HuggingFaceToken:   cfg.HFToken,
		HuggingFaceURL:     cfg.HFURL,
		ReplicateToken:     cfg.ReplicateAPIToken,
		UnsplashAccessKey:  cfg.UnsplashAccessKey,
		PollinationsAPIKey: cfg.PollinationsAPIKey,
		CallTimeout:        cfg.DispatchCallTimeout,
		InferenceRetry:     retry.Policy{MaxAttempts: cfg.RetryMaxAttempts, Delay: cfg.RetryDelay},
	}, uploader, &logger)

	translator, err := translate.NewGoogle(translate.Options{
		Target:  cfg.TranslateTarget,
		BaseURL: cfg.TranslateBaseURL,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("translation skipped; using original prompt")
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid translator configuration")
	}
	logger.Info().Str("target", translator.Target().String()).Msg("prompt translation enabled")

	dispatcher := dispatch.New(registry, translator, dispatch.Options{
		Concurrency:  cfg.DispatchConcurrency,
		CallTimeout:  cfg.DispatchCallTimeout,
		BatchTimeout: cfg.DispatchBatchTimeout,
		Logger:       &logger,
	})

	counterStore, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open data dir")
	}
	visits, err := counter.NewService(ctx, counterStore, counter.Options{Key: cfg.CounterFile})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load visitor counter")
	}

	app := &handlers.App{
		Catalog:    catalog,
		Providers:  registry,
		Dispatcher: dispatcher,
		Counter:    visits,
		Logger:     &logger,
	}
	if cfg.TelegramEnabled() {
		sender, err := telegram.NewSender(telegram.Options{
			Token:  cfg.TelegramBotToken,
			ChatID: cfg.TelegramChatID,
			Logger: &logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("telegram delivery disabled")
		} else {
			app.Notifier = sender
		}
	} else {
		logger.Info().Msg("telegram delivery disabled: TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
	}

	trusted, err := mw.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid TRUSTED_PROXIES")
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
		TrustedProxies:  trusted,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := app.WaitNotifications(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending telegram deliveries abandoned")
	}
	logger.Info().Msg("server stopped")
}

// buildUploader returns the configured media sink and, for the local sink,
// the directory to expose under /static. A nil uploader leaves only the
// adapters that return hosted URLs.
func buildUploader(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (storage.Uploader, string) {
	switch cfg.MediaSink {
	case infra.MediaSinkS3:
		up, err := storage.NewS3Uploader(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Prefix:        cfg.S3Prefix,
			PublicBaseURL: cfg.S3PublicBaseURL,
			Endpoint:      cfg.S3Endpoint,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure s3 sink")
		}
		return up, ""
	case infra.MediaSinkLocal:
		store, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open storage path")
		}
		up, err := storage.NewLocalUploader(store, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure local sink")
		}
		return up, store.BasePath()
	default:
		up, err := storage.NewImgurUploader(storage.ImgurOptions{
			ClientID:       cfg.ImgurClientID,
			Logger:         logger,
			RequestTimeout: cfg.DispatchCallTimeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("imgur sink unavailable")
			return nil, ""
		}
		return up, ""
	}
}
