package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Media sinks accepted by MEDIA_SINK.
const (
	MediaSinkImgur = "imgur"
	MediaSinkS3    = "s3"
	MediaSinkLocal = "local"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
	TrustedProxies   []string

	DataDir      string
	ModelsFile   string
	StylesFile   string
	ExamplesFile string

	HFToken            string
	HFURL              string
	ReplicateAPIToken  string
	UnsplashAccessKey  string
	PollinationsAPIKey string

	MediaSink        string
	ImgurClientID    string
	S3Bucket         string
	S3Region         string
	S3Prefix         string
	S3PublicBaseURL  string
	S3Endpoint       string
	StoragePath      string
	StorageBaseURL   string
	CounterFile      string
	TelegramBotToken string
	TelegramChatID   int64

	TranslateTarget  string
	TranslateBaseURL string

	DispatchConcurrency  int
	DispatchCallTimeout  time.Duration
	DispatchBatchTimeout time.Duration
	RetryMaxAttempts     int
	RetryDelay           time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		HTTPReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT_SECONDS", time.Second, 15),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT_SECONDS", time.Second, 660),
		HTTPIdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT_SECONDS", time.Second, 60),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
		TrustedProxies:   getEnvList("TRUSTED_PROXIES"),

		DataDir:      dataDir,
		ModelsFile:   getEnv("MODELS_FILE", filepath.Join(dataDir, "models.json")),
		StylesFile:   getEnv("STYLES_FILE", filepath.Join(dataDir, "image_styles.json")),
		ExamplesFile: getEnv("EXAMPLES_FILE", filepath.Join(dataDir, "examples.json")),

		HFToken:            os.Getenv("HF_TOKEN"),
		HFURL:              getEnv("HF_URL", "https://api-inference.huggingface.co/models/"),
		ReplicateAPIToken:  os.Getenv("REPLICATE_API_TOKEN"),
		UnsplashAccessKey:  os.Getenv("UNSPLASH_ACCESS_KEY"),
		PollinationsAPIKey: os.Getenv("POLLINATIONS_API_KEY"),

		MediaSink:        strings.ToLower(getEnv("MEDIA_SINK", MediaSinkImgur)),
		ImgurClientID:    os.Getenv("IMGUR_CLIENT_ID"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Region:         os.Getenv("S3_REGION"),
		S3Prefix:         getEnv("S3_PREFIX", "generated"),
		S3PublicBaseURL:  os.Getenv("S3_PUBLIC_BASE_URL"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		StoragePath:      getEnv("STORAGE_PATH", filepath.Join(dataDir, "storage")),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		CounterFile:      getEnv("COUNTER_FILE", "counter.json"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		TranslateTarget:  getEnv("TRANSLATE_TARGET", "en"),
		TranslateBaseURL: os.Getenv("TRANSLATE_BASE_URL"),

		DispatchConcurrency:  getEnvInt("DISPATCH_CONCURRENCY", 1),
		DispatchCallTimeout:  getEnvDuration("DISPATCH_CALL_TIMEOUT_SECONDS", time.Second, 180),
		DispatchBatchTimeout: getEnvDuration("DISPATCH_BATCH_TIMEOUT_SECONDS", time.Second, 600),
		RetryMaxAttempts:     getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryDelay:           getEnvDuration("RETRY_DELAY_MS", time.Millisecond, 2000),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer: %w", err)
		}
		cfg.TelegramChatID = id
	}

	switch cfg.MediaSink {
	case MediaSinkImgur, MediaSinkLocal:
	case MediaSinkS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when MEDIA_SINK=s3")
		}
	default:
		return nil, fmt.Errorf("MEDIA_SINK must be one of imgur, s3, local (got %q)", cfg.MediaSink)
	}

	if cfg.DispatchConcurrency < 1 {
		return nil, fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1")
	}
	if cfg.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.DispatchBatchTimeout < cfg.DispatchCallTimeout {
		return nil, fmt.Errorf("DISPATCH_BATCH_TIMEOUT_SECONDS must not be shorter than DISPATCH_CALL_TIMEOUT_SECONDS")
	}
	if cfg.HTTPWriteTimeout > 0 && cfg.HTTPWriteTimeout <= cfg.DispatchBatchTimeout {
		return nil, fmt.Errorf("HTTP_WRITE_TIMEOUT_SECONDS (%s) must exceed DISPATCH_BATCH_TIMEOUT_SECONDS (%s)",
			cfg.HTTPWriteTimeout, cfg.DispatchBatchTimeout)
	}

	return cfg, nil
}

// TelegramEnabled reports whether both bot credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit, e.g. seconds for *_SECONDS keys.
func getEnvDuration(key string, unit time.Duration, fallback int) time.Duration {
	return unit * time.Duration(getEnvInt(key, fallback))
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
