package infra

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("MEDIA_SINK", "")
	t.Setenv("DATA_DIR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.MediaSink != MediaSinkImgur {
		t.Fatalf("MediaSink = %q, want imgur", cfg.MediaSink)
	}
	if cfg.ModelsFile != "data/models.json" || cfg.StylesFile != "data/image_styles.json" {
		t.Fatalf("catalog files = %q %q", cfg.ModelsFile, cfg.StylesFile)
	}
	if cfg.DispatchConcurrency != 1 || cfg.RetryMaxAttempts != 3 || cfg.RetryDelay != 2*time.Second {
		t.Fatalf("dispatch defaults = %d %d %s", cfg.DispatchConcurrency, cfg.RetryMaxAttempts, cfg.RetryDelay)
	}
	if cfg.TelegramEnabled() {
		t.Fatal("telegram should be disabled without credentials")
	}
}

func TestLoadConfigLongBatchWithLongerWriteTimeout(t *testing.T) {
	t.Setenv("DISPATCH_BATCH_TIMEOUT_SECONDS", "1200")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "1260")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPWriteTimeout <= cfg.DispatchBatchTimeout {
		t.Fatalf("write %s batch %s", cfg.HTTPWriteTimeout, cfg.DispatchBatchTimeout)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigParsesLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com ")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("TrustedProxies = %#v", cfg.TrustedProxies)
	}
	if cfg.TelegramChatID != -100200 || !cfg.TelegramEnabled() {
		t.Fatalf("telegram chat = %d", cfg.TelegramChatID)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown sink", env: map[string]string{"MEDIA_SINK": "dropbox"}},
		{name: "s3 without bucket", env: map[string]string{"MEDIA_SINK": "s3", "S3_BUCKET": ""}},
		{name: "bad chat id", env: map[string]string{"TELEGRAM_CHAT_ID": "general"}},
		{name: "zero concurrency", env: map[string]string{"DISPATCH_CONCURRENCY": "0"}},
		{name: "batch shorter than call", env: map[string]string{"DISPATCH_CALL_TIMEOUT_SECONDS": "60", "DISPATCH_BATCH_TIMEOUT_SECONDS": "30"}},
		{name: "batch outlives write timeout", env: map[string]string{"DISPATCH_BATCH_TIMEOUT_SECONDS": "1200"}},
		{name: "write timeout equals batch", env: map[string]string{"HTTP_WRITE_TIMEOUT_SECONDS": "600", "DISPATCH_BATCH_TIMEOUT_SECONDS": "600"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNewHTTPServerUsesConfig(t *testing.T) {
	cfg := &Config{Port: "9191", HTTPReadTimeout: time.Second, HTTPWriteTimeout: 2 * time.Second, HTTPIdleTimeout: 3 * time.Second}
	srv := NewHTTPServer(cfg, nil)
	if srv.Addr() != ":9191" {
		t.Fatalf("Addr = %q", srv.Addr())
	}
	if srv.server.WriteTimeout != 2*time.Second || srv.server.IdleTimeout != 3*time.Second {
		t.Fatalf("timeouts = %s %s", srv.server.WriteTimeout, srv.server.IdleTimeout)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	l := Nop()
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("Nop level = %s", l.GetLevel())
	}
	l.Error().Msg("dropped")
}
