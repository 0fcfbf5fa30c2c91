package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Scraper.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", cfg.Scraper.DefaultTimeout)
	}
	if cfg.Scraper.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.Scraper.RetryAttempts)
	}
	if cfg.Scraper.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.Scraper.MaxConcurrent)
	}
	if cfg.Scraper.DomainInterval != time.Second {
		t.Errorf("DomainInterval = %v, want 1s", cfg.Scraper.DomainInterval)
	}
	if cfg.Scraper.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.Scraper.UserAgent)
	}
	if !cfg.Browser.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.Browser.ViewportWidth != 1366 || cfg.Browser.ViewportHeight != 768 {
		t.Errorf("viewport = %dx%d, want 1366x768", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GLEANER_RETRY_ATTEMPTS", "5")
	t.Setenv("GLEANER_TIMEOUT", "10s")
	t.Setenv("GLEANER_HEADLESS", "false")
	t.Setenv("GLEANER_BLOCKED_RESOURCES", "Image, Font ,,")
	t.Setenv("GLEANER_WEBHOOK_RETRIES", "2s,bogus,4s")
	t.Setenv("GLEANER_MAX_CONCURRENT", "not-a-number")

	cfg := Load()

	if cfg.Scraper.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.Scraper.RetryAttempts)
	}
	if cfg.Scraper.DefaultTimeout != 10*time.Second {
		t.Errorf("DefaultTimeout = %v, want 10s", cfg.Scraper.DefaultTimeout)
	}
	if cfg.Browser.Headless {
		t.Error("Headless should be false")
	}
	if want := []string{"Image", "Font"}; !reflect.DeepEqual(cfg.Scraper.BlockedResourceTypes, want) {
		t.Errorf("BlockedResourceTypes = %v, want %v", cfg.Scraper.BlockedResourceTypes, want)
	}
	if want := []time.Duration{2 * time.Second, 4 * time.Second}; !reflect.DeepEqual(cfg.Webhook.Retries, want) {
		t.Errorf("Webhook.Retries = %v, want %v", cfg.Webhook.Retries, want)
	}
	if cfg.Scraper.MaxConcurrent != 5 {
		t.Errorf("invalid int should fall back, got %d", cfg.Scraper.MaxConcurrent)
	}
}

func TestEnvHeadersOr(t *testing.T) {
	fallback := map[string]string{"X-Default": "1"}

	tests := []struct {
		name  string
		value string
		want  map[string]string
	}{
		{"unset", "", fallback},
		{"single", "Accept-Language: de-DE", map[string]string{"Accept-Language": "de-DE"}},
		{"multiple", "A: 1; B:2", map[string]string{"A": "1", "B": "2"}},
		{"malformed only", "nocolon; : empty", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GLEANER_TEST_HEADERS", tt.value)
			got := envHeadersOr("GLEANER_TEST_HEADERS", fallback)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("envHeadersOr(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
