package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is the desktop Chrome user agent sent when a request
// does not override it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper defaults, shared by Load and by scraper.New for zero-valued fields.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultRetryAttempts  = 3
	DefaultBackoffStep    = time.Second
	DefaultMaxConcurrent  = 5
	DefaultDomainInterval = time.Second
	DefaultNetworkIdle    = 500 * time.Millisecond
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared Rod browser instance.
type BrowserConfig struct {
	// Headless is the launch mode used when a request does not set one.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to the browser launcher.
	Proxy string

	// Stealth injects go-rod/stealth into every page before navigation.
	Stealth bool // default: true

	// ViewportWidth and ViewportHeight size every page.
	ViewportWidth  int // default: 1366
	ViewportHeight int // default: 768
}

// ScraperConfig controls scraping behaviour.
type ScraperConfig struct {
	// DefaultTimeout bounds navigation and selector waiting per attempt.
	DefaultTimeout time.Duration // default: 30s

	// RetryAttempts is the total number of attempts per scrape.
	RetryAttempts int // default: 3

	// BackoffStep is multiplied by the attempt number between attempts.
	BackoffStep time.Duration // default: 1s

	// UserAgent is the default browser user agent.
	UserAgent string

	// MaxConcurrent caps scrapes in flight across the engine.
	MaxConcurrent int // default: 5

	// DomainInterval is the minimum spacing between navigations to one host.
	DomainInterval time.Duration // default: 1s

	// NetworkIdle is how long the page must be free of requests before the
	// HTML is read.
	NetworkIdle time.Duration // default: 500ms

	// BlockedResourceTypes lists resource types to block, e.g. "Image,Font".
	// Any blocking switches the page wait from network idle to DOM stable.
	// default: none
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking domains.
	BlockAds bool // default: false

	// ExtraHeaders are sent with every navigation, as "Name: value" pairs.
	ExtraHeaders map[string]string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting of the HTTP API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string // default: "memory"

	// MaxEntries is the maximum number of cached results (memory backend).
	MaxEntries int // default: 1000

	// TTL is how long a result is kept.
	TTL time.Duration // default: 1h

	// RedisAddr is the Redis address (redis backend).
	RedisAddr string // default: "localhost:6379"

	// RedisPassword is the Redis password, if any.
	RedisPassword string

	// RedisDB selects the Redis logical database.
	RedisDB int // default: 0

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string // default: "gleaner:"
}

// WebhookConfig controls job completion notifications.
type WebhookConfig struct {
	// Secret signs webhook bodies when a request does not carry its own.
	Secret string

	// Retries lists the delays before each redelivery.
	// default: [1s, 5s, 30s]
	Retries []time.Duration
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("GLEANER_HOST", "0.0.0.0"),
			Port: envIntOr("GLEANER_PORT", 8080),
			Mode: envOr("GLEANER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("GLEANER_HEADLESS", true),
			NoSandbox:      envBoolOr("GLEANER_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("GLEANER_BROWSER_BIN"),
			Proxy:          os.Getenv("GLEANER_PROXY"),
			Stealth:        envBoolOr("GLEANER_STEALTH", true),
			ViewportWidth:  envIntOr("GLEANER_VIEWPORT_WIDTH", 1366),
			ViewportHeight: envIntOr("GLEANER_VIEWPORT_HEIGHT", 768),
		},
		Scraper: ScraperConfig{
			DefaultTimeout:       envDurationOr("GLEANER_TIMEOUT", DefaultTimeout),
			RetryAttempts:        envIntOr("GLEANER_RETRY_ATTEMPTS", DefaultRetryAttempts),
			BackoffStep:          envDurationOr("GLEANER_BACKOFF_STEP", DefaultBackoffStep),
			UserAgent:            envOr("GLEANER_USER_AGENT", DefaultUserAgent),
			MaxConcurrent:        envIntOr("GLEANER_MAX_CONCURRENT", DefaultMaxConcurrent),
			DomainInterval:       envDurationOr("GLEANER_DOMAIN_INTERVAL", DefaultDomainInterval),
			NetworkIdle:          envDurationOr("GLEANER_NETWORK_IDLE", DefaultNetworkIdle),
			BlockedResourceTypes: envSliceOr("GLEANER_BLOCKED_RESOURCES", nil),
			BlockAds:             envBoolOr("GLEANER_BLOCK_ADS", false),
			ExtraHeaders:         envHeadersOr("GLEANER_EXTRA_HEADERS", map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("GLEANER_AUTH_ENABLED", true),
			APIKeys: envSliceOr("GLEANER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("GLEANER_RATE_RPS", 5.0),
			Burst:             envIntOr("GLEANER_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			Backend:       envOr("GLEANER_CACHE_BACKEND", "memory"),
			MaxEntries:    envIntOr("GLEANER_CACHE_MAX_ENTRIES", 1000),
			TTL:           envDurationOr("GLEANER_CACHE_TTL", time.Hour),
			RedisAddr:     envOr("GLEANER_REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("GLEANER_REDIS_PASSWORD"),
			RedisDB:       envIntOr("GLEANER_REDIS_DB", 0),
			KeyPrefix:     envOr("GLEANER_REDIS_PREFIX", "gleaner:"),
		},
		Webhook: WebhookConfig{
			Secret:  os.Getenv("GLEANER_WEBHOOK_SECRET"),
			Retries: envDurationSliceOr("GLEANER_WEBHOOK_RETRIES", []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}),
		},
		Log: LogConfig{
			Level:  envOr("GLEANER_LOG_LEVEL", "info"),
			Format: envOr("GLEANER_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// envHeadersOr parses "Name: value; Other: value" into a header map.
// Malformed pairs are skipped.
func envHeadersOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		result[name] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
