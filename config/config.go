package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/shopcsv/models"
)

// Backend selects the fetch strategy.
type Backend string

const (
	// BackendRequests fetches pages with a plain HTTP GET.
	BackendRequests Backend = "requests"
	// BackendSelenium renders pages in a headless browser.
	BackendSelenium Backend = "selenium"
)

// Defaults for RunConfig.
const (
	DefaultBackend  = BackendSelenium
	DefaultFilename = "results.csv"
	DefaultShops    = 50
	DefaultTimeout  = 90 * time.Second
	DefaultRetry    = 3
)

// RunConfig holds everything one run needs. It is built once from the
// command line and never modified afterwards.
type RunConfig struct {
	// URI is the first listing page. http(s) and file URLs are accepted.
	URI string

	// Backend is the fetch strategy.
	Backend Backend // default: selenium

	// Filename is the CSV output path.
	Filename string // default: "results.csv"

	// Shops is the shop quota.
	Shops int // default: 50

	// Timeout bounds every single fetch attempt.
	Timeout time.Duration // default: 90s

	// Retry is the number of extra attempts after a failed fetch.
	Retry int // default: 3

	// Details follows each shop's detail page to fill the remaining fields.
	Details bool // default: true

	// CheckSSL probes each https official URL and downgrades it to http
	// when the TLS handshake fails.
	CheckSSL bool // default: true
}

// Default returns a RunConfig with every default applied and no URI.
func Default() RunConfig {
	return RunConfig{
		Backend:  DefaultBackend,
		Filename: DefaultFilename,
		Shops:    DefaultShops,
		Timeout:  DefaultTimeout,
		Retry:    DefaultRetry,
		Details:  true,
		CheckSSL: true,
	}
}

// Validate checks every field and returns a *models.ConfigError for the
// first invalid one.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return models.NewConfigError("uri", "a target URL is required")
	}
	if !hasSupportedScheme(c.URI) {
		return models.NewConfigError("uri", "%q must start with http://, https:// or file://", c.URI)
	}
	switch c.Backend {
	case BackendRequests, BackendSelenium:
	default:
		return models.NewConfigError("lib", "%q is not one of requests, selenium", c.Backend)
	}
	if strings.TrimSpace(c.Filename) == "" {
		return models.NewConfigError("filename", "must not be empty")
	}
	if c.Shops <= 0 {
		return models.NewConfigError("shops", "must be positive, got %d", c.Shops)
	}
	if c.Timeout <= 0 {
		return models.NewConfigError("timeout", "must be positive, got %s", c.Timeout)
	}
	if c.Retry < 0 {
		return models.NewConfigError("retry", "must not be negative, got %d", c.Retry)
	}
	return nil
}

func hasSupportedScheme(uri string) bool {
	lower := strings.ToLower(strings.TrimSpace(uri))
	for _, prefix := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Env holds ambient settings read from the environment. None of them
// change which shops are collected.
type Env struct {
	Log     LogConfig
	Browser BrowserConfig

	// UserAgent is sent by both backends.
	UserAgent string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "console" or "json"; default: "console"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string

	// Stealth injects anti-bot-detection evasions before navigation.
	Stealth bool // default: false

	// BlockedResources lists resource types the browser will not load.
	BlockedResources []string // default: ["Image", "Font", "Media"]
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// LoadEnv reads ambient configuration from environment variables with
// sane defaults.
func LoadEnv() Env {
	return Env{
		Log: LogConfig{
			Level:  envOr("SHOPCSV_LOG_LEVEL", "info"),
			Format: envOr("SHOPCSV_LOG_FORMAT", "console"),
		},
		Browser: BrowserConfig{
			Headless:  envBoolOr("SHOPCSV_HEADLESS", true),
			NoSandbox: envBoolOr("SHOPCSV_NO_SANDBOX", false),
			Bin:       os.Getenv("SHOPCSV_BROWSER_BIN"),
			Stealth:   envBoolOr("SHOPCSV_STEALTH", false),
			BlockedResources: envSliceOr("SHOPCSV_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		UserAgent: envOr("SHOPCSV_USER_AGENT", DefaultUserAgent),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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
