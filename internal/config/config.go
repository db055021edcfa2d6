// Package config provides configuration loading for the connectify client.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file,
// and CONNECTIFY_* environment variables (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete connectify client configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Feed      FeedConfig      `koanf:"feed"`
	Composer  ComposerConfig  `koanf:"composer"`
	Location  LocationConfig  `koanf:"location"`
	Session   SessionConfig   `koanf:"session"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// APIConfig holds backend REST API settings.
type APIConfig struct {
	BaseURL      string        `koanf:"base_url"`
	MediaBaseURL string        `koanf:"media_base_url"`
	Timeout      time.Duration `koanf:"timeout"`
	RateLimit    float64       `koanf:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `koanf:"rate_burst"`
	UserAgent    string        `koanf:"user_agent"`
}

// FeedConfig holds feed pagination settings.
type FeedConfig struct {
	PageSize int `koanf:"page_size"`
}

// ComposerConfig holds post composer limits.
type ComposerConfig struct {
	MaxFiles      int `koanf:"max_files"`
	MaxFileSizeMB int `koanf:"max_file_size_mb"`
	CaptionMax    int `koanf:"caption_max"`
	LocationMax   int `koanf:"location_max"`
}

// LocationConfig holds geocoder settings.
type LocationConfig struct {
	GeocoderURL string        `koanf:"geocoder_url"`
	Debounce    time.Duration `koanf:"debounce"`
	RecentMax   int           `koanf:"recent_max"`
}

// SessionConfig holds persisted session settings.
type SessionConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	TextfilePath string `koanf:"textfile_path"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - API base URL is not an absolute http(s) URL
//   - Timeouts or limits are not positive
//   - Log format is not json or console
func (c *Config) Validate() error {
	if err := validateHTTPURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.MediaBaseURL != "" {
		if err := validateHTTPURL(c.API.MediaBaseURL); err != nil {
			return fmt.Errorf("api.media_base_url: %w", err)
		}
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must be >= 0, got %v", c.API.RateLimit)
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		return errors.New("api.rate_burst must be >= 1 when rate_limit is set")
	}

	if c.Feed.PageSize < 1 || c.Feed.PageSize > 100 {
		return fmt.Errorf("feed.page_size must be 1-100, got %d", c.Feed.PageSize)
	}

	if c.Composer.MaxFiles < 1 {
		return fmt.Errorf("composer.max_files must be positive, got %d", c.Composer.MaxFiles)
	}
	if c.Composer.MaxFileSizeMB < 1 {
		return fmt.Errorf("composer.max_file_size_mb must be positive, got %d", c.Composer.MaxFileSizeMB)
	}
	if c.Composer.CaptionMax < 1 || c.Composer.LocationMax < 1 {
		return errors.New("composer caption_max and location_max must be positive")
	}

	if err := validateHTTPURL(c.Location.GeocoderURL); err != nil {
		return fmt.Errorf("location.geocoder_url: %w", err)
	}
	if c.Location.Debounce < 0 {
		return errors.New("location.debounce cannot be negative")
	}
	if c.Location.RecentMax < 1 {
		return fmt.Errorf("location.recent_max must be positive, got %d", c.Location.RecentMax)
	}

	if c.Session.Path == "" {
		return errors.New("session.path is required")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}

	return nil
}

// MaxFileSizeBytes returns the per-file upload limit in bytes.
func (c ComposerConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	if strings.ContainsAny(u.Host, " \t") {
		return fmt.Errorf("URL %q has an invalid host", raw)
	}
	return nil
}
