package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is the prefix for environment overrides.
	EnvPrefix = "CONNECTIFY_"

	appDirName = "connectify"
)

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (CONNECTIFY_API_BASE_URL, CONNECTIFY_FEED_PAGE_SIZE, etc.)
//  2. YAML config file (~/.config/connectify/config.yaml)
//  3. Hardcoded defaults
//
// A missing config file is not an error.
//
// # Security Considerations
//
// The config file MUST have 0600 or 0400 permissions, must live in
// ~/.config/connectify/ or /etc/connectify/, and must be at most 1MB.
//
// # Environment Variable Mapping
//
// The CONNECTIFY_ prefix is stripped and the first underscore separates the
// section from the field name:
//
//	CONNECTIFY_API_BASE_URL        -> api.base_url
//	CONNECTIFY_FEED_PAGE_SIZE      -> feed.page_size
//	CONNECTIFY_LOCATION_DEBOUNCE   -> location.debounce
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps CONNECTIFY_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// Dir returns the per-user connectify configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// EnsureConfigDir creates the connectify config directory with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet.
		resolvedPath = absPath
	}

	dir, err := Dir()
	if err != nil {
		return err
	}

	allowedDirs := []string{
		dir,
		filepath.Join("/etc", appDirName),
	}

	for _, allowed := range allowedDirs {
		if resolvedPath == allowed || strings.HasPrefix(resolvedPath, allowed+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/%s/ or /etc/%s/", appDirName, appDirName)
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// API defaults
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://127.0.0.1:7000"
	}
	if cfg.API.MediaBaseURL == "" {
		cfg.API.MediaBaseURL = cfg.API.BaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateBurst == 0 {
		cfg.API.RateBurst = 1
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "connectify-cli"
	}

	if cfg.Feed.PageSize == 0 {
		cfg.Feed.PageSize = 10
	}

	// Composer limits mirror what the backend accepts.
	if cfg.Composer.MaxFiles == 0 {
		cfg.Composer.MaxFiles = 5
	}
	if cfg.Composer.MaxFileSizeMB == 0 {
		cfg.Composer.MaxFileSizeMB = 10
	}
	if cfg.Composer.CaptionMax == 0 {
		cfg.Composer.CaptionMax = 2000
	}
	if cfg.Composer.LocationMax == 0 {
		cfg.Composer.LocationMax = 255
	}

	if cfg.Location.GeocoderURL == "" {
		cfg.Location.GeocoderURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Location.Debounce == 0 {
		cfg.Location.Debounce = 300 * time.Millisecond
	}
	if cfg.Location.RecentMax == 0 {
		cfg.Location.RecentMax = 5
	}

	if cfg.Session.Path == "" {
		if dir, err := Dir(); err == nil {
			cfg.Session.Path = filepath.Join(dir, "session.json")
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}
