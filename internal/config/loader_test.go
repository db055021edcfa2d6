package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp dir and returns the connectify config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "connectify")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return configDir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	// WriteFile honours umask; force the mode we want to test.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Failed to chmod test config: %v", err)
	}
	return path
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	configDir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.API.BaseURL != "http://127.0.0.1:7000" {
		t.Errorf("API.BaseURL = %q, want default", cfg.API.BaseURL)
	}
	if cfg.API.MediaBaseURL != cfg.API.BaseURL {
		t.Errorf("API.MediaBaseURL = %q, want it to follow BaseURL", cfg.API.MediaBaseURL)
	}
	if cfg.Feed.PageSize != 10 {
		t.Errorf("Feed.PageSize = %d, want 10", cfg.Feed.PageSize)
	}
	if cfg.Composer.MaxFiles != 5 || cfg.Composer.MaxFileSizeMB != 10 {
		t.Errorf("Composer limits = %d files / %d MB, want 5 / 10", cfg.Composer.MaxFiles, cfg.Composer.MaxFileSizeMB)
	}
	if cfg.Location.Debounce != 300*time.Millisecond {
		t.Errorf("Location.Debounce = %v, want 300ms", cfg.Location.Debounce)
	}
	if cfg.Session.Path != filepath.Join(configDir, "session.json") {
		t.Errorf("Session.Path = %q, want session.json in config dir", cfg.Session.Path)
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	configDir := setupTestHome(t)

	path := writeConfig(t, configDir, `api:
  base_url: https://api.connectify.test
  timeout: 5s
feed:
  page_size: 25
location:
  debounce: 150ms
logging:
  format: json
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.API.BaseURL != "https://api.connectify.test" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("API.Timeout = %v, want 5s", cfg.API.Timeout)
	}
	if cfg.Feed.PageSize != 25 {
		t.Errorf("Feed.PageSize = %d, want 25", cfg.Feed.PageSize)
	}
	if cfg.Location.Debounce != 150*time.Millisecond {
		t.Errorf("Location.Debounce = %v, want 150ms", cfg.Location.Debounce)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	configDir := setupTestHome(t)

	path := writeConfig(t, configDir, `api:
  base_url: https://yaml.connectify.test
feed:
  page_size: 25
`, 0600)

	t.Setenv("CONNECTIFY_API_BASE_URL", "https://env.connectify.test")
	t.Setenv("CONNECTIFY_FEED_PAGE_SIZE", "7")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.API.BaseURL != "https://env.connectify.test" {
		t.Errorf("API.BaseURL = %q, want env override", cfg.API.BaseURL)
	}
	if cfg.Feed.PageSize != 7 {
		t.Errorf("Feed.PageSize = %d, want 7", cfg.Feed.PageSize)
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	configDir := setupTestHome(t)
	path := writeConfig(t, configDir, "feed:\n  page_size: 5\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want permission error")
	}
	if !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Errorf("error = %v, want insecure permissions", err)
	}
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	_, err := LoadWithFile(filepath.Join(t.TempDir(), "config.yaml"))
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want path validation error")
	}
	if !strings.Contains(err.Error(), "config path validation failed") {
		t.Errorf("error = %v, want path validation failure", err)
	}
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	configDir := setupTestHome(t)
	path := writeConfig(t, configDir, "feed:\n  page_size: 500\n", 0600)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "feed.page_size") {
		t.Errorf("error = %v, want feed.page_size validation", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CONNECTIFY_API_BASE_URL":        "api.base_url",
		"CONNECTIFY_FEED_PAGE_SIZE":      "feed.page_size",
		"CONNECTIFY_COMPOSER_MAX_FILES":  "composer.max_files",
		"CONNECTIFY_TELEMETRY_ENABLED":   "telemetry.enabled",
		"CONNECTIFY_METRICS":             "metrics",
		"CONNECTIFY_SESSION_PATH":        "session.path",
		"CONNECTIFY_LOCATION_RECENT_MAX": "location.recent_max",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
