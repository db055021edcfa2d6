package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(10*1024*1024), cfg.Composer.MaxFileSizeBytes())
	assert.Equal(t, 2000, cfg.Composer.CaptionMax)
	assert.Equal(t, 255, cfg.Composer.LocationMax)
	assert.Equal(t, 5, cfg.Location.RecentMax)
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: "api.base_url",
		},
		{
			name:    "ftp media url",
			mutate:  func(c *Config) { c.API.MediaBaseURL = "ftp://media.test" },
			wantErr: "api.media_base_url",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.API.Timeout = 0 },
			wantErr: "api.timeout",
		},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.API.RateLimit = 2
				c.API.RateBurst = 0
			},
			wantErr: "api.rate_burst",
		},
		{
			name:    "page size too large",
			mutate:  func(c *Config) { c.Feed.PageSize = 101 },
			wantErr: "feed.page_size",
		},
		{
			name:    "no files allowed",
			mutate:  func(c *Config) { c.Composer.MaxFiles = 0 },
			wantErr: "composer.max_files",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Location.Debounce = -time.Second },
			wantErr: "location.debounce",
		},
		{
			name:    "empty session path",
			mutate:  func(c *Config) { c.Session.Path = "" },
			wantErr: "session.path",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "telemetry.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(struct {
		Password Secret `json:"password"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"[REDACTED]"}`, string(out))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := Duration(time.Minute).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", string(text))
}
