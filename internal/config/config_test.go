// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8990", cfg.Sync.URL)
	assert.NotEmpty(t, cfg.Security.Passcode)
	assert.Equal(t, int64(2<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 15, cfg.UI.TypingIntervalMs)
	assert.NoError(t, cfg.Validate(), "defaults should validate")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Sync.URL, cfg.Sync.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = "1"

[sync]
url = "https://sync.example.com"

[ui]
typing_interval_ms = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.Sync.URL)
	assert.Equal(t, 5, cfg.UI.TypingIntervalMs)
	// Untouched sections keep defaults.
	assert.Equal(t, "inline", cfg.Upload.Strategy)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BIOTERM_SYNC_URL", "http://10.0.0.2:9000")
	t.Setenv("BIOTERM_PASSCODE", "sesame")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Sync.URL)
	assert.Equal(t, "sesame", cfg.Security.Passcode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad sync url", func(c *Config) { c.Sync.URL = "not a url\x00" }, true},
		{"non http scheme", func(c *Config) { c.Sync.URL = "ftp://x" }, true},
		{"bad strategy", func(c *Config) { c.Upload.Strategy = "carrier-pigeon" }, true},
		{"zero upload cap", func(c *Config) { c.Upload.MaxBytes = 0 }, true},
		{"negative notify interval", func(c *Config) { c.Notify.MinIntervalSecs = -1 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Sync.URL = "https://sync.abdallah.bio"
	cfg.Notify.Enabled = true

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Sync.URL, loaded.Sync.URL)
	assert.True(t, loaded.Notify.Enabled)
}
