// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package config provides configuration loading and management for bioterm.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. File location: ~/.bioterm/config.toml. The biosyncd daemon
// additionally reads a .env file for secrets (see cmd/biosyncd).
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/abdallahelabd/bioterm/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete bioterm configuration.
type Config struct {
	Version string `toml:"version"`

	Sync     SyncConfig     `toml:"sync"`
	Security SecurityConfig `toml:"security"`
	Notify   NotifyConfig   `toml:"notify"`
	Upload   UploadConfig   `toml:"upload"`
	UI       UIConfig       `toml:"ui"`
	Server   ServerConfig   `toml:"server"`
}

// SyncConfig points the client at the message sync store.
type SyncConfig struct {
	// URL is the base URL of the biosyncd instance.
	URL string `toml:"url"`
	// Offline switches the client to a purely in-memory store. Chat still
	// works within the process (useful for demos and tests) but nothing
	// leaves the machine.
	Offline bool `toml:"offline"`
}

// SecurityConfig controls admin elevation.
type SecurityConfig struct {
	// Passcode is the shared admin secret, compared directly when
	// PasscodeHash is empty. Kept for parity with the original site where
	// the passcode was a hardcoded constant.
	Passcode string `toml:"passcode"`
	// PasscodeHash is a bcrypt hash of the passcode. When set it takes
	// precedence over Passcode.
	PasscodeHash string `toml:"passcode_hash"`
	// TOTPSecret, when non-empty, requires a one-time code as a second
	// argument to the admin command.
	TOTPSecret string `toml:"totp_secret"`
}

// NotifyConfig configures the outbound email notification side channel.
type NotifyConfig struct {
	Enabled    bool   `toml:"enabled"`
	Endpoint   string `toml:"endpoint"`
	ServiceID  string `toml:"service_id"`
	TemplateID string `toml:"template_id"`
	PublicKey  string `toml:"public_key"`
	OwnerEmail string `toml:"owner_email"`
	// MinIntervalSecs throttles notifications per sender; 0 disables the
	// throttle.
	MinIntervalSecs int `toml:"min_interval_secs"`
}

// UploadConfig bounds image attachments.
type UploadConfig struct {
	// MaxBytes is the size ceiling checked before any network call.
	MaxBytes int64 `toml:"max_bytes"`
	// Strategy selects "inline" (base64 record in the store) or "url"
	// (object storage upload).
	Strategy string `toml:"strategy"`
}

// UIConfig tunes the terminal rendering.
type UIConfig struct {
	// TypingIntervalMs is the per-character reveal interval of the output
	// animation.
	TypingIntervalMs int `toml:"typing_interval_ms"`
	// Plain forces line mode even on capable terminals.
	Plain bool `toml:"plain"`
}

// ServerConfig configures the biosyncd daemon.
type ServerConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	DBPath         string `toml:"db_path"`
	RatePerMinute  int    `toml:"rate_per_minute"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Sync: SyncConfig{
			URL: "http://localhost:8990",
		},
		Security: SecurityConfig{
			Passcode: "1234",
		},
		Notify: NotifyConfig{
			Enabled:         false,
			Endpoint:        "https://api.emailjs.com/api/v1.0/email/send",
			MinIntervalSecs: 60,
		},
		Upload: UploadConfig{
			MaxBytes: 2 << 20,
			Strategy: "inline",
		},
		UI: UIConfig{
			TypingIntervalMs: 15,
		},
		Server: ServerConfig{
			ListenAddr:     ":8990",
			DBPath:         "", // resolved to ~/.bioterm/messages.db
			RatePerMinute:  30,
			MetricsEnabled: true,
		},
	}
}

// Dir returns the bioterm state directory (~/.bioterm), creating it if
// needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".bioterm")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from path, layering file values over defaults and
// environment overrides over both. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers BIOTERM_* environment variables over cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BIOTERM_SYNC_URL"); v != "" {
		cfg.Sync.URL = v
	}
	if v := os.Getenv("BIOTERM_OFFLINE"); v != "" {
		cfg.Sync.Offline = v == "1" || v == "true"
	}
	if v := os.Getenv("BIOTERM_PASSCODE"); v != "" {
		cfg.Security.Passcode = v
	}
	if v := os.Getenv("BIOTERM_PASSCODE_HASH"); v != "" {
		cfg.Security.PasscodeHash = v
	}
	if v := os.Getenv("BIOTERM_TOTP_SECRET"); v != "" {
		cfg.Security.TOTPSecret = v
	}
	if v := os.Getenv("BIOTERM_NOTIFY_PUBLIC_KEY"); v != "" {
		cfg.Notify.PublicKey = v
	}
	if v := os.Getenv("BIOTERM_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("BIOTERM_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("BIOTERM_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.RatePerMinute = n
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Sync.URL != "" {
		u, err := url.Parse(c.Sync.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("sync.url %q is not a valid http(s) URL", c.Sync.URL)
		}
	}
	if c.Upload.Strategy != "inline" && c.Upload.Strategy != "url" {
		return fmt.Errorf("upload.strategy must be \"inline\" or \"url\", got %q", c.Upload.Strategy)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.UI.TypingIntervalMs <= 0 {
		c.UI.TypingIntervalMs = 15
	}
	if c.Notify.MinIntervalSecs < 0 {
		return fmt.Errorf("notify.min_interval_secs must not be negative")
	}
	return nil
}

// Save writes the configuration back to path atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading defaults on first
// use.
func Global() *Config {
	globalMu.RLock()
	if globalCfg != nil {
		defer globalMu.RUnlock()
		return globalCfg
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		path, _ := DefaultPath()
		cfg, err := Load(path)
		if err != nil {
			cfg = Default()
		}
		globalCfg = cfg
	}
	return globalCfg
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// =============================================================================
// LIVE RELOAD
// =============================================================================

// Watch re-loads the config file whenever it changes on disk and delivers
// the fresh config to onReload. It returns a stop function that tears down
// the watcher. Errors reloading keep the previous config in place.
func Watch(path string, onReload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory rather than the file: editors replace files via
	// rename, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					continue
				}
				SetGlobal(cfg)
				if onReload != nil {
					onReload(cfg)
				}
			case <-watcher.Errors:
				// Watcher errors are non-fatal; the stale config remains.
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
