// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultProfile is the system message sent ahead of every request.
const DefaultProfile = "You are an Electrical Engineering student at Texas State University named Raul. " +
	"You have a strong background in circuits, signal processing, and embedded systems. " +
	"Concentration on Micro and Nano Device Systems. " +
	"Always provide detailed explanations and practical examples."

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete theseus configuration.
type Config struct {
	Ollama    OllamaConfig    `toml:"ollama"`
	Models    ModelsConfig    `toml:"models"`
	Research  ResearchConfig  `toml:"research"`
	Inference InferenceConfig `toml:"inference"`
	Sessions  SessionsConfig  `toml:"sessions"`
	UI        UIConfig        `toml:"ui"`
	Log       LogConfig       `toml:"log"`
}

// OllamaConfig locates the model server.
type OllamaConfig struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

// ModelsConfig lists the models offered in the selector.
type ModelsConfig struct {
	Available []string `toml:"available"`
	Default   string   `toml:"default"`
}

// ResearchConfig controls the retrieval pass.
type ResearchConfig struct {
	// Enabled is the initial state of reasoning (retrieval) mode.
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`
	Extension string `toml:"extension"`
	Before    int    `toml:"before"`
	After     int    `toml:"after"`

	// Cache extracted text in memory and in CachePath.
	Cache     bool   `toml:"cache"`
	CachePath string `toml:"cache_path"`
	// Watch the corpus and evict cached text on change.
	Watch     bool   `toml:"watch"`
}

// InferenceConfig shapes the request sent to the model.
type InferenceConfig struct {
	Profile string `toml:"profile"`
	Stream  bool   `toml:"stream"`

	// HistoryWindow is the number of earlier turns sent with each request.
	HistoryWindow int `toml:"history_window"`
}

// SessionsConfig controls conversation persistence.
type SessionsConfig struct {
	Dir          string `toml:"dir"`
	ResumeLatest bool   `toml:"resume_latest"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme selects the markdown style: auto, dark, light or notty.
	Theme        string   `toml:"theme"`
	Tick         Duration `toml:"tick"`
	VRAMInterval Duration `toml:"vram_interval"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Stderr     bool   `toml:"-"`
}

// Duration is a time.Duration that reads and writes as "1s", "5m".
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration { return Duration{d} }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".theseus"
	}
	return &Config{
		Ollama: OllamaConfig{
			URL:     "http://127.0.0.1:11434",
			Timeout: D(5 * time.Minute),
		},
		Models: ModelsConfig{
			Available: []string{"gemma3:27b", "gpt-oss:20b"},
			Default:   "gemma3:27b",
		},
		Research: ResearchConfig{
			Enabled:   true,
			Dir:       "research_papers",
			Extension: ".pdf",
			Before:    200,
			After:     500,
			Cache:     true,
			CachePath: filepath.Join(dir, "extract.db"),
			Watch:     true,
		},
		Inference: InferenceConfig{
			Profile: DefaultProfile,
		},
		Sessions: SessionsConfig{
			Dir:          "sessions",
			ResumeLatest: true,
		},
		UI: UIConfig{
			Theme:        "auto",
			Tick:         D(time.Second),
			VRAMInterval: D(2 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(dir, "theseus.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.Timeout.Duration == 0 {
		c.Ollama.Timeout = d.Ollama.Timeout
	}
	if len(c.Models.Available) == 0 {
		c.Models.Available = d.Models.Available
	}
	if c.Models.Default == "" {
		c.Models.Default = c.Models.Available[0]
	}
	if c.Research.Dir == "" {
		c.Research.Dir = d.Research.Dir
	}
	if c.Research.Extension == "" {
		c.Research.Extension = d.Research.Extension
	}
	if !strings.HasPrefix(c.Research.Extension, ".") {
		c.Research.Extension = "." + c.Research.Extension
	}
	if c.Research.Before == 0 {
		c.Research.Before = d.Research.Before
	}
	if c.Research.After == 0 {
		c.Research.After = d.Research.After
	}
	if c.Research.CachePath == "" {
		c.Research.CachePath = d.Research.CachePath
	}
	if c.Inference.Profile == "" {
		c.Inference.Profile = d.Inference.Profile
	}
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = d.Sessions.Dir
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.Tick.Duration == 0 {
		c.UI.Tick = d.UI.Tick
	}
	if c.UI.VRAMInterval.Duration == 0 {
		c.UI.VRAMInterval = d.UI.VRAMInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.File == "" {
		c.Log.File = d.Log.File
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
}

// HasModel reports whether name is in the available list.
func (c *Config) HasModel(name string) bool {
	for _, m := range c.Models.Available {
		if m == name {
			return true
		}
	}
	return false
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the theseus configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".theseus"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the TOML file at path (the default location when empty),
// applies THESEUS_* environment overrides, fills defaults and validates.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as TOML to path with owner-only permissions.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# theseus configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{"ollama.url", fmt.Sprintf("invalid URL '%s'", c.Ollama.URL)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"ollama.url", "scheme must be http or https"})
	}
	if c.Ollama.Timeout.Duration < 0 {
		errs = append(errs, ValidationError{"ollama.timeout", "must not be negative"})
	}

	if len(c.Models.Available) == 0 {
		errs = append(errs, ValidationError{"models.available", "at least one model is required"})
	}
	for i, m := range c.Models.Available {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("models.available[%d]", i), "empty model name"})
		}
	}

	if c.Research.Before < 0 || c.Research.After < 0 {
		errs = append(errs, ValidationError{"research.before/after", "window sizes must not be negative"})
	}
	if strings.ContainsAny(c.Research.Extension, "*?[]{}/\\") {
		errs = append(errs, ValidationError{"research.extension", fmt.Sprintf("invalid extension '%s'", c.Research.Extension)})
	}

	if c.Inference.HistoryWindow < 0 {
		errs = append(errs, ValidationError{"inference.history_window", "must not be negative"})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light", "notty":
	default:
		errs = append(errs, ValidationError{"ui.theme", fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme)})
	}
	if c.UI.Tick.Duration < 10*time.Millisecond {
		errs = append(errs, ValidationError{"ui.tick", "must be at least 10ms"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("invalid level '%s'", c.Log.Level)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
