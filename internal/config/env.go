// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "THESEUS"

// envOverrides maps THESEUS_* variables onto config fields. Pointer
// fields distinguish "unset" from a false or zero value.
type envOverrides struct {
	OllamaURL     string        `envconfig:"OLLAMA_URL"`
	OllamaTimeout time.Duration `envconfig:"OLLAMA_TIMEOUT"`
	Model         string        `envconfig:"MODEL"`
	Models        []string      `envconfig:"MODELS"`
	ResearchDir   string        `envconfig:"RESEARCH_DIR"`
	RAG           *bool         `envconfig:"RAG"`
	Stream        *bool         `envconfig:"STREAM"`
	HistoryWindow *int          `envconfig:"HISTORY_WINDOW"`
	Profile       string        `envconfig:"PROFILE"`
	SessionsDir   string        `envconfig:"SESSIONS_DIR"`
	LogLevel      string        `envconfig:"LOG_LEVEL"`
	LogFile       string        `envconfig:"LOG_FILE"`
}

// ApplyEnvOverrides applies THESEUS_* environment variables:
//   - THESEUS_OLLAMA_URL, THESEUS_OLLAMA_TIMEOUT
//   - THESEUS_MODEL (default model), THESEUS_MODELS (comma separated list)
//   - THESEUS_RESEARCH_DIR, THESEUS_RAG
//   - THESEUS_STREAM, THESEUS_HISTORY_WINDOW, THESEUS_PROFILE
//   - THESEUS_SESSIONS_DIR, THESEUS_LOG_LEVEL, THESEUS_LOG_FILE
func (c *Config) ApplyEnvOverrides() error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return err
	}

	if o.OllamaURL != "" {
		c.Ollama.URL = o.OllamaURL
	}
	if o.OllamaTimeout != 0 {
		c.Ollama.Timeout = D(o.OllamaTimeout)
	}
	if len(o.Models) > 0 {
		c.Models.Available = trimAll(o.Models)
	}
	if o.Model != "" {
		c.Models.Default = o.Model
		if !c.HasModel(o.Model) {
			c.Models.Available = append(c.Models.Available, o.Model)
		}
	}
	if o.ResearchDir != "" {
		c.Research.Dir = o.ResearchDir
	}
	if o.RAG != nil {
		c.Research.Enabled = *o.RAG
	}
	if o.Stream != nil {
		c.Inference.Stream = *o.Stream
	}
	if o.HistoryWindow != nil {
		c.Inference.HistoryWindow = *o.HistoryWindow
	}
	if o.Profile != "" {
		c.Inference.Profile = o.Profile
	}
	if o.SessionsDir != "" {
		c.Sessions.Dir = o.SessionsDir
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFile != "" {
		c.Log.File = o.LogFile
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
