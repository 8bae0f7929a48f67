// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for theseus.
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Command-line flags (applied by main)
//   - Environment variables (THESEUS_*), optionally loaded from a .env file
//   - ~/.theseus/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: cfg.Ollama.URL})
package config
