// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"time"

	"github.com/morganforge/theseus/internal/config"
	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/ollama"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/storage"
)

// ModelLister lists installed models. *ollama.Client implements it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// SessionStore is the part of *storage.SessionStore the commands use.
type SessionStore interface {
	List() ([]storage.Meta, error)
	Search(query string) ([]storage.Meta, error)
	Load(id string) (*model.History, error)
	LoadByIndex(index int) (*model.History, error)
	Delete(id string) error
}

// DefaultTimeout bounds commands that talk to the model server.
const DefaultTimeout = 10 * time.Second

// Context carries everything a handler may touch.
type Context struct {
	Session  *orchestrator.Session
	Config   *config.Config
	Models   ModelLister
	Sessions SessionStore

	// Registry is filled in by Run when left nil.
	Registry *Registry

	// Timeout for Slow commands; DefaultTimeout when zero.
	Timeout time.Duration
}

func (c *Context) deadline() (context.Context, context.CancelFunc) {
	d := c.Timeout
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), d)
}
