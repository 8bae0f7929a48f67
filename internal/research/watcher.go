// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Invalidator drops cached state for a path.
type Invalidator interface {
	Invalidate(path string)
}

// Watcher evicts cache entries for corpus documents as they change.
type Watcher struct {
	root    string
	ext     string
	target  Invalidator
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewWatcher creates a watcher for documents with extension ext under root.
func NewWatcher(root, ext string, target Invalidator, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = DefaultExtension
	}
	return &Watcher{
		root:    root,
		ext:     strings.ToLower(ext),
		target:  target,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start adds root and its subdirectories and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug().Err(err).Str("dir", path).Msg("cannot watch directory")
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("corpus watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if isDir(ev.Name) {
			w.addRecursive(ev.Name)
			return
		}
	}
	if !strings.EqualFold(filepath.Ext(ev.Name), w.ext) {
		return
	}
	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("corpus document changed")
		w.target.Invalidate(ev.Name)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		err = w.watcher.Close()
		if w.cancel != nil {
			<-w.done
		}
	})
	return err
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
