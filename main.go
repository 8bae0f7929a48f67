// theseus - a local research assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/morganforge/theseus/internal/cli"
	"github.com/morganforge/theseus/internal/commands"
	"github.com/morganforge/theseus/internal/config"
	"github.com/morganforge/theseus/internal/detect"
	"github.com/morganforge/theseus/internal/logging"
	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/ollama"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/research"
	"github.com/morganforge/theseus/internal/storage"
	"github.com/morganforge/theseus/internal/ui/chat"
	"github.com/morganforge/theseus/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type flags struct {
	config     string
	model      string
	dir        string
	noRAG      bool
	stream     bool
	plain      bool
	theme      string
	logLevel   string
	logStderr  bool
	sessions   string
	fresh      bool
	transcript string
	saveConfig bool
	version    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVarP(&f.config, "config", "c", "", "config file (default ~/.theseus/config.toml)")
	flag.StringVarP(&f.model, "model", "m", "", "model to start with")
	flag.StringVarP(&f.dir, "dir", "d", "", "research corpus directory")
	flag.BoolVar(&f.noRAG, "no-rag", false, "start with research mode off")
	flag.BoolVar(&f.stream, "stream", false, "stream replies as they are generated")
	flag.BoolVar(&f.plain, "plain", false, "use the line-mode interface")
	flag.StringVar(&f.theme, "theme", "", "auto, dark, light or notty")
	flag.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn, error or off")
	flag.BoolVar(&f.logStderr, "log-stderr", false, "also log to stderr (plain mode)")
	flag.StringVar(&f.sessions, "sessions", "", "directory for saved conversations")
	flag.BoolVar(&f.fresh, "new", false, "start a new conversation instead of resuming")
	flag.StringVar(&f.transcript, "transcript", "", "append every session event to this file (plain mode)")
	flag.BoolVar(&f.saveConfig, "save-config", false, "write the effective config and exit")
	flag.BoolVarP(&f.version, "version", "v", false, "print version and exit")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if f.version {
		fmt.Printf("theseus %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}
	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "theseus: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, f); err != nil {
		return err
	}

	if f.saveConfig {
		path := f.config
		if path == "" {
			if path, err = config.ConfigPath(); err != nil {
				return err
			}
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Println("Wrote", path)
		return nil
	}

	plain := f.plain || !cli.Interactive()
	if f.logStderr && !plain {
		// The full-screen view owns the terminal.
		cfg.Log.Stderr = false
	}

	logger, logCloser, err := logging.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger.Info().Str("version", Version).Bool("plain", plain).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		Timeout:      cfg.Ollama.Timeout.Duration,
		DefaultModel: cfg.Models.Default,
	})
	checkServer(ctx, client, logger)

	scanner, cleanup, err := newScanner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := storage.NewSessionStore(cfg.Sessions.Dir)
	if err != nil {
		return err
	}

	var resumed *model.History
	if cfg.Sessions.ResumeLatest && !f.fresh {
		resumed, err = store.Latest()
		switch {
		case errors.Is(err, storage.ErrSessionNotFound):
			resumed = nil
		case err != nil:
			logger.Warn().Err(err).Msg("could not resume the latest session")
			resumed = nil
		default:
			logger.Info().Str("session", resumed.ID).Msg("resuming session")
		}
	}

	startModel := cfg.Models.Default
	if resumed != nil && resumed.Model != "" && f.model == "" {
		startModel = resumed.Model
	}

	sess := orchestrator.New(client, scanner, orchestrator.Options{
		Model:         startModel,
		Profile:       cfg.Inference.Profile,
		CorpusDir:     cfg.Research.Dir,
		Retrieval:     cfg.Research.Enabled,
		Stream:        cfg.Inference.Stream,
		HistoryWindow: cfg.Inference.HistoryWindow,
		Store:         store,
		History:       resumed,
		OnTransition: func(from, to orchestrator.State) {
			logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state")
		},
		Logger: logger,
	})
	defer sess.Close()

	reg := commands.NewRegistry()
	cmdCtx := &commands.Context{
		Config:   cfg,
		Models:   client,
		Sessions: store,
	}

	if plain {
		return runPlain(ctx, f, cfg, sess, reg, cmdCtx, logger)
	}

	return chat.Run(chat.Options{
		Session:  sess,
		Registry: reg,
		Commands: cmdCtx,
		Probe:    detect.NewVRAMProbe(detect.WithInterval(cfg.UI.VRAMInterval.Duration)),
		Theme:    styles.NewTheme(cfg.UI.Theme),
		Tick:     cfg.UI.Tick.Duration,
		Logger:   logger,
	})
}

func applyFlags(cfg *config.Config, f flags) error {
	if f.model != "" {
		cfg.Models.Default = f.model
		if !cfg.HasModel(f.model) {
			cfg.Models.Available = append(cfg.Models.Available, f.model)
		}
	}
	if f.dir != "" {
		cfg.Research.Dir = f.dir
	}
	if f.noRAG {
		cfg.Research.Enabled = false
	}
	if f.stream {
		cfg.Inference.Stream = true
	}
	if f.theme != "" {
		cfg.UI.Theme = f.theme
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logStderr {
		cfg.Log.Stderr = true
	}
	if f.sessions != "" {
		cfg.Sessions.Dir = f.sessions
	}
	cfg.SetDefaults()
	return cfg.Validate()
}

// checkServer logs whether Ollama answers. A missing server is not fatal:
// requests fail with the connection error text until it comes up.
func checkServer(ctx context.Context, client *ollama.Client, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.CheckRunning(ctx); err != nil {
		logger.Warn().Err(err).Str("url", client.Config().BaseURL).Msg("ollama not reachable")
		return
	}
	logger.Info().Str("url", client.Config().BaseURL).Msg("ollama reachable")
}

// newScanner builds the retrieval stack: the extractor for the corpus
// extension, the extraction cache and the corpus watcher.
func newScanner(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*research.Scanner, func(), error) {
	rc := cfg.Research
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	ex := research.ExtractorFor(rc.Extension)
	if rc.Cache {
		store, err := research.OpenStore(rc.CachePath)
		if err != nil {
			logger.Warn().Err(err).Str("path", rc.CachePath).Msg("extraction cache unavailable, using memory only")
			store = nil
		} else {
			closers = append(closers, store)
		}
		cached := research.NewCachedExtractor(ex, store, 0, logger.With().Str("component", "extract-cache").Logger())
		ex = cached

		if rc.Watch {
			if w, err := startWatcher(ctx, rc, cached, logger); err != nil {
				logger.Warn().Err(err).Str("dir", rc.Dir).Msg("corpus watcher not started")
			} else {
				closers = append(closers, w)
			}
		}
	}

	scanner := research.NewScanner(ex,
		research.WithExtension(rc.Extension),
		research.WithWindow(research.Window{Before: rc.Before, After: rc.After}),
		research.WithLogger(logger.With().Str("component", "research").Logger()),
	)
	return scanner, cleanup, nil
}

func startWatcher(ctx context.Context, rc config.ResearchConfig, target research.Invalidator, logger zerolog.Logger) (*research.Watcher, error) {
	w, err := research.NewWatcher(rc.Dir, rc.Extension, target, logger.With().Str("component", "watcher").Logger())
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func runPlain(ctx context.Context, f flags, cfg *config.Config, sess *orchestrator.Session,
	reg *commands.Registry, cmdCtx *commands.Context, logger zerolog.Logger) error {

	var transcript io.Writer
	if f.transcript != "" {
		tf, err := os.OpenFile(f.transcript, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer tf.Close()
		transcript = tf
	}

	theme := cfg.UI.Theme
	if cli.ColorProfile() == termenv.Ascii {
		theme = styles.ModeNoTTY
	}

	history := ""
	if dir, err := config.ConfigDir(); err == nil {
		history = filepath.Join(dir, "history")
	}

	repl := cli.New(cli.Options{
		Session:     sess,
		Registry:    reg,
		Commands:    cmdCtx,
		Transcript:  transcript,
		Markdown:    cli.IsStdoutTTY(),
		Width:       cli.TerminalWidth(),
		Theme:       styles.NewTheme(theme),
		Tick:        cfg.UI.Tick.Duration / 4,
		HistoryFile: history,
		Logger:      logger,
	})
	repl.Open()
	defer func() {
		if err := repl.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing line editor")
		}
	}()

	err := repl.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
