// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/morganforge/theseus/internal/event"
	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/tasks"
)

// ErrBusy is returned by operations that require the Idle state.
var ErrBusy = errors.New("a request is in progress")

// Store persists conversations. *storage.SessionStore implements it.
type Store interface {
	NewID() string
	Save(h *model.History) error
}

// PendingImage is an image waiting to be sent with the next request.
type PendingImage struct {
	Path string
	Data string // base64
}

// Options configures a Session.
type Options struct {
	Model     string
	Profile   string
	CorpusDir string

	// Retrieval enables the scan pass before each request. Ignored when
	// the Session has no Retriever.
	Retrieval bool

	// Stream delivers the reply chunk by chunk.
	Stream bool

	// HistoryWindow is how many earlier turns accompany each request.
	HistoryWindow int

	// Store, when set, receives the conversation after every reply.
	Store Store

	// History resumes an existing conversation instead of starting fresh.
	History *model.History

	// OnTransition is called with the session lock held on every state
	// change. It must not call back into the Session.
	OnTransition func(from, to State)

	Logger zerolog.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns one conversation and its request lifecycle.
type Session struct {
	mu sync.Mutex

	completer Completer
	retriever Retriever
	store     Store
	tasks     *tasks.Table
	events    *event.Channel
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Conversation
	history  *model.History
	evidence string
	image    *PendingImage
	keyword  string

	// Lifecycle
	state        State
	status       string
	onTransition func(from, to State)
	observer     func(e event.Event)

	// Request settings, captured at spawn
	model     string
	profile   string
	corpusDir string
	retrieval bool
	stream    bool
	window    int
}

// New creates an idle Session. retriever may be nil, which disables
// retrieval mode.
func New(c Completer, r Retriever, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		completer:    c,
		retriever:    r,
		store:        opts.Store,
		tasks:        tasks.NewTable(0),
		events:       event.NewChannel(),
		log:          opts.Logger.With().Str("component", "orchestrator").Logger(),
		ctx:          ctx,
		cancel:       cancel,
		onTransition: opts.OnTransition,
		model:        opts.Model,
		profile:      opts.Profile,
		corpusDir:    opts.CorpusDir,
		retrieval:    opts.Retrieval && r != nil,
		stream:       opts.Stream,
		window:       opts.HistoryWindow,
	}
	if opts.History != nil {
		s.history = opts.History
	} else {
		s.history = model.NewHistory(s.newID())
	}
	return s
}

// Events returns the channel workers report on. Its Ready signal wakes
// the UI loop; Poll does the draining.
func (s *Session) Events() *event.Channel {
	return s.events
}

// Close cancels any in-flight worker and waits for it to return.
func (s *Session) Close() {
	s.mu.Lock()
	s.tasks.Invalidate()
	s.cancel()
	s.mu.Unlock()

	s.tasks.Wait()
	s.events.Close()
}

// Wait blocks until every spawned worker has returned.
func (s *Session) Wait() {
	s.tasks.Wait()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Submit starts a request for input. It returns false without any effect
// unless the Session is Idle and input is not blank.
func (s *Session) Submit(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle || strings.TrimSpace(input) == "" {
		return false
	}

	s.history.AppendUser(input, s.image != nil)
	s.history.Model = s.model

	if s.retrieval {
		s.keyword = strings.TrimSpace(input)
		return s.startRetrieval(s.keyword)
	}

	s.evidence = ""
	return s.startInference(input)
}

// Poll applies every queued event without blocking and returns how many
// were applied. Events from invalidated generations are dropped.
func (s *Session) Poll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for {
		e, ok := s.events.TryRecv()
		if !ok {
			return applied
		}
		if !s.tasks.IsCurrent(e.Generation) {
			s.log.Debug().
				Uint64("generation", e.Generation).
				Str("kind", e.Kind.String()).
				Msg("dropping stale event")
			continue
		}
		s.log.Trace().Uint64("generation", e.Generation).Str("event", e.String()).Msg("apply")
		s.apply(e)
		if s.observer != nil {
			s.observer(e)
		}
		applied++
	}
}

func (s *Session) apply(e event.Event) {
	switch e.Kind {
	case event.KindStatus:
		s.status = e.Payload

	case event.KindResearchData, event.KindResearchEmpty:
		s.tasks.Settle(e.Generation)
		if s.state != StateScanning {
			s.log.Warn().Str("state", s.state.String()).Msg("retrieval result outside scanning")
			return
		}
		s.evidence = ""
		if e.Kind == event.KindResearchData {
			s.evidence = e.Payload
		}

		prompt := s.keyword
		if last := s.history.Last(); last != nil && last.Role == model.RoleUser {
			prompt = last.Content
		}
		s.startInference(prompt)

	case event.KindContent:
		s.history.AppendAssistantContent(e.Payload)

	case event.KindDone:
		s.tasks.Settle(e.Generation)
		s.status = ""
		s.setState(StateIdle)
		s.persist()
	}
}

// Cancel abandons the in-flight request and returns to Idle. Anything the
// abandoned worker sends afterwards is discarded. It reports whether a
// request was cancelled.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return false
	}

	task := s.tasks.Invalidate()
	if task != nil {
		s.log.Info().
			Str("task", task.ID).
			Uint64("generation", task.Generation).
			Str("state", s.state.String()).
			Msg("request cancelled")
	}
	s.evidence = ""
	s.status = ""
	s.setState(StateIdle)
	s.persist()
	return true
}

func (s *Session) startRetrieval(keyword string) bool {
	dir := s.corpusDir
	r := s.retriever
	log := s.log

	s.setState(StateScanning)
	_, err := s.tasks.Spawn(s.ctx, tasks.KindRetrieval, "scan "+dir, func(ctx context.Context, gen uint64) error {
		return runRetrieval(ctx, r, s.events.Sender(gen), dir, keyword, log)
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to start retrieval")
		s.setState(StateIdle)
		return false
	}
	return true
}

// startInference captures the request, clears the evidence and pending
// image, and spawns the inference worker.
func (s *Session) startInference(prompt string) bool {
	var image string
	if s.image != nil {
		image = s.image.Data
	}
	req := request{
		Model:    s.model,
		Messages: buildMessages(s.profile, s.history.Window(s.window), prompt, s.evidence, image),
		Stream:   s.stream,
	}
	s.evidence = ""
	s.image = nil

	c := s.completer
	log := s.log

	s.setState(StateGenerating)
	_, err := s.tasks.Spawn(s.ctx, tasks.KindInference, "chat "+req.Model, func(ctx context.Context, gen uint64) error {
		return runInference(ctx, c, s.events.Sender(gen), req, log)
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to start inference")
		s.setState(StateIdle)
		return false
	}
	return true
}

func (s *Session) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state change")
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

func (s *Session) persist() {
	if s.store == nil || s.history.IsEmpty() {
		return
	}
	if err := s.store.Save(s.history); err != nil {
		s.log.Error().Err(err).Str("session", s.history.ID).Msg("failed to save session")
	}
}

func (s *Session) newID() string {
	if s.store != nil {
		return s.store.NewID()
	}
	return uuid.NewString()
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// NewChat starts an empty conversation. Requires Idle.
func (s *Session) NewChat() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}
	s.history = model.NewHistory(s.newID())
	s.evidence = ""
	s.image = nil
	s.status = ""
	return nil
}

// LoadHistory replaces the conversation with h. Requires Idle.
func (s *Session) LoadHistory(h *model.History) error {
	if h == nil {
		return errors.New("nil history")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}
	s.history = h
	s.evidence = ""
	s.status = ""
	return nil
}

// AttachImage reads path and holds it for the next request.
func (s *Session) AttachImage(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("image %s is empty", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = &PendingImage{Path: path, Data: base64.StdEncoding.EncodeToString(data)}
	return nil
}

// ClearImage drops the pending image.
func (s *Session) ClearImage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = nil
}

// Observe registers fn to see every event Poll applies, after it is
// applied. fn runs with the session lock held and must not call back into
// the Session. A nil fn removes the observer.
func (s *Session) Observe(fn func(e event.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// =============================================================================
// SETTINGS
// =============================================================================

// SetModel selects the model for subsequent requests.
func (s *Session) SetModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = name
}

// SetRetrieval turns retrieval mode on or off and returns the new setting.
// It stays off when the Session has no Retriever.
func (s *Session) SetRetrieval(on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieval = on && s.retriever != nil
	return s.retrieval
}

// SetCorpusDir changes the directory scanned by subsequent requests.
func (s *Session) SetCorpusDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpusDir = dir
}

// SetStream switches between single-shot and streamed replies.
func (s *Session) SetStream(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = on
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the latest progress line, empty when Idle.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// History returns a copy of the conversation.
func (s *Session) History() *model.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// Evidence returns the retrieval evidence waiting for the next request.
func (s *Session) Evidence() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evidence
}

// Image returns the pending image, if any.
func (s *Session) Image() (PendingImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return PendingImage{}, false
	}
	return *s.image, true
}

// Model returns the selected model.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Retrieval reports whether retrieval mode is on.
func (s *Session) Retrieval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retrieval
}

// CorpusDir returns the directory retrieval scans.
func (s *Session) CorpusDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpusDir
}

// Stream reports whether replies are streamed.
func (s *Session) Stream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Generation returns the most recent worker generation.
func (s *Session) Generation() uint64 {
	return s.tasks.Generation()
}
