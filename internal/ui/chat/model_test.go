// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/theseus/internal/commands"
	"github.com/morganforge/theseus/internal/config"
	"github.com/morganforge/theseus/internal/detect"
	"github.com/morganforge/theseus/internal/ollama"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/research"
	"github.com/morganforge/theseus/internal/storage"
	"github.com/morganforge/theseus/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type replyCompleter struct {
	reply string
	gate  chan struct{}
}

func (c *replyCompleter) wait(ctx context.Context) error {
	if c.gate == nil {
		return nil
	}
	select {
	case <-c.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *replyCompleter) Chat(ctx context.Context, m string, msgs []ollama.Message) (*ollama.ChatResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return &ollama.ChatResponse{Message: ollama.NewAssistantMessage(c.reply)}, nil
}

func (c *replyCompleter) ChatStream(ctx context.Context, m string, msgs []ollama.Message, cb ollama.StreamCallback) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	cb(ollama.StreamChunk{Content: c.reply})
	return nil
}

type stubRetriever struct{}

func (stubRetriever) Search(ctx context.Context, dir, kw string) (research.Result, error) {
	return research.Result{Evidence: "\n[SOURCE: a.pdf]\n" + kw + "\n"}, nil
}

type fixedProbe detect.Usage

func (p fixedProbe) Read(ctx context.Context) detect.Usage { return detect.Usage(p) }

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, c orchestrator.Completer, r orchestrator.Retriever) (Model, *orchestrator.Session) {
	t.Helper()
	store, err := storage.NewSessionStore(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	sess := orchestrator.New(c, r, orchestrator.Options{
		Model:     cfg.Models.Available[0],
		Profile:   cfg.Inference.Profile,
		CorpusDir: "research_papers",
		Store:     store,
	})
	t.Cleanup(sess.Close)

	m := New(Options{
		Session:  sess,
		Commands: &commands.Context{Config: cfg, Sessions: store},
		Probe:    fixedProbe{UsedMB: 12000, TotalMB: 24000},
		Theme:    styles.NewTheme(styles.ModeNoTTY),
		Tick:     10 * time.Millisecond,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), sess
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	return m
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

// pollUntilIdle feeds wake-ups into m until the session is Idle.
func pollUntilIdle(t *testing.T, m Model, sess *orchestrator.Session) Model {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		m, _ = update(t, m, wakeMsg{})
		if sess.State() == orchestrator.StateIdle {
			return m
		}
		if time.Now().After(deadline) {
			t.Fatalf("session stuck in %s", sess.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_BeforeResize(t *testing.T) {
	m := New(Options{
		Session: orchestrator.New(&replyCompleter{}, nil, orchestrator.Options{}),
		Theme:   styles.NewTheme(styles.ModeNoTTY),
	})
	assert.Equal(t, "Loading...", m.View())
}

func TestSubmit_RendersReply(t *testing.T) {
	m, sess := newTestModel(t, &replyCompleter{reply: "The **gain-bandwidth product** is constant."}, nil)

	m = typeText(t, m, "what is GBW?")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	assert.NotNil(t, cmd, "spinner should start")
	assert.Equal(t, "", m.input.Value())
	assert.True(t, sess.State().Busy())

	m = pollUntilIdle(t, m, sess)
	view := m.View()
	assert.Contains(t, view, "what is GBW?")
	assert.Contains(t, view, "gain-bandwidth product")
	assert.Contains(t, view, "Ready")
	assert.Equal(t, 2, sess.History().Len())
}

func TestSubmit_BlankIgnored(t *testing.T) {
	m, sess := newTestModel(t, &replyCompleter{reply: "x"}, nil)
	m = typeText(t, m, "   ")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Equal(t, orchestrator.StateIdle, sess.State())
	assert.True(t, sess.History().IsEmpty())
}

func TestSubmit_BusyShowsNote(t *testing.T) {
	c := &replyCompleter{reply: "x", gate: make(chan struct{})}
	m, sess := newTestModel(t, c, nil)

	m = typeText(t, m, "first")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	m = typeText(t, m, "second")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))

	assert.Equal(t, "second", m.input.Value(), "rejected input stays in the box")
	assert.Equal(t, 1, sess.History().Len())
	assert.Contains(t, m.viewport.View(), "Press Esc")

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, orchestrator.StateIdle, sess.State())
	assert.Contains(t, m.viewport.View(), "Cancelled.")
}

func TestScanningStatusLine(t *testing.T) {
	c := &replyCompleter{reply: "x", gate: make(chan struct{})}
	m, sess := newTestModel(t, c, stubRetriever{})
	require.True(t, sess.SetRetrieval(true))

	m = typeText(t, m, "slew")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	assert.Equal(t, orchestrator.StateScanning, sess.State())
	assert.Contains(t, m.statusLine(), "Scanning")

	deadline := time.Now().Add(5 * time.Second)
	for sess.State() != orchestrator.StateGenerating {
		m, _ = update(t, m, wakeMsg{})
		if time.Now().After(deadline) {
			t.Fatalf("never reached Generating, state %s", sess.State())
		}
		time.Sleep(time.Millisecond)
	}
	assert.Contains(t, m.statusLine(), "Generating with gemma3:27b")

	close(c.gate)
	pollUntilIdle(t, m, sess)
}

func TestCommand_RunsThroughRegistry(t *testing.T) {
	m, sess := newTestModel(t, &replyCompleter{}, stubRetriever{})

	m = typeText(t, m, "/rag off")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	assert.False(t, sess.Retrieval())
	assert.Contains(t, m.viewport.View(), "Research mode off.")

	m = typeText(t, m, "/bogus")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	assert.Contains(t, m.viewport.View(), "unknown command /bogus")
}

func TestCommand_QuitAndCtrlC(t *testing.T) {
	m, _ := newTestModel(t, &replyCompleter{}, nil)

	m1 := typeText(t, m, "/quit")
	_, cmd := update(t, m1, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)

	_, cmd = update(t, m, keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	_, ok = cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestCommand_SlowRunsAsCmd(t *testing.T) {
	m, _ := newTestModel(t, &replyCompleter{}, nil)
	m.cmdCtx.Models = fakeModels{"gemma3:27b", "qwen3:8b"}

	m = typeText(t, m, "/models")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Contains(t, m.viewport.View(), "Running /models...")

	msg := cmd()
	require.IsType(t, commandResultMsg{}, msg)
	m, _ = update(t, m, msg)
	assert.Contains(t, m.viewport.View(), "qwen3:8b")
}

type fakeModels []string

func (f fakeModels) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	out := make([]ollama.ModelInfo, len(f))
	for i, n := range f {
		out[i] = ollama.ModelInfo{Name: n}
	}
	return out, nil
}

func TestKeys_ToggleRAGAndNewChat(t *testing.T) {
	m, sess := newTestModel(t, &replyCompleter{reply: "ok"}, stubRetriever{})
	assert.False(t, sess.Retrieval())

	m, _ = update(t, m, keyMsg(tea.KeyCtrlR))
	assert.True(t, sess.Retrieval())

	m = typeText(t, m, "hello")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	m = pollUntilIdle(t, m, sess)
	oldID := sess.History().ID

	m, _ = update(t, m, keyMsg(tea.KeyCtrlN))
	assert.NotEqual(t, oldID, sess.History().ID)
	assert.True(t, sess.History().IsEmpty())
	assert.NotContains(t, m.viewport.View(), "hello")
}

func TestTab_CompletesCommands(t *testing.T) {
	m, _ := newTestModel(t, &replyCompleter{}, nil)

	m = typeText(t, m, "/mo")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, "/model", m.input.Value())
	assert.Contains(t, m.viewport.View(), "/models")

	m = typeText(t, m, "/str")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, "/stream ", m.input.Value())

	m = typeText(t, m, "/zz")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, "/zz", m.input.Value())
}

func TestTab_CyclesModels(t *testing.T) {
	m, sess := newTestModel(t, &replyCompleter{}, nil)
	models := m.cmdCtx.Config.Models.Available
	require.GreaterOrEqual(t, len(models), 2)

	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, models[1], sess.Model())

	for i := 1; i < len(models); i++ {
		m, _ = update(t, m, keyMsg(tea.KeyTab))
	}
	assert.Equal(t, models[0], sess.Model())
}

func TestSidebar(t *testing.T) {
	m, _ := newTestModel(t, &replyCompleter{}, nil)

	m, _ = update(t, m, readVRAM(m.probe)())
	m, _ = update(t, m, sessionsMsg{metas: []storage.Meta{
		{ID: "chat_1", Title: "A very long conversation title that overflows"},
	}})

	side := m.sidebar()
	assert.Contains(t, side, "12000 / 24000 MiB")
	assert.Contains(t, side, "gemma3:27b")
	assert.Contains(t, side, "…")
	assert.Contains(t, side, "research_papers")
	assert.NotContains(t, side, "overflows")
}

func TestTick_Reschedules(t *testing.T) {
	m, _ := newTestModel(t, &replyCompleter{}, nil)
	_, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"much too long", 8, "much to…"},
		{"日本語のタイトル", 7, "日本語…"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.width), tt.in)
	}

	assert.Equal(t, "…/papers", truncateLeft("/home/me/papers", 8))
	assert.Equal(t, "papers", truncateLeft("papers", 8))
}

func TestCommonPrefix(t *testing.T) {
	assert.Equal(t, "/model", commonPrefix([]string{"/model", "/models"}))
	assert.Equal(t, "/d", commonPrefix([]string{"/delete", "/dir"}))
	assert.Equal(t, "", commonPrefix(nil))
	assert.True(t, strings.HasPrefix("/help", commonPrefix([]string{"/help"})))
}
