// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/theseus/internal/config"
	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/ollama"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/research"
	"github.com/morganforge/theseus/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

type echoCompleter struct{}

func (echoCompleter) Chat(ctx context.Context, m string, msgs []ollama.Message) (*ollama.ChatResponse, error) {
	return &ollama.ChatResponse{Message: ollama.NewAssistantMessage("ok")}, nil
}

func (echoCompleter) ChatStream(ctx context.Context, m string, msgs []ollama.Message, cb ollama.StreamCallback) error {
	cb(ollama.StreamChunk{Content: "ok"})
	return nil
}

type nopRetriever struct{}

func (nopRetriever) Search(ctx context.Context, dir, kw string) (research.Result, error) {
	return research.Result{}, nil
}

type fakeLister struct {
	models []ollama.ModelInfo
	err    error
}

func (f fakeLister) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return f.models, f.err
}

func newTestContext(t *testing.T, retriever orchestrator.Retriever) *Context {
	t.Helper()
	store, err := storage.NewSessionStore(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	sess := orchestrator.New(echoCompleter{}, retriever, orchestrator.Options{
		Model:     cfg.Models.Available[0],
		CorpusDir: t.TempDir(),
		Store:     store,
	})
	t.Cleanup(sess.Close)

	return &Context{Session: sess, Config: cfg, Sessions: store}
}

func saveHistory(t *testing.T, store *storage.SessionStore, prompt string) *model.History {
	t.Helper()
	h := model.NewHistory(store.NewID())
	h.AppendUser(prompt, false)
	h.AppendAssistantContent("reply")
	require.NoError(t, store.Save(h))
	return h
}

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestParse(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name      string
		input     string
		isCommand bool
		cmdName   string
		args      []string
		found     bool
	}{
		{"plain text", "what is slew rate?", false, "", nil, false},
		{"bare command", "/help", true, "/help", []string{}, true},
		{"alias", "/ls", true, "/ls", []string{}, true},
		{"upper case", "/MODEL qwen", true, "/model", []string{"qwen"}, true},
		{"quoted path", `/dir "My Papers/op amps"`, true, "/dir", []string{"My Papers/op amps"}, true},
		{"single quotes", `/image 'a b.png'`, true, "/image", []string{"a b.png"}, true},
		{"escaped quote", `/sessions "say \"hi\""`, true, "/sessions", []string{`say "hi"`}, true},
		{"unicode arg", "/dir /tmp/résumé", true, "/dir", []string{"/tmp/résumé"}, true},
		{"unknown", "/frobnicate now", true, "/frobnicate", []string{"now"}, false},
		{"leading space", "   /new", true, "/new", []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.Parse(tt.input)
			assert.Equal(t, tt.isCommand, got.IsCommand)
			if !tt.isCommand {
				return
			}
			assert.Equal(t, tt.cmdName, got.CommandName)
			assert.Equal(t, tt.found, got.Command != nil)
			if len(tt.args) == 0 {
				assert.Empty(t, got.Args)
			} else {
				assert.Equal(t, tt.args, got.Args)
			}
		})
	}
}

func TestParse_RawArgs(t *testing.T) {
	got := NewRegistry().Parse(`/sessions  op  amp `)
	assert.Equal(t, "op  amp", got.RawArgs)
}

func TestExtractCommandName(t *testing.T) {
	assert.Equal(t, "/model", ExtractCommandName("/model qwen2.5"))
	assert.Equal(t, "/help", ExtractCommandName("  /help"))
	assert.Equal(t, "", ExtractCommandName("hello"))
}

func TestGetPartialCommand(t *testing.T) {
	assert.Equal(t, "/mo", GetPartialCommand("/mo"))
	assert.Equal(t, "", GetPartialCommand("/model "))
	assert.Equal(t, "", GetPartialCommand("model"))
}

func TestValidateArgs(t *testing.T) {
	reg := NewRegistry()

	err := ValidateArgs(reg.Get("/load"), nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "session", verr.Arg)

	err = ValidateArgs(reg.Get("/rag"), []string{"maybe"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "maybe", verr.Got)

	assert.NoError(t, ValidateArgs(reg.Get("/rag"), []string{"ON"}))
	assert.NoError(t, ValidateArgs(nil, nil))
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_GetAndAliases(t *testing.T) {
	reg := NewRegistry()
	assert.Same(t, reg.Get("/quit"), reg.Get("/q"))
	assert.Same(t, reg.Get("/quit"), reg.Get("/exit"))
	assert.Same(t, reg.Get("/rag"), reg.Get("/reasoning"))
	assert.Nil(t, reg.Get("/nope"))
}

func TestRegistry_Complete(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{"/model", "/models"}, reg.Complete("/mo"))
	assert.Equal(t, []string{"/delete", "/dir"}, reg.Complete("/D"))
	assert.Empty(t, reg.Complete("/zzz"))
	assert.Len(t, reg.Complete("/"), len(reg.All()))
}

func TestRegistry_ExecuteErrors(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)

	res := reg.Execute(ctx, "hello")
	assert.Error(t, res.Err)

	res = reg.Execute(ctx, "/frobnicate")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "unknown command /frobnicate")

	res = reg.Execute(ctx, "/load")
	assert.Contains(t, res.Err.Error(), "required argument missing")
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHandleHelp(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)

	res := reg.Execute(ctx, "/help")
	require.NoError(t, res.Err)
	for _, want := range []string{"Navigation", "Conversation", "/load <n|id>", "Ctrl+R"} {
		assert.Contains(t, res.Text, want)
	}

	res = reg.Execute(ctx, "/help rag")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Text, "/rag [on|off]")
	assert.Contains(t, res.Text, "/reasoning")

	res = reg.Execute(ctx, "/help nope")
	assert.Error(t, res.Err)
}

func TestHandleQuit(t *testing.T) {
	reg := NewRegistry()
	for _, in := range []string{"/quit", "/q", "/exit"} {
		assert.True(t, reg.Execute(newTestContext(t, nil), in).Quit, in)
	}
}

func TestHandleRAG(t *testing.T) {
	reg := NewRegistry()

	ctx := newTestContext(t, nopRetriever{})
	require.False(t, ctx.Session.Retrieval())

	res := reg.Execute(ctx, "/rag")
	require.NoError(t, res.Err)
	assert.True(t, ctx.Session.Retrieval())
	assert.Equal(t, "Research mode on.", res.Text)

	res = reg.Execute(ctx, "/rag off")
	require.NoError(t, res.Err)
	assert.False(t, ctx.Session.Retrieval())

	res = reg.Execute(ctx, "/reasoning on")
	require.NoError(t, res.Err)
	assert.True(t, ctx.Session.Retrieval())
}

func TestHandleRAG_NoRetriever(t *testing.T) {
	ctx := newTestContext(t, nil)
	res := NewRegistry().Execute(ctx, "/rag on")
	assert.Error(t, res.Err)
	assert.False(t, ctx.Session.Retrieval())
}

func TestHandleStream(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)

	reg.Execute(ctx, "/stream")
	assert.True(t, ctx.Session.Stream())
	reg.Execute(ctx, "/stream off")
	assert.False(t, ctx.Session.Stream())
}

func TestHandleModel(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)
	ctx.Config.Models.Available = []string{"gemma3:27b", "gpt-oss:20b"}

	res := reg.Execute(ctx, "/model")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Text, "* 1  gemma3:27b")
	assert.Contains(t, res.Text, "  2  gpt-oss:20b")

	res = reg.Execute(ctx, "/model 2")
	require.NoError(t, res.Err)
	assert.Equal(t, "gpt-oss:20b", ctx.Session.Model())

	res = reg.Execute(ctx, "/m llama3:8b")
	require.NoError(t, res.Err)
	assert.Equal(t, "llama3:8b", ctx.Session.Model())
	assert.Contains(t, res.Text, "not in the configured list")

	res = reg.Execute(ctx, "/model 9")
	assert.Error(t, res.Err)
	assert.Equal(t, "llama3:8b", ctx.Session.Model())
}

func TestHandleModels(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)

	assert.True(t, reg.Get("/models").Slow)
	assert.Error(t, reg.Execute(ctx, "/models").Err)

	ctx.Models = fakeLister{models: []ollama.ModelInfo{
		{Name: "gemma3:27b", Size: 17 << 30, Details: ollama.ModelDetails{ParameterSize: "27B", QuantizationLevel: "Q4_K_M"}},
		{Name: "tiny", Size: 2 << 20},
	}}
	res := reg.Execute(ctx, "/models")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Text, "* gemma3:27b")
	assert.Contains(t, res.Text, "17.0 GB")
	assert.Contains(t, res.Text, "27B Q4_K_M")
	assert.Contains(t, res.Text, "2.0 MB")

	ctx.Models = fakeLister{err: ollama.ErrNotRunning}
	res = reg.Execute(ctx, "/models")
	assert.ErrorIs(t, res.Err, ollama.ErrNotRunning)
}

func TestHandleDir(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)

	res := reg.Execute(ctx, "/dir")
	assert.Contains(t, res.Text, ctx.Session.CorpusDir())

	dir := t.TempDir()
	res = reg.Execute(ctx, "/dir "+dir)
	require.NoError(t, res.Err)
	assert.Equal(t, dir, ctx.Session.CorpusDir())
	assert.NotContains(t, res.Text, "warning")

	missing := filepath.Join(dir, "missing")
	res = reg.Execute(ctx, "/dir "+missing)
	require.NoError(t, res.Err)
	assert.Equal(t, missing, ctx.Session.CorpusDir())
	assert.Contains(t, res.Text, "warning")
}

func TestHandleImage(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)

	path := filepath.Join(t.TempDir(), "scope.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0644))

	res := reg.Execute(ctx, "/image "+path)
	require.NoError(t, res.Err)
	img, ok := ctx.Session.Image()
	require.True(t, ok)
	assert.Equal(t, path, img.Path)

	res = reg.Execute(ctx, "/image")
	assert.Equal(t, "Image cleared.", res.Text)
	_, ok = ctx.Session.Image()
	assert.False(t, ok)

	res = reg.Execute(ctx, "/image")
	assert.Equal(t, "No image attached.", res.Text)

	res = reg.Execute(ctx, "/img "+filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, res.Err)
}

func TestHandleSessions_LoadDelete(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)
	store := ctx.Sessions.(*storage.SessionStore)

	res := reg.Execute(ctx, "/sessions")
	assert.Equal(t, "No saved sessions.", res.Text)

	first := saveHistory(t, store, "first question about op amps")
	second := saveHistory(t, store, "second question about filters")
	if first.ID == second.ID {
		t.Fatalf("store reused id %s", first.ID)
	}

	res = reg.Execute(ctx, "/ls")
	require.NoError(t, res.Err)
	lines := strings.Split(res.Text, "\n")
	require.Len(t, lines, 2)

	res = reg.Execute(ctx, "/sessions SECOND")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Text, second.ID)
	assert.NotContains(t, res.Text, first.ID)

	res = reg.Execute(ctx, "/sessions nothing-like-this")
	assert.Contains(t, res.Text, "No sessions match")

	res = reg.Execute(ctx, "/load "+first.ID)
	require.NoError(t, res.Err)
	assert.True(t, res.Reloaded)
	assert.Equal(t, first.ID, ctx.Session.History().ID)
	assert.Equal(t, 2, ctx.Session.History().Len())

	res = reg.Execute(ctx, "/load 99")
	assert.ErrorIs(t, res.Err, storage.ErrSessionNotFound)

	res = reg.Execute(ctx, "/delete "+second.ID)
	require.NoError(t, res.Err)
	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, first.ID, metas[0].ID)

	res = reg.Execute(ctx, "/delete 1")
	require.NoError(t, res.Err)
	metas, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)

	res = reg.Execute(ctx, "/delete 1")
	assert.Error(t, res.Err)
}

func TestHandleSessions_NoStore(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)
	ctx.Sessions = nil

	for _, in := range []string{"/sessions", "/load 1", "/delete 1"} {
		assert.ErrorIs(t, reg.Execute(ctx, in).Err, ErrNoStore, in)
	}
}

func TestHandleNewAndCancel(t *testing.T) {
	reg := NewRegistry()
	ctx := newTestContext(t, nil)
	before := ctx.Session.History().ID

	res := reg.Execute(ctx, "/cancel")
	assert.Equal(t, "Nothing to cancel.", res.Text)

	res = reg.Execute(ctx, "/new")
	require.NoError(t, res.Err)
	assert.True(t, res.Reloaded)
	assert.NotEqual(t, before, ctx.Session.History().ID)

	require.True(t, ctx.Session.Submit("hello"))
	res = reg.Execute(ctx, "/new")
	assert.True(t, errors.Is(res.Err, orchestrator.ErrBusy))

	res = reg.Execute(ctx, "/cancel")
	assert.Equal(t, "Cancelled.", res.Text)
	assert.Equal(t, orchestrator.StateIdle, ctx.Session.State())
}

func TestHandleStatus(t *testing.T) {
	ctx := newTestContext(t, nil)
	res := NewRegistry().Execute(ctx, "/status")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Text, "state:     Idle")
	assert.Contains(t, res.Text, "model:     "+ctx.Session.Model())
	assert.Contains(t, res.Text, "research:  off")
	assert.Contains(t, res.Text, "New Chat")
}

func TestHandleExport(t *testing.T) {
	ctx := newTestContext(t, nil)
	reg := NewRegistry()
	dir := t.TempDir()

	res := reg.Execute(ctx, "/export md "+dir)
	require.NoError(t, res.Err)
	assert.Equal(t, "Nothing to export yet.", res.Text)

	require.True(t, ctx.Session.Submit("gain bandwidth product"))
	ctx.Session.Wait()
	ctx.Session.Poll()

	res = reg.Execute(ctx, "/export json "+dir)
	require.NoError(t, res.Err)
	require.True(t, strings.HasPrefix(res.Text, "Exported to "), res.Text)

	path := strings.TrimPrefix(res.Text, "Exported to ")
	assert.Equal(t, ".json", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gain bandwidth product")

	res = reg.Execute(ctx, "/export html")
	assert.Error(t, res.Err)
}
