// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/morganforge/theseus/internal/event"
	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/ollama"
	"github.com/morganforge/theseus/internal/research"
)

// FailureText replaces the reply when the model server can't be reached.
const FailureText = "Error: Failed to connect to Ollama."

// Completer answers chat requests. *ollama.Client implements it.
type Completer interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error)
	ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error
}

// Retriever searches a corpus directory for a keyword. *research.Scanner
// implements it.
type Retriever interface {
	Search(ctx context.Context, dir, keyword string) (research.Result, error)
}

// =============================================================================
// REQUEST
// =============================================================================

// request is everything an inference worker needs, captured at spawn so
// the worker never reads Session state.
type request struct {
	Model    string
	Messages []ollama.Message
	Stream   bool
}

// buildMessages assembles the chat payload: the system profile, up to
// window earlier turns, then the prompt with any evidence and image.
func buildMessages(profile string, prior []*model.Turn, prompt, evidence, image string) []ollama.Message {
	msgs := make([]ollama.Message, 0, len(prior)+2)
	msgs = append(msgs, ollama.NewSystemMessage(profile))

	for _, t := range prior {
		switch t.Role {
		case model.RoleUser:
			msgs = append(msgs, ollama.NewUserMessage(t.Content))
		case model.RoleAssistant:
			msgs = append(msgs, ollama.NewAssistantMessage(t.Content))
		}
	}

	content := prompt
	if evidence != "" {
		content = fmt.Sprintf("### RESEARCH DATA:\n%s\n\n### USER QUERY:\n%s", evidence, prompt)
	}
	if image != "" {
		msgs = append(msgs, ollama.NewUserMessage(content, image))
	} else {
		msgs = append(msgs, ollama.NewUserMessage(content))
	}
	return msgs
}

// =============================================================================
// WORKERS
// =============================================================================

// scanStatus is the progress line sent when a scan starts.
func scanStatus(keyword string) string {
	return fmt.Sprintf("Scanning for signal '%s'...", keyword)
}

// runRetrieval scans dir for keyword and sends one status event followed
// by exactly one of ResearchData or ResearchEmpty.
func runRetrieval(ctx context.Context, r Retriever, out event.Sender, dir, keyword string, log zerolog.Logger) error {
	out.Status(scanStatus(keyword))

	res, err := r.Search(ctx, dir, keyword)
	if err != nil {
		out.ResearchEmpty()
		return err
	}

	log.Debug().
		Uint64("generation", out.Generation()).
		Str("dir", dir).
		Int("scanned", res.Scanned).
		Int("failed", res.Failed).
		Strs("sources", res.Sources).
		Msg("scan finished")

	if res.Empty() {
		out.ResearchEmpty()
		return nil
	}
	out.ResearchData(res.Evidence)
	return nil
}

// runInference sends req to c and reports the reply as Content events,
// always followed by Done. Failures become a single FailureText event.
func runInference(ctx context.Context, c Completer, out event.Sender, req request, log zerolog.Logger) error {
	defer out.Done()

	var err error
	if req.Stream {
		err = c.ChatStream(ctx, req.Model, req.Messages, func(chunk ollama.StreamChunk) {
			if chunk.Content != "" {
				out.Content(chunk.Content)
			}
		})
	} else {
		var resp *ollama.ChatResponse
		if resp, err = c.Chat(ctx, req.Model, req.Messages); err == nil {
			out.Content(resp.Message.Content)
			log.Debug().
				Uint64("generation", out.Generation()).
				Str("model", req.Model).
				Int("eval_count", resp.EvalCount).
				Float64("tokens_per_sec", resp.TokensPerSecond()).
				Msg("chat finished")
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("model", req.Model).Msg("chat request failed")
		out.Content(FailureText)
		return err
	}
	return nil
}
