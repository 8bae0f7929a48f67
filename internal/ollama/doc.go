// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama server.
//
// The client covers the endpoints the assistant needs: a liveness check,
// the installed model list (/api/tags), and chat completions (/api/chat)
// in both single-shot and NDJSON streaming form. Chat messages may carry
// base64 encoded images for vision models.
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url})
//	resp, err := client.Chat(ctx, "gemma3:27b", []ollama.Message{
//	    ollama.NewSystemMessage(profile),
//	    ollama.NewUserMessage("explain op-amp bandwidth"),
//	})
//
// Streaming delivers each chunk to a callback in arrival order:
//
//	err := client.ChatStream(ctx, model, msgs, func(c ollama.StreamChunk) {
//	    fmt.Print(c.Content)
//	})
package ollama
