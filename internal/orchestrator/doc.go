// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator drives the request lifecycle of a conversation.
//
// A Session moves between three states:
//
//	Idle --Submit (retrieval on)--> Scanning --ResearchData/Empty--> Generating --Done--> Idle
//	Idle --Submit (retrieval off)-------------------------------->  Generating --Done--> Idle
//
// Submit is the only way out of Idle and at most one worker is in flight.
// Workers never touch the Session: they report through an event.Channel
// which the UI loop drains with Poll on every tick or wake-up. Each worker
// runs under its own generation from a tasks.Table; Cancel invalidates the
// current generation and Poll discards anything a stale worker sends later.
//
// # Usage
//
//	sess := orchestrator.New(client, scanner, orchestrator.Options{
//	    Model:     "gemma3:27b",
//	    Profile:   config.DefaultProfile,
//	    CorpusDir: "research_papers",
//	    Retrieval: true,
//	})
//	sess.Submit("explain op-amp bandwidth")
//	for sess.State() != orchestrator.StateIdle {
//	    <-sess.Events().Ready()
//	    sess.Poll()
//	}
package orchestrator
