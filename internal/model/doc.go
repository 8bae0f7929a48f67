// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation data structures.
//
// A History is an ordered log of Turns. Turns are appended by the session
// as the user submits input and as assistant content arrives; an
// assistant Turn grows in place while its reply streams in.
//
//	h := model.NewHistory("chat_20250101_120000")
//	h.AppendUser("explain op-amp bandwidth", false)
//	h.AppendAssistantContent("Bandwidth is ")
//	h.AppendAssistantContent("the unity-gain frequency.")
package model
