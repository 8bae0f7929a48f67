// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle accepts new input.
	StateIdle State = iota
	// StateScanning has a retrieval worker in flight.
	StateScanning
	// StateGenerating has an inference worker in flight.
	StateGenerating
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateGenerating:
		return "Generating"
	default:
		return "Unknown"
	}
}

// Busy reports whether a worker is in flight.
func (s State) Busy() bool {
	return s != StateIdle
}
