// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is created but its goroutine has not started
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates the task is currently executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates the task finished successfully
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates the task returned an error
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCanceled indicates the task was invalidated
	TaskStatusCanceled TaskStatus = "Canceled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusCanceled
}

// Kind identifies which worker a task runs.
type Kind string

const (
	KindRetrieval Kind = "retrieval"
	KindInference Kind = "inference"
)

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Func is the body of a task. It runs on its own goroutine and should
// return promptly once ctx is cancelled.
type Func func(ctx context.Context, gen uint64) error

// Task is one spawned worker.
type Task struct {
	ID          string
	Kind        Kind
	Generation  uint64
	Description string

	status    TaskStatus
	startTime time.Time
	endTime   time.Time
	err       error
	cancel    context.CancelFunc

	mu sync.RWMutex
}

func newTask(kind Kind, gen uint64, description string) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Kind:        kind,
		Generation:  gen,
		Description: description,
		status:      TaskStatusQueued,
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// setStatus applies a validated transition. Terminal states are final.
func (t *Task) setStatus(to TaskStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !validTransition(t.status, to) {
		return false
	}
	t.status = to
	switch {
	case to == TaskStatusRunning:
		t.startTime = time.Now()
	case to.Terminal():
		t.endTime = time.Now()
	}
	return true
}

func validTransition(from, to TaskStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case TaskStatusQueued:
		return to == TaskStatusRunning || to == TaskStatusCanceled
	case TaskStatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

// finish records the outcome of the task body.
func (t *Task) finish(err error) {
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		t.setStatus(TaskStatusFailed)
		return
	}
	t.setStatus(TaskStatusComplete)
}

// Cancel cancels the task context and marks it Canceled.
// Returns false if the task had already finished.
func (t *Task) Cancel() bool {
	if !t.setStatus(TaskStatusCanceled) {
		return false
	}
	t.mu.RLock()
	cancel := t.cancel
	t.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Status returns the current task status.
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the error the task body returned, if any.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Duration returns how long the task has been running or took to complete.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.startTime.IsZero() {
		return 0
	}
	if t.endTime.IsZero() {
		return time.Since(t.startTime)
	}
	return t.endTime.Sub(t.startTime)
}

// Summary returns a one-line summary of the task.
func (t *Task) Summary() string {
	summary := fmt.Sprintf("[%s] #%d %s %s - %s", t.ID[:8], t.Generation, t.Kind, t.Description, t.Status())
	if d := t.Duration(); d > 0 {
		summary += fmt.Sprintf(" (%.1fs)", d.Seconds())
	}
	return summary
}
