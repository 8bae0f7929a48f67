// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned by Spawn while another task is still active.
var ErrBusy = errors.New("a task is already active")

// Table holds the active task and a bounded history of settled ones.
type Table struct {
	mu         sync.Mutex
	generation uint64
	active     *Task
	history    []*Task
	maxHistory int

	wg sync.WaitGroup
}

// NewTable creates a table that remembers up to maxHistory settled tasks.
func NewTable(maxHistory int) *Table {
	if maxHistory <= 0 {
		maxHistory = 32
	}
	return &Table{maxHistory: maxHistory}
}

// Spawn starts fn on a new goroutine under a fresh generation.
// The task context derives from parent and is cancelled on Invalidate.
func (tb *Table) Spawn(parent context.Context, kind Kind, description string, fn Func) (*Task, error) {
	tb.mu.Lock()
	if tb.active != nil {
		tb.mu.Unlock()
		return nil, ErrBusy
	}
	tb.generation++
	task := newTask(kind, tb.generation, description)
	ctx, cancel := context.WithCancel(parent)
	task.cancel = cancel
	tb.active = task
	tb.wg.Add(1)
	tb.mu.Unlock()

	go func() {
		defer tb.wg.Done()
		defer cancel()
		if !task.setStatus(TaskStatusRunning) {
			return
		}
		task.finish(fn(ctx, task.Generation))
	}()

	return task, nil
}

// Generation returns the most recently issued generation.
func (tb *Table) Generation() uint64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.generation
}

// Active returns the active task, or nil.
func (tb *Table) Active() *Task {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.active
}

// IsCurrent reports whether gen belongs to the active task.
func (tb *Table) IsCurrent(gen uint64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.active != nil && tb.active.Generation == gen
}

// Settle releases the active task if it has generation gen.
func (tb *Table) Settle(gen uint64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.active == nil || tb.active.Generation != gen {
		return false
	}
	tb.retireLocked()
	return true
}

// Invalidate cancels and releases the active task. Its generation stops
// being current immediately.
func (tb *Table) Invalidate() *Task {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	task := tb.active
	if task == nil {
		return nil
	}
	task.Cancel()
	tb.retireLocked()
	return task
}

func (tb *Table) retireLocked() {
	tb.history = append(tb.history, tb.active)
	if over := len(tb.history) - tb.maxHistory; over > 0 {
		tb.history = append(tb.history[:0:0], tb.history[over:]...)
	}
	tb.active = nil
}

// History returns settled tasks, oldest first.
func (tb *Table) History() []*Task {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append([]*Task(nil), tb.history...)
}

// Wait blocks until every spawned goroutine has returned.
func (tb *Table) Wait() {
	tb.wg.Wait()
}
