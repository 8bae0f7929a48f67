// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks tracks the background workers a session spawns.
//
// A Table hands out a strictly increasing generation number with every
// spawn and holds at most one active task. The task stays active until
// its owner calls Settle for that generation, which normally happens when
// the task's terminal event is applied. Invalidate cancels the active
// task; anything it reports afterwards carries a generation that is no
// longer current and can be discarded.
//
//	table := tasks.NewTable(32)
//	task, err := table.Spawn(ctx, tasks.KindRetrieval, "scan corpus", func(ctx context.Context, gen uint64) error {
//	    return scan(ctx, gen)
//	})
//	...
//	if table.IsCurrent(ev.Generation) { table.Settle(ev.Generation) }
package tasks
