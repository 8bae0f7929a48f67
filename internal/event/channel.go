// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import "sync"

// Channel is an unbounded multi-producer, single-consumer queue of events.
//
// Send never blocks. The consumer drains with TryRecv or Drain and may
// select on Ready to wake as soon as something arrives instead of
// waiting for its next tick.
type Channel struct {
	mu     sync.Mutex
	queue  []Event
	ready  chan struct{}
	closed bool
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{ready: make(chan struct{}, 1)}
}

// Send enqueues an event. Sends after Close are dropped and report false.
func (c *Channel) Send(e Event) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, e)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// Sender returns a producer handle bound to one generation. Workers get
// their own handle per spawn.
func (c *Channel) Sender(gen uint64) Sender {
	return Sender{ch: c, gen: gen}
}

// TryRecv pops the oldest event without waiting.
func (c *Channel) TryRecv() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return Event{}, false
	}
	e := c.queue[0]
	c.queue[0] = Event{}
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return e, true
}

// Drain removes and returns every queued event in send order.
func (c *Channel) Drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.queue
	c.queue = nil
	return out
}

// Len returns the number of queued events.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Ready is signalled (coalesced) after each Send.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Close stops accepting events. Queued events remain drainable.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Sender is a producer handle that stamps every event with its generation.
type Sender struct {
	ch  *Channel
	gen uint64
}

// Generation returns the generation this handle stamps.
func (s Sender) Generation() uint64 { return s.gen }

// Status sends a status event.
func (s Sender) Status(text string) { s.ch.Send(Status(s.gen, text)) }

// ResearchData sends the retrieval success event.
func (s Sender) ResearchData(evidence string) { s.ch.Send(ResearchData(s.gen, evidence)) }

// ResearchEmpty sends the retrieval empty event.
func (s Sender) ResearchEmpty() { s.ch.Send(ResearchEmpty(s.gen)) }

// Content sends a chunk of assistant text.
func (s Sender) Content(text string) { s.ch.Send(Content(s.gen, text)) }

// Done sends the inference terminal event.
func (s Sender) Done() { s.ch.Send(Done(s.gen)) }
