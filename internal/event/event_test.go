// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import (
	"sync"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		kind    Kind
		payload string
	}{
		{"__DONE__", KindDone, ""},
		{"__RESEARCH_EMPTY__", KindResearchEmpty, ""},
		{"__RESEARCH_DATA:\nbroken", KindContent, "__RESEARCH_DATA:\nbroken"},
		{"__RESEARCH_DATA__:\n[SOURCE: a.pdf]\nsnippet\n", KindResearchData, "\n[SOURCE: a.pdf]\nsnippet\n"},
		{"__STATUS__: Scanning PDFs...", KindStatus, "Scanning PDFs..."},
		{"__STATUS__:tight", KindStatus, "tight"},
		{"plain reply text", KindContent, "plain reply text"},
		{"", KindContent, ""},
		{"__DONE__ trailing", KindContent, "__DONE__ trailing"},
	}

	for _, tt := range tests {
		got := Parse(tt.in)
		if got.Kind != tt.kind || got.Payload != tt.payload {
			t.Errorf("Parse(%q) = {%v %q}, want {%v %q}", tt.in, got.Kind, got.Payload, tt.kind, tt.payload)
		}
	}
}

func TestEvent_String(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{Done(3), "__DONE__"},
		{ResearchEmpty(1), "__RESEARCH_EMPTY__"},
		{ResearchData(1, "ev"), "__RESEARCH_DATA__:ev"},
		{Status(1, "Scanning"), "__STATUS__: Scanning"},
		{Content(1, "hi"), "hi"},
	}

	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.e.Kind, got, tt.want)
		}
	}
}

func TestKind_Terminal(t *testing.T) {
	terminal := map[Kind]bool{
		KindContent:       false,
		KindStatus:        false,
		KindResearchData:  true,
		KindResearchEmpty: true,
		KindDone:          true,
	}
	for k, want := range terminal {
		if got := k.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", k, got, want)
		}
	}
}

func TestChannel_OrderAndDrain(t *testing.T) {
	ch := NewChannel()
	s := ch.Sender(7)

	s.Status("start")
	s.Content("a")
	s.Content("b")
	s.Done()

	if got := ch.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}

	first, ok := ch.TryRecv()
	if !ok || first.Kind != KindStatus || first.Generation != 7 {
		t.Fatalf("TryRecv() = %+v, %v", first, ok)
	}

	rest := ch.Drain()
	if len(rest) != 3 {
		t.Fatalf("Drain() returned %d events, want 3", len(rest))
	}
	if rest[0].Payload != "a" || rest[1].Payload != "b" || rest[2].Kind != KindDone {
		t.Errorf("Drain() out of order: %+v", rest)
	}

	if _, ok := ch.TryRecv(); ok {
		t.Error("TryRecv() on empty channel returned an event")
	}
	if got := ch.Drain(); len(got) != 0 {
		t.Errorf("Drain() on empty channel = %v", got)
	}
}

func TestChannel_ReadySignal(t *testing.T) {
	ch := NewChannel()

	select {
	case <-ch.Ready():
		t.Fatal("Ready() signalled before any send")
	default:
	}

	ch.Send(Content(1, "x"))
	ch.Send(Content(1, "y"))

	select {
	case <-ch.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready() not signalled after send")
	}

	// Signals coalesce: both events are queued behind a single wake.
	if got := ch.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestChannel_Close(t *testing.T) {
	ch := NewChannel()
	ch.Send(Done(1))
	ch.Close()

	if ch.Send(Done(2)) {
		t.Error("Send() after Close reported success")
	}
	if got := ch.Drain(); len(got) != 1 || got[0].Generation != 1 {
		t.Errorf("Drain() after Close = %+v", got)
	}
}

func TestChannel_ConcurrentProducers(t *testing.T) {
	ch := NewChannel()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(gen uint64) {
			defer wg.Done()
			s := ch.Sender(gen)
			for i := 0; i < each; i++ {
				s.Content("x")
			}
		}(uint64(p))
	}
	wg.Wait()

	if got := len(ch.Drain()); got != producers*each {
		t.Errorf("received %d events, want %d", got, producers*each)
	}
}
