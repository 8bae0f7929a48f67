// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package event defines the messages workers send back to the session
// and the channel that carries them.
//
// Event is a closed union: the Kind field selects the variant and only
// ResearchData, Content and Status carry a payload. Every event is
// stamped with the generation of the task that produced it so the
// consumer can drop results from tasks it has since invalidated.
package event

import (
	"fmt"
	"strings"
)

// Kind selects the variant of an Event.
type Kind int

const (
	// KindContent is a chunk of assistant text.
	KindContent Kind = iota
	// KindStatus is informational and never changes lifecycle state.
	KindStatus
	// KindResearchData ends a retrieval that found evidence.
	KindResearchData
	// KindResearchEmpty ends a retrieval that found nothing.
	KindResearchEmpty
	// KindDone ends an inference task.
	KindDone
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindStatus:
		return "status"
	case KindResearchData:
		return "research_data"
	case KindResearchEmpty:
		return "research_empty"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Terminal reports whether the kind ends the task that emitted it.
func (k Kind) Terminal() bool {
	return k == KindResearchData || k == KindResearchEmpty || k == KindDone
}

// Event is one worker-to-session message.
type Event struct {
	Kind       Kind
	Payload    string
	Generation uint64
}

// Status builds a status event.
func Status(gen uint64, text string) Event {
	return Event{Kind: KindStatus, Payload: text, Generation: gen}
}

// ResearchData builds a retrieval success event carrying the evidence.
func ResearchData(gen uint64, evidence string) Event {
	return Event{Kind: KindResearchData, Payload: evidence, Generation: gen}
}

// ResearchEmpty builds a retrieval event for zero matches.
func ResearchEmpty(gen uint64) Event {
	return Event{Kind: KindResearchEmpty, Generation: gen}
}

// Content builds an assistant content event.
func Content(gen uint64, text string) Event {
	return Event{Kind: KindContent, Payload: text, Generation: gen}
}

// Done builds the inference terminal event.
func Done(gen uint64) Event {
	return Event{Kind: KindDone, Generation: gen}
}

// Legacy string tags. The session never parses these; they exist for
// transcripts and logs that use the tagged-string form.
const (
	tagStatus        = "__STATUS__: "
	tagResearchData  = "__RESEARCH_DATA__:"
	tagResearchEmpty = "__RESEARCH_EMPTY__"
	tagDone          = "__DONE__"
)

// String encodes the event in the tagged-string form. Content encodes as
// its bare payload, and Generation is not part of the encoding.
func (e Event) String() string {
	switch e.Kind {
	case KindStatus:
		return tagStatus + e.Payload
	case KindResearchData:
		return tagResearchData + e.Payload
	case KindResearchEmpty:
		return tagResearchEmpty
	case KindDone:
		return tagDone
	default:
		return e.Payload
	}
}

// Parse decodes a tagged string. Anything that is not a known tag is
// Content. The returned event has generation zero.
func Parse(s string) Event {
	switch {
	case s == tagDone:
		return Event{Kind: KindDone}
	case s == tagResearchEmpty:
		return Event{Kind: KindResearchEmpty}
	case strings.HasPrefix(s, tagResearchData):
		return Event{Kind: KindResearchData, Payload: strings.TrimPrefix(s, tagResearchData)}
	case strings.HasPrefix(s, "__STATUS__:"):
		return Event{Kind: KindStatus, Payload: strings.TrimSpace(strings.TrimPrefix(s, "__STATUS__:"))}
	default:
		return Event{Kind: KindContent, Payload: s}
	}
}
