// Package stream turns agent lifecycle notifications into an ordered
// sequence of client-facing events. The Adapter is a temporary hook that
// lives for exactly one streaming call and forwards matching notifications
// to a Sink; the Reader is a pull-based Sink for in-process consumers.
package stream

import (
	"context"
	"slices"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	// Kind classifies stream events.
	Kind string

	// Event is one element of the event stream.
	Event struct {
		// Kind classifies the event.
		Kind Kind `json:"kind"`
		// Message is the carried message. In incremental mode its Parts hold
		// only the blocks not yet emitted for the message ID.
		Message *model.Message `json:"message"`
		// Final is true for the last event carrying Message.ID.
		Final bool `json:"final"`
	}

	// Options configures an event stream. Options are fixed once the stream
	// is opened.
	Options struct {
		// Kinds selects the forwarded event kinds. Empty or containing
		// KindAll forwards every kind except KindAgentResult.
		Kinds []Kind
		// Incremental emits only the blocks added since the previous event
		// for the same message ID. When false each event carries the full
		// message as notified.
		Incremental bool
		// IncludeFinalResult emits the final call result as a
		// KindAgentResult event.
		IncludeFinalResult bool
	}

	// Sink receives stream events.
	Sink interface {
		// Send delivers one event. Send errors propagate to the notifying
		// hook pipeline and fail the call.
		Send(ctx context.Context, event Event) error
		// Close releases the sink. Close is idempotent.
		Close(ctx context.Context) error
	}
)

const (
	// KindReasoning carries reasoning messages.
	KindReasoning Kind = "reasoning"
	// KindToolResult carries tool execution results.
	KindToolResult Kind = "tool_result"
	// KindHint carries hints produced by the domain logic.
	KindHint Kind = "hint"
	// KindAgentResult carries the final message returned by the call.
	KindAgentResult Kind = "agent_result"
	// KindSummary carries summaries produced by the domain logic.
	KindSummary Kind = "summary"
	// KindAll selects every kind.
	KindAll Kind = "all"
)

// DefaultOptions forwards every kind cumulatively without the final result.
func DefaultOptions() Options {
	return Options{Kinds: []Kind{KindAll}}
}

// Accepts reports whether events of kind k pass the kind filter.
// KindAgentResult is governed by IncludeFinalResult only.
func (o Options) Accepts(k Kind) bool {
	if k == KindAgentResult {
		return o.IncludeFinalResult
	}
	if len(o.Kinds) == 0 {
		return true
	}
	return slices.Contains(o.Kinds, KindAll) || slices.Contains(o.Kinds, k)
}
