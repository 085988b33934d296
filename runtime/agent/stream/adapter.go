package stream

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/model"
)

// Adapter is a hook that republishes lifecycle notifications as stream
// events. Chunk notifications produce non-final events and done
// notifications produce final events. The orchestrator registers one Adapter
// per streaming call and closes it when the call ends.
//
// Sends are serialized. Once Close returns no notification reaches the sink.
type Adapter struct {
	opts Options
	sink Sink

	mu     sync.Mutex
	closed bool
	// emitted counts the blocks already sent per message ID in incremental
	// mode.
	emitted map[string]int
	// finalized holds the message IDs that already got their final event.
	finalized map[string]struct{}
}

// ResultOfMetaKey is set on the final result event message when the returned
// message shares its ID with a message already finalized in the stream. The
// event is re-identified and the key holds the original ID.
const ResultOfMetaKey = "result_of"

// NewAdapter returns an adapter forwarding to sink.
func NewAdapter(opts Options, sink Sink) *Adapter {
	return &Adapter{
		opts:    Options{Kinds: slices.Clone(opts.Kinds), Incremental: opts.Incremental, IncludeFinalResult: opts.IncludeFinalResult},
		sink:      sink,
		emitted:   make(map[string]int),
		finalized: make(map[string]struct{}),
	}
}

// ReasoningChunk implements hooks.ReasoningChunkHook.
func (a *Adapter) ReasoningChunk(ctx context.Context, ev *hooks.ReasoningEvent) error {
	return a.forward(ctx, phaseKind(ev.Phase), ev.Message, false)
}

// ReasoningDone implements hooks.ReasoningDoneHook.
func (a *Adapter) ReasoningDone(ctx context.Context, ev *hooks.ReasoningEvent) error {
	return a.forward(ctx, phaseKind(ev.Phase), ev.Message, true)
}

// ActingChunk implements hooks.ActingChunkHook.
func (a *Adapter) ActingChunk(ctx context.Context, ev *hooks.ActingEvent) error {
	return a.forward(ctx, KindToolResult, ev.Message, false)
}

// ActingDone implements hooks.ActingDoneHook.
func (a *Adapter) ActingDone(ctx context.Context, ev *hooks.ActingEvent) error {
	return a.forward(ctx, KindToolResult, ev.Message, true)
}

// Close stops forwarding notifications. It waits for an in-flight send to
// return. Close is idempotent.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// Finish emits msg, the value returned by the call, as the final result
// when IncludeFinalResult is set. It may be called after Close so the event
// carries exactly what the caller receives, recovery messages included. When
// msg.ID already got a final event the result is sent under a fresh ID with
// ResultOfMetaKey set.
func (a *Adapter) Finish(ctx context.Context, msg *model.Message) error {
	if !a.opts.IncludeFinalResult || msg == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := msg
	if _, ok := a.finalized[msg.ID]; ok {
		out = msg.Clone()
		out.ID = uuid.NewString()
		if out.Meta == nil {
			out.Meta = make(map[string]any, 1)
		}
		out.Meta[ResultOfMetaKey] = msg.ID
	}
	if err := a.sink.Send(ctx, Event{Kind: KindAgentResult, Message: out, Final: true}); err != nil {
		return err
	}
	a.finalized[out.ID] = struct{}{}
	return nil
}

func (a *Adapter) forward(ctx context.Context, kind Kind, msg *model.Message, final bool) error {
	if msg == nil || !a.opts.Accepts(kind) {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || ctx.Err() != nil {
		return nil
	}
	out := msg
	if a.opts.Incremental {
		var emit bool
		out, emit = a.diff(msg, final)
		if !emit {
			return nil
		}
	}
	if err := a.sink.Send(ctx, Event{Kind: kind, Message: out, Final: final}); err != nil {
		return err
	}
	if final {
		a.finalized[msg.ID] = struct{}{}
	}
	return nil
}

// diff returns a copy of msg holding only the blocks beyond the count already
// emitted for msg.ID. Chunks without new blocks are skipped; done
// notifications are always emitted so consumers observe the final event.
// The count for msg.ID is cleared on done. a.mu must be held.
func (a *Adapter) diff(msg *model.Message, final bool) (*model.Message, bool) {
	prev := a.emitted[msg.ID]
	if final {
		delete(a.emitted, msg.ID)
	}
	var suffix []model.Part
	if prev < len(msg.Parts) {
		suffix = msg.Parts[prev:]
		if !final {
			a.emitted[msg.ID] = len(msg.Parts)
		}
	}
	if len(suffix) == 0 && !final {
		return nil, false
	}
	out := msg.Clone()
	out.Parts = append([]model.Part(nil), suffix...)
	return out, true
}

func phaseKind(p hooks.Phase) Kind {
	switch p {
	case hooks.PhaseHint:
		return KindHint
	case hooks.PhaseSummary:
		return KindSummary
	default:
		return KindReasoning
	}
}
