package runtime

import (
	"context"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/model"
)

type (
	// Emitter is handed to the domain logic to report intermediate results.
	// Each method notifies the matching hooks and returns the first hook
	// error. Once the call is interrupted every method returns an error
	// matching interrupt.ErrInterrupted without notifying hooks.
	//
	// Chunks of one logical message must share its ID and grow
	// monotonically; each message gets exactly one done notification after
	// its chunks.
	Emitter interface {
		// Reasoning reports an intermediate reasoning message.
		Reasoning(ctx context.Context, msg *model.Message) error
		// ReasoningDone reports the final reasoning message.
		ReasoningDone(ctx context.Context, msg *model.Message) error
		// Hint reports a complete hint message.
		Hint(ctx context.Context, msg *model.Message) error
		// Summary reports an intermediate summary message.
		Summary(ctx context.Context, msg *model.Message) error
		// SummaryDone reports the final summary message.
		SummaryDone(ctx context.Context, msg *model.Message) error
		// Acting reports intermediate output of the tool call use.
		Acting(ctx context.Context, use model.ToolUsePart, msg *model.Message) error
		// ActingDone reports the result of the tool call use.
		ActingDone(ctx context.Context, use model.ToolUsePart, msg *model.Message) error
	}

	emitter struct {
		agent  *Agent
		signal <-chan struct{}
	}
)

func (e *emitter) Reasoning(ctx context.Context, msg *model.Message) error {
	return e.reasoning(ctx, hooks.PhaseReasoning, msg, false)
}

func (e *emitter) ReasoningDone(ctx context.Context, msg *model.Message) error {
	return e.reasoning(ctx, hooks.PhaseReasoning, msg, true)
}

func (e *emitter) Hint(ctx context.Context, msg *model.Message) error {
	return e.reasoning(ctx, hooks.PhaseHint, msg, true)
}

func (e *emitter) Summary(ctx context.Context, msg *model.Message) error {
	return e.reasoning(ctx, hooks.PhaseSummary, msg, false)
}

func (e *emitter) SummaryDone(ctx context.Context, msg *model.Message) error {
	return e.reasoning(ctx, hooks.PhaseSummary, msg, true)
}

func (e *emitter) Acting(ctx context.Context, use model.ToolUsePart, msg *model.Message) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.agent.pipeline.ActingChunk(ctx, &hooks.ActingEvent{Agent: e.agent.name, ToolUse: use, Message: msg})
}

func (e *emitter) ActingDone(ctx context.Context, use model.ToolUsePart, msg *model.Message) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.agent.pipeline.ActingDone(ctx, &hooks.ActingEvent{Agent: e.agent.name, ToolUse: use, Message: msg})
}

func (e *emitter) reasoning(ctx context.Context, phase hooks.Phase, msg *model.Message, done bool) error {
	if err := e.check(); err != nil {
		return err
	}
	ev := &hooks.ReasoningEvent{Agent: e.agent.name, Phase: phase, Message: msg}
	if done {
		return e.agent.pipeline.ReasoningDone(ctx, ev)
	}
	return e.agent.pipeline.ReasoningChunk(ctx, ev)
}

// check returns the interrupt error once the call was interrupted.
func (e *emitter) check() error {
	select {
	case <-e.signal:
		return e.agent.interruptError()
	default:
		return nil
	}
}
