// Package hooks defines the agent lifecycle hook capabilities and the
// Pipeline that invokes them. A hook is any value implementing one or more of
// the capability interfaces below; the pipeline dispatches each lifecycle
// notification to the hooks implementing the matching capability, one after
// the other, in ascending priority order.
package hooks

import (
	"context"

	"goa.design/agentcall/runtime/agent/interrupt"
	"goa.design/agentcall/runtime/agent/model"
)

type (
	// PreCallHook runs before the agent's domain logic starts. Hooks may
	// replace ev.Input; later hooks and the domain logic observe the change.
	PreCallHook interface {
		PreCall(ctx context.Context, ev *PreCallEvent) error
	}

	// PostCallHook runs after the domain logic returns successfully. Hooks may
	// replace ev.Output; the final value is returned to the caller and
	// broadcast to subscribers.
	PostCallHook interface {
		PostCall(ctx context.Context, ev *PostCallEvent) error
	}

	// ErrorHook observes failures other than cooperative interrupts.
	ErrorHook interface {
		OnError(ctx context.Context, ev *ErrorEvent) error
	}

	// InterruptedHook observes interrupted calls once the recovery message
	// was produced.
	InterruptedHook interface {
		Interrupted(ctx context.Context, ev *InterruptedEvent) error
	}

	// ReasoningChunkHook observes intermediate reasoning messages.
	ReasoningChunkHook interface {
		ReasoningChunk(ctx context.Context, ev *ReasoningEvent) error
	}

	// ReasoningDoneHook observes the final reasoning message. It is notified
	// exactly once per reasoning message, after all of its chunks.
	ReasoningDoneHook interface {
		ReasoningDone(ctx context.Context, ev *ReasoningEvent) error
	}

	// ActingChunkHook observes intermediate output of one tool execution.
	ActingChunkHook interface {
		ActingChunk(ctx context.Context, ev *ActingEvent) error
	}

	// ActingDoneHook observes the final result of one tool execution.
	ActingDoneHook interface {
		ActingDone(ctx context.Context, ev *ActingEvent) error
	}

	// PreCallEvent is the pre-call payload.
	PreCallEvent struct {
		// Agent is the name of the agent being called.
		Agent string
		// Input is the call input. Hooks may replace it.
		Input []*model.Message
	}

	// PostCallEvent is the post-call payload.
	PostCallEvent struct {
		// Agent is the name of the agent being called.
		Agent string
		// Input is the call input as seen by the domain logic.
		Input []*model.Message
		// Output is the final message. Hooks may replace it.
		Output *model.Message
	}

	// ErrorEvent is the error payload.
	ErrorEvent struct {
		// Agent is the name of the agent being called.
		Agent string
		// Err is the failure raised by the domain logic or a hook.
		Err error
	}

	// InterruptedEvent is the interrupted payload.
	InterruptedEvent struct {
		// Agent is the name of the agent being called.
		Agent string
		// Interrupt describes the interrupt that stopped the domain logic.
		Interrupt interrupt.Context
		// Output is the recovery message returned to the caller.
		Output *model.Message
	}

	// ReasoningEvent is the payload of reasoning chunk and done
	// notifications.
	ReasoningEvent struct {
		// Agent is the name of the agent being called.
		Agent string
		// Phase tags what the reasoning message represents.
		Phase Phase
		// Message is the reasoning message. Chunks of the same logical
		// message share its ID.
		Message *model.Message
	}

	// ActingEvent is the payload of acting chunk and done notifications.
	ActingEvent struct {
		// Agent is the name of the agent being called.
		Agent string
		// ToolUse is the tool call being executed.
		ToolUse model.ToolUsePart
		// Message is the tool message carrying the (partial) result.
		Message *model.Message
	}

	// Phase distinguishes regular reasoning from hints and summaries produced
	// by the domain logic.
	Phase string

	// Point names a lifecycle notification.
	Point string
)

const (
	PhaseReasoning Phase = "reasoning"
	PhaseHint      Phase = "hint"
	PhaseSummary   Phase = "summary"
)

const (
	PointPreCall        Point = "pre_call"
	PointPostCall       Point = "post_call"
	PointError          Point = "error"
	PointInterrupted    Point = "interrupted"
	PointReasoningChunk Point = "reasoning_chunk"
	PointReasoningDone  Point = "reasoning_done"
	PointActingChunk    Point = "acting_chunk"
	PointActingDone     Point = "acting_done"
)

// Points lists every lifecycle notification in lifecycle order.
var Points = []Point{
	PointPreCall,
	PointReasoningChunk,
	PointReasoningDone,
	PointActingChunk,
	PointActingDone,
	PointPostCall,
	PointInterrupted,
	PointError,
}

// Capabilities returns the lifecycle points hook implements.
func Capabilities(hook any) []Point {
	var points []Point
	if _, ok := hook.(PreCallHook); ok {
		points = append(points, PointPreCall)
	}
	if _, ok := hook.(ReasoningChunkHook); ok {
		points = append(points, PointReasoningChunk)
	}
	if _, ok := hook.(ReasoningDoneHook); ok {
		points = append(points, PointReasoningDone)
	}
	if _, ok := hook.(ActingChunkHook); ok {
		points = append(points, PointActingChunk)
	}
	if _, ok := hook.(ActingDoneHook); ok {
		points = append(points, PointActingDone)
	}
	if _, ok := hook.(PostCallHook); ok {
		points = append(points, PointPostCall)
	}
	if _, ok := hook.(InterruptedHook); ok {
		points = append(points, PointInterrupted)
	}
	if _, ok := hook.(ErrorHook); ok {
		points = append(points, PointError)
	}
	return points
}
