package hooks

import "context"

type (
	// PreCallFunc adapts a function to PreCallHook.
	PreCallFunc func(ctx context.Context, ev *PreCallEvent) error
	// PostCallFunc adapts a function to PostCallHook.
	PostCallFunc func(ctx context.Context, ev *PostCallEvent) error
	// ErrorFunc adapts a function to ErrorHook.
	ErrorFunc func(ctx context.Context, ev *ErrorEvent) error
	// InterruptedFunc adapts a function to InterruptedHook.
	InterruptedFunc func(ctx context.Context, ev *InterruptedEvent) error
	// ReasoningChunkFunc adapts a function to ReasoningChunkHook.
	ReasoningChunkFunc func(ctx context.Context, ev *ReasoningEvent) error
	// ReasoningDoneFunc adapts a function to ReasoningDoneHook.
	ReasoningDoneFunc func(ctx context.Context, ev *ReasoningEvent) error
	// ActingChunkFunc adapts a function to ActingChunkHook.
	ActingChunkFunc func(ctx context.Context, ev *ActingEvent) error
	// ActingDoneFunc adapts a function to ActingDoneHook.
	ActingDoneFunc func(ctx context.Context, ev *ActingEvent) error
)

// PreCall implements PreCallHook.
func (f PreCallFunc) PreCall(ctx context.Context, ev *PreCallEvent) error { return f(ctx, ev) }

// PostCall implements PostCallHook.
func (f PostCallFunc) PostCall(ctx context.Context, ev *PostCallEvent) error { return f(ctx, ev) }

// OnError implements ErrorHook.
func (f ErrorFunc) OnError(ctx context.Context, ev *ErrorEvent) error { return f(ctx, ev) }

// Interrupted implements InterruptedHook.
func (f InterruptedFunc) Interrupted(ctx context.Context, ev *InterruptedEvent) error {
	return f(ctx, ev)
}

// ReasoningChunk implements ReasoningChunkHook.
func (f ReasoningChunkFunc) ReasoningChunk(ctx context.Context, ev *ReasoningEvent) error {
	return f(ctx, ev)
}

// ReasoningDone implements ReasoningDoneHook.
func (f ReasoningDoneFunc) ReasoningDone(ctx context.Context, ev *ReasoningEvent) error {
	return f(ctx, ev)
}

// ActingChunk implements ActingChunkHook.
func (f ActingChunkFunc) ActingChunk(ctx context.Context, ev *ActingEvent) error { return f(ctx, ev) }

// ActingDone implements ActingDoneHook.
func (f ActingDoneFunc) ActingDone(ctx context.Context, ev *ActingEvent) error { return f(ctx, ev) }
