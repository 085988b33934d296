package runtime

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/interrupt"
	"goa.design/agentcall/runtime/agent/model"
)

type (
	// outcome is the terminal state of a call.
	outcome string

	// result carries the domain logic return values across goroutines.
	result struct {
		msg *model.Message
		err error
	}
)

const (
	outcomeSuccess     outcome = "success"
	outcomeInterrupted outcome = "interrupted"
	outcomeError       outcome = "error"
)

// Call runs one agent invocation with msgs as input; nil messages are
// skipped and messages received via Observe since the previous call are
// prepended. It returns the final message, the recovery message if the call
// was interrupted, or the error raised by a hook or the domain logic.
func (a *Agent) Call(ctx context.Context, msgs ...*model.Message) (*model.Message, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrCallInProgress
	}
	defer a.busy.Store(false)

	signal := a.interrupts.Arm()
	defer a.interrupts.Disarm()

	start := a.now()
	ctx, span := a.tracer.Start(ctx, "agent.call", trace.WithAttributes(attribute.String("agent.name", a.name)))
	defer span.End()
	a.metrics.IncCounter("agent.calls", 1, "agent", a.name)

	input := a.takeObserved()
	for _, m := range msgs {
		if m != nil {
			input = append(input, m)
		}
	}

	out, oc, err := a.run(ctx, signal, input)

	a.metrics.RecordTimer("agent.call.duration", a.now().Sub(start), "agent", a.name, "outcome", string(oc))
	switch oc {
	case outcomeInterrupted:
		a.metrics.IncCounter("agent.interrupts", 1, "agent", a.name)
		span.AddEvent("interrupted")
		span.SetStatus(codes.Ok, "interrupted")
	case outcomeError:
		a.metrics.IncCounter("agent.errors", 1, "agent", a.name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}
	return out, err
}

// run executes the call state machine:
//
//	PreHooks -> Executing -> PostHooks -> Done
//	Executing -> Interrupted -> Recovery -> InterruptedHooks -> Done
//	{PreHooks, Executing, PostHooks} -> Errored -> ErrorHooks -> Done
func (a *Agent) run(ctx context.Context, signal <-chan struct{}, input []*model.Message) (*model.Message, outcome, error) {
	pre := &hooks.PreCallEvent{Agent: a.name, Input: input}
	if err := a.pipeline.PreCall(ctx, pre); err != nil {
		return nil, outcomeError, a.fail(ctx, err)
	}

	out, err := a.execute(ctx, signal, pre.Input)
	if err != nil {
		if errors.Is(err, interrupt.ErrInterrupted) {
			return a.recoverCall(ctx, err, pre.Input), outcomeInterrupted, nil
		}
		return nil, outcomeError, a.fail(ctx, err)
	}

	post := &hooks.PostCallEvent{Agent: a.name, Input: pre.Input, Output: out}
	if err := a.pipeline.PostCall(ctx, post); err != nil {
		return nil, outcomeError, a.fail(ctx, err)
	}
	if err := a.broadcast(ctx, post.Output); err != nil {
		return nil, outcomeError, a.fail(ctx, err)
	}
	return post.Output, outcomeSuccess, nil
}

// execute races the domain logic against the interrupt signal. The domain
// logic runs with a child context that is cancelled when execute returns so
// abandoned work can stop cooperatively; its late result is discarded.
func (a *Agent) execute(ctx context.Context, signal <-chan struct{}, input []*model.Message) (*model.Message, error) {
	select {
	case <-signal:
		return nil, a.interruptError()
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	ev := &emitter{agent: a, signal: signal}
	go func() {
		msg, err := a.reply(ctx, input, ev)
		done <- result{msg: msg, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.msg == nil {
			return nil, errors.New("runtime: reply returned no message")
		}
		return r.msg, r.err
	case <-signal:
		return nil, a.interruptError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// interruptError returns the error describing the captured interrupt.
func (a *Agent) interruptError() error {
	ictx, _ := a.interrupts.Captured()
	return &interrupt.Error{Context: ictx}
}

// recoverCall produces the recovery message of an interrupted call and
// notifies the interrupted hooks. err is the interrupt error; it carries the
// interrupt context when the domain logic raised the interrupt itself.
// Interrupted hook failures are logged.
func (a *Agent) recoverCall(ctx context.Context, err error, input []*model.Message) *model.Message {
	ictx, fired := a.interrupts.Captured()
	if !fired {
		var ie *interrupt.Error
		if errors.As(err, &ie) {
			ictx = ie.Context
		}
		if ictx.Source == "" {
			ictx.Source = interrupt.SourceSystem
		}
		if ictx.Timestamp.IsZero() {
			ictx.Timestamp = a.now()
		}
	}
	a.logger.Info(ctx, "agent call interrupted", "agent", a.name, "source", string(ictx.Source))
	msg := a.recovery(ctx, ictx, input)
	if msg == nil {
		msg = DefaultRecovery(ctx, ictx, input)
	}
	if msg.Name == "" {
		msg.Name = a.name
	}
	if herr := a.pipeline.Interrupted(ctx, &hooks.InterruptedEvent{Agent: a.name, Interrupt: ictx, Output: msg}); herr != nil {
		a.logger.Warn(ctx, "interrupted hook failed", "agent", a.name, "err", herr)
	}
	return msg
}

// fail notifies the error hooks and returns err unchanged. Error hook
// failures are logged.
func (a *Agent) fail(ctx context.Context, err error) error {
	a.logger.Error(ctx, "agent call failed", "agent", a.name, "err", err)
	if herr := a.pipeline.Error(ctx, &hooks.ErrorEvent{Agent: a.name, Err: err}); herr != nil {
		a.logger.Warn(ctx, "error hook failed", "agent", a.name, "err", herr)
	}
	return err
}
