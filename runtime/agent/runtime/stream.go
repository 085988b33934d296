package runtime

import (
	"context"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/stream"
)

// StreamPriority is the priority of the stream adapter hook. It runs after
// hooks registered with the default priority so events reflect their
// mutations.
const StreamPriority = 1000

// Stream runs a call in the background and returns the reader of its event
// stream. The reader ends when the call terminates; Reader.Err then reports
// the call error, if any. Closing the reader early cancels the call context.
func (a *Agent) Stream(ctx context.Context, opts stream.Options, msgs ...*model.Message) *stream.Reader {
	return stream.NewReader(ctx, func(ctx context.Context, sink stream.Sink) error {
		_, err := a.StreamTo(ctx, opts, sink, msgs...)
		return err
	})
}

// StreamTo runs a call while forwarding its events to sink. The adapter
// hook lives for the duration of the call only and is removed however the
// call ends. Notifications raised by domain logic abandoned after an
// interrupt are dropped. When opts.IncludeFinalResult is set the returned
// message is sent last as a KindAgentResult event.
func (a *Agent) StreamTo(ctx context.Context, opts stream.Options, sink stream.Sink, msgs ...*model.Message) (*model.Message, error) {
	adapter := stream.NewAdapter(opts, sink)
	reg, err := a.pipeline.Register(adapter, hooks.WithPriority(StreamPriority))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reg.Close()
	}()

	out, err := a.Call(ctx, msgs...)
	adapter.Close()
	if err != nil {
		return nil, err
	}
	if err := adapter.Finish(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}
