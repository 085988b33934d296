package pulse

import (
	"context"
	"errors"
	"sync"

	streamopts "goa.design/pulse/streaming/options"

	clientspulse "goa.design/agentcall/features/stream/pulse/clients/pulse"
	"goa.design/agentcall/runtime/agent/stream"
)

type (
	// RuntimeStreams pairs a publishing sink with subscribers sharing one
	// Pulse client. The CLI tees agent events into Sink and remote consumers
	// call Follow to read them back.
	RuntimeStreams struct {
		client clientspulse.Client
		sink   *Sink
		name   string

		closeOnce sync.Once
		closeErr  error
	}

	// RuntimeStreamsOptions configures NewRuntimeStreams.
	RuntimeStreamsOptions struct {
		// Client is shared by the sink and all subscribers. Required.
		Client clientspulse.Client
		// Sink configures the publishing sink. Its Client field is ignored.
		Sink Options
	}
)

// NewRuntimeStreams builds the publishing sink for opts.Sink.Stream.
func NewRuntimeStreams(opts RuntimeStreamsOptions) (*RuntimeStreams, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	cfg := opts.Sink
	cfg.Client = opts.Client
	sink, err := NewSink(cfg)
	if err != nil {
		return nil, err
	}
	return &RuntimeStreams{client: opts.Client, sink: sink, name: cfg.Stream}, nil
}

// Sink returns the publishing sink.
func (r *RuntimeStreams) Sink() stream.Sink { return r.sink }

// StreamName returns the default stream events are published to. It is
// empty when the sink derives streams per event.
func (r *RuntimeStreams) StreamName() string { return r.name }

// NewSubscriber returns a subscriber reading through the shared client.
func (r *RuntimeStreams) NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	opts.Client = r.client
	return NewSubscriber(opts)
}

// Follow subscribes consumer group group to the default stream.
func (r *RuntimeStreams) Follow(ctx context.Context, group string, opts ...streamopts.Sink) (<-chan stream.Event, <-chan error, context.CancelFunc, error) {
	if r.name == "" {
		return nil, nil, nil, errors.New("pulse: runtime streams have no default stream")
	}
	sub, err := r.NewSubscriber(SubscriberOptions{SinkName: group})
	if err != nil {
		return nil, nil, nil, err
	}
	return sub.Subscribe(ctx, r.name, opts...)
}

// Close closes the shared client once. Cancel subscribers first.
func (r *RuntimeStreams) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { r.closeErr = r.sink.Close(ctx) })
	return r.closeErr
}
