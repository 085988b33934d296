// Package pulse exposes a stream.Sink implementation that publishes agent
// call events to goa.design/pulse streams. Services build a Redis client,
// pass it to the Pulse client, and hand the resulting sink to
// runtime.Agent.StreamTo.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"goa.design/agentcall/features/stream/pulse/clients/pulse"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/stream"
)

type (
	// Options configures the Pulse sink.
	Options struct {
		// Client is the Pulse client used to publish events. Required.
		Client pulse.Client
		// Stream is the target Pulse stream name. Required unless StreamID
		// is set.
		Stream string
		// StreamID derives the target Pulse stream from an event. Overrides
		// Stream when set.
		StreamID func(stream.Event) (string, error)
		// MarshalEnvelope allows overriding the envelope serialization (primarily for tests).
		MarshalEnvelope func(envelope) ([]byte, error)
		// OnPublished is invoked after each successful publish.
		OnPublished func(context.Context, PublishedEvent) error
	}

	// PublishedEvent describes an event written to Pulse.
	PublishedEvent struct {
		// Event is the published stream event.
		Event stream.Event
		// StreamID is the Pulse stream the event was written to.
		StreamID string
		// EntryID is the Redis entry ID assigned to the event.
		EntryID string
	}

	// Sink publishes stream events into Pulse streams. Thread-safe for
	// concurrent Send operations.
	Sink struct {
		client pulse.Client
		opts   sinkOptions
	}

	// sinkOptions holds internal configuration derived from Options.
	sinkOptions struct {
		streamID        func(stream.Event) (string, error)
		marshalEnvelope func(envelope) ([]byte, error)
		onPublished     func(context.Context, PublishedEvent) error
	}

	// envelope wraps stream events for transmission over Pulse streams.
	envelope struct {
		// Kind is the stream event kind.
		Kind string `json:"kind"`
		// MessageID is the ID of the carried message.
		MessageID string `json:"message_id,omitempty"`
		// Final marks the last event of a message.
		Final bool `json:"final,omitempty"`
		// Timestamp records when the event was published (UTC).
		Timestamp time.Time `json:"timestamp"`
		// Payload is the carried message.
		Payload *model.Message `json:"payload,omitempty"`
	}
)

var _ stream.Sink = (*Sink)(nil)

// NewSink constructs a Pulse-backed stream sink.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	cfg := sinkOptions{
		streamID:        staticStreamID(opts.Stream),
		marshalEnvelope: defaultMarshal,
		onPublished:     opts.OnPublished,
	}
	if opts.StreamID != nil {
		cfg.streamID = opts.StreamID
	} else if opts.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if opts.MarshalEnvelope != nil {
		cfg.marshalEnvelope = opts.MarshalEnvelope
	}
	return &Sink{
		client: opts.Client,
		opts:   cfg,
	}, nil
}

// Send publishes the event to the derived Pulse stream. The Pulse event name
// is the stream event kind.
func (s *Sink) Send(ctx context.Context, event stream.Event) error {
	streamID, err := s.opts.streamID(event)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	env := envelope{
		Kind:      string(event.Kind),
		Final:     event.Final,
		Timestamp: time.Now().UTC(),
		Payload:   event.Message,
	}
	if event.Message != nil {
		env.MessageID = event.Message.ID
	}
	payload, err := s.opts.marshalEnvelope(env)
	if err != nil {
		return err
	}
	id, err := handle.Add(ctx, env.Kind, payload)
	if err != nil {
		return err
	}
	if s.opts.onPublished != nil {
		return s.opts.onPublished(ctx, PublishedEvent{Event: event, StreamID: streamID, EntryID: id})
	}
	return nil
}

// Close releases resources owned by the sink. This delegates to the underlying
// Pulse client, which may or may not close the Redis connection depending on
// the client implementation.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func staticStreamID(name string) func(stream.Event) (string, error) {
	return func(stream.Event) (string, error) { return name, nil }
}

// defaultMarshal serializes an envelope to JSON.
func defaultMarshal(env envelope) ([]byte, error) {
	return json.Marshal(env)
}
