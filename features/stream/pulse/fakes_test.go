package pulse

import (
	"context"
	"errors"
	"sync"

	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	clientspulse "goa.design/agentcall/features/stream/pulse/clients/pulse"
)

type (
	fakeClient struct {
		mu         sync.Mutex
		stream     *fakeStream
		streamErr  error
		closeCount int
		streams    []string
	}

	fakeStream struct {
		mu       sync.Mutex
		sink     *fakeSink
		sinkErr  error
		addErr   error
		lastSink string
		added    []addCall
	}

	addCall struct {
		event   string
		payload []byte
	}

	fakeSink struct {
		mu     sync.Mutex
		events chan *streaming.Event
		ackErr error
		acked  []string
		closed bool
	}
)

func (f *fakeClient) Stream(name string) (clientspulse.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, name)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

func (f *fakeClient) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

func (f *fakeStream) Add(_ context.Context, event string, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, addCall{event: event, payload: payload})
	return "1-0", nil
}

func (f *fakeStream) NewSink(_ context.Context, name string, _ ...streamopts.Sink) (clientspulse.Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSink = name
	if f.sinkErr != nil {
		return nil, f.sinkErr
	}
	if f.sink == nil {
		return nil, errors.New("no sink")
	}
	return f.sink, nil
}

func (f *fakeSink) Subscribe() <-chan *streaming.Event { return f.events }

func (f *fakeSink) Ack(_ context.Context, evt *streaming.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, evt.ID)
	return nil
}

func (f *fakeSink) Close(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
