// Package pulse wraps goa.design/pulse streams behind the narrow interfaces
// used by the agent event sink and subscriber. Stream handles are opened once
// per name and reused for every published event.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

type (
	// Options configures the Pulse client.
	Options struct {
		// Redis backs the Pulse streams. Required.
		Redis *redis.Client
		// MaxLen bounds the entries kept per stream. Zero keeps the Pulse default.
		MaxLen int
		// Timeout bounds each Add. Zero means no timeout.
		Timeout time.Duration
		// CloseRedis makes Close close the Redis connection.
		CloseRedis bool
	}

	// Client opens Pulse streams.
	Client interface {
		// Stream returns the handle of the named stream.
		Stream(name string) (Stream, error)
		// Close releases the cached handles.
		Close(ctx context.Context) error
	}

	// Stream publishes events and opens consumer groups.
	Stream interface {
		// Add publishes payload under the event name and returns the Redis
		// entry ID.
		Add(ctx context.Context, event string, payload []byte) (string, error)
		// NewSink opens the named consumer group.
		NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (Sink, error)
	}

	// Sink is a Pulse consumer group.
	Sink interface {
		Subscribe() <-chan *streaming.Event
		Ack(ctx context.Context, evt *streaming.Event) error
		Close(ctx context.Context)
	}

	client struct {
		redis   *redis.Client
		opts    []streamopts.Stream
		timeout time.Duration
		close   bool

		mu      sync.Mutex
		streams map[string]*handle
	}

	handle struct {
		stream  *streaming.Stream
		timeout time.Duration
	}

	consumer struct {
		*streaming.Sink
	}
)

// New returns a Client publishing through opts.Redis.
func New(opts Options) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	c := &client{
		redis:   opts.Redis,
		timeout: opts.Timeout,
		close:   opts.CloseRedis,
		streams: make(map[string]*handle),
	}
	if opts.MaxLen > 0 {
		c.opts = append(c.opts, streamopts.WithStreamMaxLen(opts.MaxLen))
	}
	return c, nil
}

func (c *client) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("stream name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.streams[name]; ok {
		return h, nil
	}
	s, err := streaming.NewStream(name, c.redis, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("create pulse stream %q: %w", name, err)
	}
	h := &handle{stream: s, timeout: c.timeout}
	c.streams[name] = h
	return h, nil
}

func (c *client) Close(context.Context) error {
	c.mu.Lock()
	clear(c.streams)
	c.mu.Unlock()
	if c.close {
		return c.redis.Close()
	}
	return nil
}

func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if event == "" {
		return "", errors.New("event name is required")
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	id, err := h.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("pulse add: %w", err)
	}
	return id, nil
}

func (h *handle) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (Sink, error) {
	s, err := h.stream.NewSink(ctx, name, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse sink %q: %w", name, err)
	}
	return consumer{Sink: s}, nil
}

// Close drops the error-free return of streaming.Sink.Close.
func (c consumer) Close(ctx context.Context) {
	c.Sink.Close(ctx)
}
