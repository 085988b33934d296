package stream

import (
	"context"
	"errors"
	"sync"
)

type (
	// Reader is a pull-based event stream fed by a producer goroutine. The
	// producer receives a Sink; events it sends are delivered to Next in
	// order. Callers must call Close when done unless Next reported the end
	// of the stream.
	Reader struct {
		// ch is never closed: a sender holding a stale sink must not panic.
		ch chan Event
		// ended is closed once the producer returned.
		ended  chan struct{}
		done   chan struct{}
		cancel context.CancelFunc

		once sync.Once
		mu   sync.Mutex
		err  error
	}

	// readerSink is the Sink handed to the producer.
	readerSink struct {
		r   *Reader
		ctx context.Context
	}

	// Producer emits events into sink and returns when the stream ends.
	Producer func(ctx context.Context, sink Sink) error
)

// ErrClosed is returned by the reader sink after the reader was closed.
var ErrClosed = errors.New("stream: closed")

// NewReader starts produce in a goroutine and returns the reader consuming
// its events. The producer context is cancelled by Close.
func NewReader(ctx context.Context, produce Producer) *Reader {
	ctx, cancel := context.WithCancel(ctx)
	r := &Reader{
		ch:     make(chan Event, 1),
		ended:  make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		err := produce(ctx, &readerSink{r: r, ctx: ctx})
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.ended)
	}()
	return r
}

// Next returns the next event. ok is false once the producer returned; err
// then holds the producer error, if any. Next returns ctx.Err() when ctx is
// done first.
func (r *Reader) Next(ctx context.Context) (ev Event, ok bool, err error) {
	select {
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	case ev := <-r.ch:
		return ev, true, nil
	case <-r.ended:
		// Events sent before the producer returned are still delivered.
		select {
		case ev := <-r.ch:
			return ev, true, nil
		default:
			return Event{}, false, r.Err()
		}
	}
}

// Collect drains the reader and returns all events.
func (r *Reader) Collect(ctx context.Context) ([]Event, error) {
	defer r.Close()
	var events []Event
	for {
		ev, ok, err := r.Next(ctx)
		if err != nil {
			return events, err
		}
		if !ok {
			return events, nil
		}
		events = append(events, ev)
	}
}

// Err returns the producer error once the stream ended.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close stops the producer and releases the reader. Close is idempotent.
func (r *Reader) Close() {
	r.once.Do(func() {
		close(r.done)
		r.cancel()
	})
}

// Send delivers ev to the reader, blocking until it is consumed, the reader
// is closed or ctx is done. Send returns ErrClosed once the stream ended.
func (s *readerSink) Send(ctx context.Context, ev Event) error {
	select {
	case <-s.r.done:
		return ErrClosed
	case <-s.r.ended:
		return ErrClosed
	default:
	}
	select {
	case s.r.ch <- ev:
		return nil
	case <-s.r.done:
		return ErrClosed
	case <-s.r.ended:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Close is a no-op: the reader ends when the producer returns.
func (s *readerSink) Close(context.Context) error { return nil }
