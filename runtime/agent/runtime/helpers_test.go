package runtime

import (
	"context"
	"sync"
	"time"

	"goa.design/agentcall/runtime/agent/model"
)

// journal records events in order across goroutines.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// recordingObserver records the messages it observes.
type recordingObserver struct {
	mu   sync.Mutex
	msgs []*model.Message
	err  error
}

func (o *recordingObserver) Observe(_ context.Context, msg *model.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return o.err
}

func (o *recordingObserver) texts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.msgs))
	for i, m := range o.msgs {
		out[i] = m.Text()
	}
	return out
}

// fakeMetrics counts metric names.
type fakeMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	timers   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counters: map[string]float64{}, timers: map[string]int{}}
}

func (m *fakeMetrics) IncCounter(name string, v float64, _ ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}

func (m *fakeMetrics) RecordTimer(name string, _ time.Duration, _ ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[name]++
}

func (m *fakeMetrics) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func echo(prefix string) ReplyFunc {
	return func(_ context.Context, input []*model.Message, _ Emitter) (*model.Message, error) {
		text := prefix
		for _, m := range input {
			text += m.Text()
		}
		return model.NewTextMessage(model.RoleAssistant, "", text), nil
	}
}

func userMsg(text string) *model.Message {
	return model.NewTextMessage(model.RoleUser, "user", text)
}

// blockingReply signals started and blocks until its context is cancelled.
func blockingReply(started chan<- struct{}) ReplyFunc {
	return func(ctx context.Context, _ []*model.Message, _ Emitter) (*model.Message, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
