package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/stream"
)

// chunkingReply emits one reasoning message in three growing chunks.
func chunkingReply(ctx context.Context, _ []*model.Message, ev Emitter) (*model.Message, error) {
	msg := &model.Message{ID: "r1", Role: model.RoleAssistant}
	for _, text := range []string{"a", "b"} {
		msg.Parts = append(msg.Parts, model.TextPart{Text: text})
		if err := ev.Reasoning(ctx, msg.Clone()); err != nil {
			return nil, err
		}
	}
	msg.Parts = append(msg.Parts, model.TextPart{Text: "c"})
	if err := ev.ReasoningDone(ctx, msg.Clone()); err != nil {
		return nil, err
	}
	return msg, nil
}

func TestStreamIncremental(t *testing.T) {
	t.Parallel()

	a := New("assistant", chunkingReply)
	events, err := a.Stream(context.Background(), stream.Options{Incremental: true, IncludeFinalResult: true}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, []model.Part{model.TextPart{Text: "a"}}, events[0].Message.Parts)
	assert.Equal(t, []model.Part{model.TextPart{Text: "b"}}, events[1].Message.Parts)
	assert.Equal(t, []model.Part{model.TextPart{Text: "c"}}, events[2].Message.Parts)
	assert.Equal(t, []bool{false, false, true}, []bool{events[0].Final, events[1].Final, events[2].Final})
	assert.Equal(t, stream.KindAgentResult, events[3].Kind)
	assert.Equal(t, "abc", events[3].Message.Text())
	assert.Equal(t, "r1", events[3].Message.Meta[stream.ResultOfMetaKey])
	assertFinalLast(t, events)
	assert.Zero(t, a.pipeline.Len(), "stream adapter must be removed after the call")
}

func TestStreamCumulativeFinalResultKeepsFinalUnique(t *testing.T) {
	t.Parallel()

	a := New("assistant", chunkingReply)
	events, err := a.Stream(context.Background(), stream.Options{IncludeFinalResult: true}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 4)
	assertFinalLast(t, events)
}

// assertFinalLast checks that every message ID has at most one final event
// and that it is the last event carrying the ID.
func assertFinalLast(t *testing.T, events []stream.Event) {
	t.Helper()
	finalized := map[string]bool{}
	for i, ev := range events {
		id := ev.Message.ID
		require.False(t, finalized[id], "event %d reuses finalized message %s", i, id)
		if ev.Final {
			finalized[id] = true
		}
	}
}

// stallingReply emits one reasoning chunk and reports when the emitter
// returned.
func stallingReply(returned chan<- error) ReplyFunc {
	return func(ctx context.Context, _ []*model.Message, ev Emitter) (*model.Message, error) {
		err := ev.Reasoning(ctx, model.NewTextMessage(model.RoleAssistant, "assistant", "late"))
		returned <- err
		return nil, err
	}
}

func TestStreamDropsEventsOfAbandonedReply(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	returned := make(chan error, 1)
	a := New("assistant", stallingReply(returned))
	_, err := a.RegisterHook(hooks.ReasoningChunkFunc(func(context.Context, *hooks.ReasoningEvent) error {
		close(entered)
		<-release
		return nil
	}))
	require.NoError(t, err)
	go func() {
		<-entered
		a.Interrupt()
	}()

	r := a.Stream(context.Background(), stream.Options{Kinds: []stream.Kind{stream.KindAll}, IncludeFinalResult: true})
	var events []stream.Event
	for {
		ev, ok, err := r.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		events = append(events, ev)
	}

	close(release)
	select {
	case <-returned:
	case <-time.After(time.Second):
		require.FailNow(t, "reply did not return")
	}
	_, ok, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, events, 1)
	assert.Equal(t, stream.KindAgentResult, events[0].Kind)
	assert.Equal(t, RecoveryText, events[0].Message.Text())
}

func TestStreamToSharedSinkAfterInterrupt(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	returned := make(chan error, 1)
	a := New("assistant", stallingReply(returned))
	_, err := a.RegisterHook(hooks.ReasoningChunkFunc(func(context.Context, *hooks.ReasoningEvent) error {
		close(entered)
		<-release
		return nil
	}))
	require.NoError(t, err)
	go func() {
		<-entered
		a.Interrupt()
	}()

	sink := &eventSink{}
	out, err := a.StreamTo(context.Background(), stream.Options{IncludeFinalResult: true}, sink)
	require.NoError(t, err)
	assert.Equal(t, RecoveryText, out.Text())

	close(release)
	select {
	case <-returned:
	case <-time.After(time.Second):
		require.FailNow(t, "reply did not return")
	}
	got := sink.list()
	require.Len(t, got, 1)
	assert.Equal(t, stream.KindAgentResult, got[0].Kind)
}

func TestStreamCumulativeWithoutFinalResult(t *testing.T) {
	t.Parallel()

	a := New("assistant", chunkingReply)
	events, err := a.Stream(context.Background(), stream.DefaultOptions()).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "abc", events[2].Message.Text())
	for _, ev := range events {
		assert.Equal(t, stream.KindReasoning, ev.Kind)
	}
}

func TestStreamRemovesAdapterOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	a := New("assistant", func(context.Context, []*model.Message, Emitter) (*model.Message, error) {
		return nil, boom
	})
	_, err := a.Stream(context.Background(), stream.DefaultOptions()).Collect(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, a.pipeline.Len())
}

func TestStreamInterruptedYieldsRecoveryResult(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	a := New("assistant", blockingReply(started))
	go func() {
		<-started
		a.Interrupt()
	}()
	events, err := a.Stream(context.Background(), stream.Options{IncludeFinalResult: true}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stream.KindAgentResult, events[0].Kind)
	assert.Equal(t, RecoveryText, events[0].Message.Text())
	assert.Zero(t, a.pipeline.Len())
}

// eventSink records the events it receives.
type eventSink struct {
	mu     sync.Mutex
	events []stream.Event
}

func (s *eventSink) Send(_ context.Context, ev stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) Close(context.Context) error { return nil }

func (s *eventSink) list() []stream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stream.Event(nil), s.events...)
}
