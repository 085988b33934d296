package aggregate

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/model"
)

type fakeStreamer struct {
	chunks []*model.Chunk
	err    error
	closed bool
}

func (f *fakeStreamer) Recv() (*model.Chunk, error) {
	if len(f.chunks) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	c := f.chunks[0]
	f.chunks = f.chunks[1:]
	return c, nil
}

func (f *fakeStreamer) Close() error {
	f.closed = true
	return nil
}

func TestAggregatorFoldsChunks(t *testing.T) {
	t.Parallel()

	agg := New()
	agg.Append(nil)
	agg.Append(&model.Chunk{ID: "resp-1", Model: "m", Deltas: []model.Delta{model.ThinkingDelta{Text: "let me "}}})
	agg.Append(&model.Chunk{Deltas: []model.Delta{
		model.ThinkingDelta{Text: "think", Signature: "sig"},
		model.TextDelta{Text: "Hel"},
	}, Usage: &model.TokenUsage{InputTokens: 10}})
	agg.Append(&model.Chunk{Deltas: []model.Delta{
		model.TextDelta{Text: "lo"},
		model.ToolCallDelta{Index: model.Int(1), ID: "b", Name: "beta", Arguments: model.String(`{}`)},
		model.ToolCallDelta{Index: model.Int(0), ID: "a", Name: "alpha"},
	}, Usage: &model.TokenUsage{OutputTokens: 5}})
	agg.Append(&model.Chunk{
		ID:           "resp-2",
		Deltas:       []model.Delta{model.ToolCallDelta{Index: model.Int(0), Arguments: model.String(`{"x":1}`)}},
		Usage:        &model.TokenUsage{OutputTokens: 2, TotalTokens: 17},
		FinishReason: "tool_use",
	})
	agg.Append(&model.Chunk{})

	assert.Equal(t, 5, agg.Chunks())
	assert.Equal(t, "Hello", agg.Text())
	assert.Equal(t, "let me think", agg.Thinking())

	resp := agg.Finalize()
	assert.Equal(t, "resp-2", resp.ID)
	assert.Equal(t, "m", resp.Model)
	assert.Equal(t, "Hello", resp.Text)
	assert.Equal(t, "let me think", resp.Thinking)
	assert.Equal(t, "sig", resp.Signature)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, model.TokenUsage{InputTokens: 10, OutputTokens: 7, TotalTokens: 17}, resp.Usage)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "a", resp.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"x": float64(1)}, resp.ToolCalls[0].Input)
	assert.Equal(t, "b", resp.ToolCalls[1].ID)

	agg.Reset()
	assert.Equal(t, &model.Response{}, agg.Finalize())
	assert.Zero(t, agg.Chunks())
}

func TestConsume(t *testing.T) {
	t.Parallel()

	t.Run("drains and closes", func(t *testing.T) {
		t.Parallel()
		s := &fakeStreamer{chunks: []*model.Chunk{
			{Deltas: []model.Delta{model.TextDelta{Text: "a"}}},
			nil,
			{Deltas: []model.Delta{model.TextDelta{Text: "b"}}, FinishReason: "stop"},
		}}
		var seen []string
		resp, err := Consume(context.Background(), s, func(_ context.Context, _ *model.Chunk, agg *Aggregator) error {
			seen = append(seen, agg.Text())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ab", resp.Text)
		assert.Equal(t, "stop", resp.FinishReason)
		assert.Equal(t, []string{"a", "ab"}, seen)
		assert.True(t, s.closed)
	})

	t.Run("propagates stream errors", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		s := &fakeStreamer{err: boom}
		_, err := Consume(context.Background(), s, nil)
		require.ErrorIs(t, err, boom)
		assert.True(t, s.closed)
	})

	t.Run("observer errors stop consumption", func(t *testing.T) {
		t.Parallel()
		stop := errors.New("stop")
		s := &fakeStreamer{chunks: []*model.Chunk{{}, {}}}
		_, err := Consume(context.Background(), s, func(context.Context, *model.Chunk, *Aggregator) error {
			return stop
		})
		require.ErrorIs(t, err, stop)
		assert.Len(t, s.chunks, 1)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := &fakeStreamer{chunks: []*model.Chunk{{}}}
		_, err := Consume(ctx, s, nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.True(t, s.closed)
	})

	t.Run("rejects nil streamer", func(t *testing.T) {
		t.Parallel()
		_, err := Consume(context.Background(), nil, nil)
		require.Error(t, err)
	})
}
