package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/aggregate"
	"goa.design/agentcall/runtime/agent/model"
)

type (
	// testDecoder feeds a fixed sequence of events to the ssestream.Stream.
	testDecoder struct {
		events []ssestream.Event
		i      int
		err    error
	}

	fakeMessages struct {
		events   []string
		captured sdk.MessageNewParams
	}
)

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *testDecoder) Next() bool {
	if d.err != nil {
		return false
	}
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *testDecoder) Close() error { return nil }

func (d *testDecoder) Err() error { return d.err }

func (f *fakeMessages) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	f.captured = body
	return ssestream.NewStream[sdk.MessageStreamEventUnion](decoderFor(f.events), nil)
}

func decoderFor(raw []string) *testDecoder {
	events := make([]ssestream.Event, 0, len(raw))
	for _, r := range raw {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(r), &head); err != nil {
			panic(err)
		}
		events = append(events, ssestream.Event{Type: head.Type, Data: []byte(r)})
	}
	return &testDecoder{events: events}
}

var toolTurn = []string{
	`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":11,"output_tokens":0}}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"need data"}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig"}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Looking "}}`,
	`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"it up"}}`,
	`{"type":"content_block_stop","index":1}`,
	`{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"docs_search","input":{}}}`,
	`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`,
	`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"\"go\"}"}}`,
	`{"type":"content_block_stop","index":2}`,
	`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":7}}`,
	`{"type":"message_stop"}`,
}

func TestStreamAggregatesTextThinkingAndTools(t *testing.T) {
	t.Parallel()
	fake := &fakeMessages{events: toolTurn}
	c, err := New(fake, Options{DefaultModel: "claude-test"})
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), &model.Request{
		Messages: []*model.Message{model.NewTextMessage(model.RoleUser, "user", "find go docs")},
		Tools:    []*model.ToolDefinition{{Name: "docs.search", Description: "Search docs", InputSchema: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)

	resp, err := aggregate.Consume(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "claude-test", resp.Model)
	assert.Equal(t, "Looking it up", resp.Text)
	assert.Equal(t, "need data", resp.Thinking)
	assert.Equal(t, "sig", resp.Signature)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, model.TokenUsage{InputTokens: 11, OutputTokens: 7, TotalTokens: 18}, resp.Usage)
	require.Len(t, resp.ToolCalls, 1)
	call := resp.ToolCalls[0]
	assert.Equal(t, "toolu_1", call.ID)
	assert.Equal(t, "docs.search", call.Name)
	assert.Equal(t, `{"q":"go"}`, call.RawInput)
	assert.Equal(t, map[string]any{"q": "go"}, call.Input)

	require.Len(t, fake.captured.Tools, 1)
	assert.Equal(t, "docs_search", fake.captured.Tools[0].OfTool.Name)
	assert.Equal(t, int64(defaultMaxTokens), fake.captured.MaxTokens)
}

func TestStreamReportsDecoderErrors(t *testing.T) {
	t.Parallel()
	dec := decoderFor(toolTurn[:2])
	dec.err = errors.New("connection reset")
	s := newStreamer(ssestream.NewStream[sdk.MessageStreamEventUnion](dec, nil), nil)
	_, err := s.Recv()
	require.Error(t, err)
	pe, ok := model.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "anthropic", pe.Provider)
	assert.ErrorContains(t, err, "connection reset")
}
