package openai

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/aggregate"
	"goa.design/agentcall/runtime/agent/model"
)

type (
	testDecoder struct {
		events []ssestream.Event
		i      int
		err    error
	}

	fakeChat struct {
		chunks   []string
		err      error
		captured sdk.ChatCompletionNewParams
	}
)

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *testDecoder) Next() bool {
	if d.err != nil || d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *testDecoder) Close() error { return nil }

func (d *testDecoder) Err() error { return d.err }

func (f *fakeChat) NewStreaming(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk] {
	f.captured = body
	dec := &testDecoder{err: f.err}
	for _, c := range f.chunks {
		dec.events = append(dec.events, ssestream.Event{Data: []byte(c)})
	}
	return ssestream.NewStream[sdk.ChatCompletionChunk](dec, nil)
}

var toolTurn = []string{
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "},"finish_reason":null}]}`,
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"look."},"finish_reason":null}]}`,
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search","arguments":""}}]},"finish_reason":null}]}`,
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]},"finish_reason":null}]}`,
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]},"finish_reason":null}]}`,
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":4,"total_tokens":13}}`,
}

func TestNewValidatesOptions(t *testing.T) {
	t.Parallel()
	_, err := New(Options{DefaultModel: "gpt-4o"})
	require.ErrorContains(t, err, "client is required")
	_, err = New(Options{Client: &fakeChat{}})
	require.ErrorContains(t, err, "default model is required")
	_, err = NewFromAPIKey("", "gpt-4o")
	require.ErrorContains(t, err, "api key is required")
}

func TestStreamAggregatesToolTurn(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{chunks: toolTurn}
	c, err := New(Options{Client: chat, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), &model.Request{
		Messages:  []*model.Message{model.NewTextMessage(model.RoleUser, "", "find go")},
		Tools:     []*model.ToolDefinition{{Name: "search", Description: "web search", InputSchema: map[string]any{"type": "object"}}},
		MaxTokens: 256,
	})
	require.NoError(t, err)

	resp, err := aggregate.Consume(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, "Let me look.", resp.Text)
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, model.TokenUsage{InputTokens: 9, OutputTokens: 4, TotalTokens: 13}, resp.Usage)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "search", resp.ToolCalls[0].Name)
	assert.Equal(t, `{"q":"go"}`, resp.ToolCalls[0].RawInput)

	assert.EqualValues(t, "gpt-4o", chat.captured.Model)
	require.Len(t, chat.captured.Tools, 1)
	assert.Equal(t, "search", chat.captured.Tools[0].Function.Name)
	assert.Equal(t, int64(256), chat.captured.MaxCompletionTokens.Value)
	assert.True(t, chat.captured.StreamOptions.IncludeUsage.Value)
}

func TestStreamDecoderErrorIsProviderError(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{chunks: toolTurn[:1], err: errors.New("connection reset")}
	c, err := New(Options{Client: chat, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), &model.Request{
		Messages: []*model.Message{model.NewTextMessage(model.RoleUser, "", "hi")},
	})
	if err == nil {
		_, err = s.Recv()
	}
	pe, ok := model.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, model.ProviderErrorKindUnknown, pe.Kind)
}

func TestEncodeMessagesReplaysToolTurns(t *testing.T) {
	t.Parallel()
	msgs := []*model.Message{
		model.NewTextMessage(model.RoleSystem, "", "be brief"),
		model.NewTextMessage(model.RoleUser, "", "find go"),
		model.NewMessage(model.RoleAssistant, "bot",
			model.ThinkingPart{Text: "dropped"},
			model.ToolUsePart{ID: "call_1", Name: "search", Input: map[string]any{"q": "go"}},
		),
		model.NewMessage(model.RoleTool, "search",
			model.ToolResultPart{ToolUseID: "call_1", Output: []model.Part{model.TextPart{Text: "1 hit"}}},
		),
	}
	out, err := encodeMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.NotNil(t, out[0].OfSystem)
	require.NotNil(t, out[1].OfUser)
	require.NotNil(t, out[2].OfAssistant)
	require.Len(t, out[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, `{"q":"go"}`, out[2].OfAssistant.ToolCalls[0].Function.Arguments)
	assert.False(t, out[2].OfAssistant.Content.OfString.Valid())
	require.NotNil(t, out[3].OfTool)
	assert.Equal(t, "call_1", out[3].OfTool.ToolCallID)
	assert.Equal(t, "1 hit", out[3].OfTool.Content.OfString.Value)

	_, err = encodeMessages([]*model.Message{{Role: "narrator"}})
	require.ErrorContains(t, err, "unsupported message role")
}
