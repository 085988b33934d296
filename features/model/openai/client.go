// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API. It translates requests into streaming ChatCompletion
// calls using github.com/openai/openai-go and maps stream chunks (content,
// indexed tool call fragments, usage) back into model chunks.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	// ChatClient captures the subset of the OpenAI SDK used by the adapter. It
	// is satisfied by *sdk.ChatCompletionService.
	ChatClient interface {
		NewStreaming(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk]
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// Client is the chat completions client. Required.
		Client ChatClient
		// DefaultModel is used when model.Request.Model is empty. Required.
		DefaultModel string
	}

	// Client implements model.Client via the OpenAI Chat Completions API.
	Client struct {
		chat  ChatClient
		model string
	}

	streamer struct {
		stream *ssestream.Stream[sdk.ChatCompletionChunk]
		done   bool
	}
)

const providerName = "openai"

var _ model.Client = (*Client)(nil)

// New builds an OpenAI-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model is required")
	}
	return &Client{chat: opts.Client, model: opts.DefaultModel}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	oc := sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return New(Options{Client: &oc.Chat.Completions, DefaultModel: defaultModel})
}

// Stream opens a streaming chat completion.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, providerError("chat.completions.stream", err)
	}
	return &streamer{stream: stream}, nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.ChatCompletionNewParams, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
		StreamOptions: sdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: sdk.Bool(true),
		},
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	return &params, nil
}

func encodeMessages(msgs []*model.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case model.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Text()))
		case model.RoleUser:
			out = append(out, sdk.UserMessage(m.Text()))
		case model.RoleAssistant:
			out = append(out, encodeAssistant(m))
		case model.RoleTool:
			for _, p := range m.Parts {
				if tr, ok := p.(model.ToolResultPart); ok {
					out = append(out, sdk.ToolMessage(toolResultText(tr), tr.ToolUseID))
				}
			}
		default:
			return nil, errors.New("openai: unsupported message role " + string(m.Role))
		}
	}
	return out, nil
}

// encodeAssistant replays assistant text and tool calls. Reasoning is not
// accepted back by the Chat Completions API.
func encodeAssistant(m *model.Message) sdk.ChatCompletionMessageParamUnion {
	var asst sdk.ChatCompletionAssistantMessageParam
	if text := m.Text(); text != "" {
		asst.Content.OfString = sdk.String(text)
	}
	for _, use := range m.ToolUses() {
		args := use.RawInput
		if args == "" {
			raw, err := json.Marshal(use.Input)
			if err != nil {
				raw = []byte("{}")
			}
			args = string(raw)
		}
		asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallParam{
			ID: use.ID,
			Function: sdk.ChatCompletionMessageToolCallFunctionParam{
				Name:      use.Name,
				Arguments: args,
			},
		})
	}
	return sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

func encodeTools(defs []*model.ToolDefinition) []sdk.ChatCompletionToolParam {
	tools := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		fn := shared.FunctionDefinitionParam{
			Name:       def.Name,
			Parameters: shared.FunctionParameters(def.InputSchema),
		}
		if def.Description != "" {
			fn.Description = sdk.String(def.Description)
		}
		tools = append(tools, sdk.ChatCompletionToolParam{Function: fn})
	}
	return tools
}

func toolResultText(tr model.ToolResultPart) string {
	var b strings.Builder
	for _, p := range tr.Output {
		if t, ok := p.(model.TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func (s *streamer) Recv() (*model.Chunk, error) {
	if s.done {
		return nil, io.EOF
	}
	if !s.stream.Next() {
		s.done = true
		if err := s.stream.Err(); err != nil {
			return nil, providerError("chat.completions.stream", err)
		}
		return nil, io.EOF
	}
	return translateChunk(s.stream.Current()), nil
}

func (s *streamer) Close() error {
	return s.stream.Close()
}

// translateChunk maps a completion chunk to a model chunk. Only the first
// choice is used. Tool call fragments keep their provider index.
func translateChunk(c sdk.ChatCompletionChunk) *model.Chunk {
	out := &model.Chunk{ID: c.ID, Model: c.Model}
	if c.Usage.TotalTokens > 0 {
		out.Usage = &model.TokenUsage{
			InputTokens:     int(c.Usage.PromptTokens),
			OutputTokens:    int(c.Usage.CompletionTokens),
			TotalTokens:     int(c.Usage.TotalTokens),
			CacheReadTokens: int(c.Usage.PromptTokensDetails.CachedTokens),
		}
	}
	if len(c.Choices) == 0 {
		return out
	}
	choice := c.Choices[0]
	out.FinishReason = choice.FinishReason
	if choice.Delta.Content != "" {
		out.Deltas = append(out.Deltas, model.TextDelta{Text: choice.Delta.Content})
	}
	for _, tc := range choice.Delta.ToolCalls {
		d := model.ToolCallDelta{
			Index: model.Int(int(tc.Index)),
			ID:    tc.ID,
			Name:  tc.Function.Name,
		}
		if tc.Function.Arguments != "" {
			d.Arguments = model.String(tc.Function.Arguments)
		}
		out.Deltas = append(out.Deltas, d)
	}
	return out
}

// providerError wraps SDK failures into a model.ProviderError.
func providerError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	pe := &model.ProviderError{Provider: providerName, Operation: op, Kind: model.ProviderErrorKindUnknown, Cause: err}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		pe.HTTPStatus = apiErr.StatusCode
		pe.Kind = model.KindFromStatus(apiErr.StatusCode)
		pe.Code = apiErr.Code
		pe.Message = apiErr.Message
	}
	return pe
}
