// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock ConverseStream API. It splits system from conversational messages,
// encodes tool schemas into Bedrock's ToolConfiguration and translates the
// stream events (text, reasoning, tool_use input fragments, metadata) back
// into model chunks.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/telemetry"
)

const providerName = "bedrock"

type (
	// RuntimeClient is the subset of the Bedrock runtime used by the adapter.
	// Use NewRuntime to wrap a *bedrockruntime.Client.
	RuntimeClient interface {
		ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (StreamOutput, error)
	}

	// StreamOutput is satisfied by *bedrockruntime.ConverseStreamOutput and
	// lets tests supply fake event streams.
	StreamOutput interface {
		GetStream() *bedrockruntime.ConverseStreamEventStream
	}

	// Options configures the Bedrock client adapter.
	Options struct {
		// Runtime provides access to the Bedrock runtime. Required.
		Runtime RuntimeClient
		// DefaultModel is used when model.Request.Model is empty. Required.
		DefaultModel string
		// MaxTokens sets the completion cap when a request does not specify
		// one. When zero Bedrock applies its own default.
		MaxTokens int
		// Temperature is used when a request does not specify one.
		Temperature float32
		// Logger receives non-fatal diagnostics. Defaults to a no-op logger.
		Logger telemetry.Logger
	}

	// Client implements model.Client on top of Bedrock ConverseStream.
	Client struct {
		runtime RuntimeClient
		model   string
		maxTok  int
		temp    float32
		logger  telemetry.Logger
	}

	runtimeAdapter struct {
		c *bedrockruntime.Client
	}
)

var _ model.Client = (*Client)(nil)

// NewRuntime adapts the AWS SDK client to RuntimeClient.
func NewRuntime(c *bedrockruntime.Client) RuntimeClient {
	return runtimeAdapter{c: c}
}

func (r runtimeAdapter) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (StreamOutput, error) {
	out, err := r.c.ConverseStream(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// New builds a Bedrock-backed model client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Client{
		runtime: opts.Runtime,
		model:   opts.DefaultModel,
		maxTok:  opts.MaxTokens,
		temp:    opts.Temperature,
		logger:  logger,
	}, nil
}

// Stream opens a ConverseStream call. Tool names in the returned chunks are
// the canonical names from the request tool definitions.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	input, names, err := c.prepareRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := c.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, wrapBedrockError("converse_stream", err)
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock: converse stream output has no event stream")
	}
	return newStreamer(ctx, stream, names), nil
}

func (c *Client) prepareRequest(ctx context.Context, req *model.Request) (*bedrockruntime.ConverseStreamInput, map[string]string, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, nil, errors.New("bedrock: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}
	toolConfig, canonToProv, provToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}
	messages, system, err := encodeMessages(ctx, req.Messages, canonToProv, c.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return nil, nil, errors.New("bedrock: at least one user or assistant message is required")
	}
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:    aws.String(modelID),
		Messages:   messages,
		ToolConfig: toolConfig,
	}
	if len(system) > 0 {
		input.System = system
	}
	if req.Thinking != nil {
		thinking := map[string]any{"type": "enabled"}
		if req.Thinking.BudgetTokens > 0 {
			thinking["budget_tokens"] = req.Thinking.BudgetTokens
		}
		input.AdditionalModelRequestFields = document.NewLazyDocument(&map[string]any{"thinking": thinking})
	}
	input.InferenceConfig = c.inferenceConfig(req.MaxTokens, req.Temperature)
	return input, provToCanon, nil
}

func (c *Client) inferenceConfig(maxTokens int, temp float32) *brtypes.InferenceConfiguration {
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if temp <= 0 {
		temp = c.temp
	}
	var cfg brtypes.InferenceConfiguration
	if maxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(maxTokens)) //nolint:gosec // AWS SDK requires int32
	}
	if temp > 0 {
		cfg.Temperature = aws.Float32(temp)
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}
	return &cfg
}

// encodeMessages splits system prompts from the conversation and merges
// consecutive messages that map to the same Bedrock role. Tool results are
// sent as user content.
func encodeMessages(ctx context.Context, msgs []*model.Message, names map[string]string, logger telemetry.Logger) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var (
		out    []brtypes.Message
		system []brtypes.SystemContentBlock
	)
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == model.RoleSystem {
			if text := m.Text(); text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: text})
			}
			continue
		}
		role := brtypes.ConversationRoleUser
		switch m.Role {
		case model.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		case model.RoleUser, model.RoleTool:
		default:
			return nil, nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}
		blocks := make([]brtypes.ContentBlock, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch v := p.(type) {
			case model.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case model.ThinkingPart:
				if v.Signature == "" {
					continue
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberReasoningContent{
					Value: &brtypes.ReasoningContentBlockMemberReasoningText{
						Value: brtypes.ReasoningTextBlock{Text: aws.String(v.Text), Signature: aws.String(v.Signature)},
					},
				})
			case model.ToolUsePart:
				name := v.Name
				if prov, ok := names[name]; ok {
					name = prov
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(v.ID),
						Name:      aws.String(name),
						Input:     toDocument(ctx, toolInput(v), logger),
					},
				})
			case model.ToolResultPart:
				res := brtypes.ToolResultBlock{
					ToolUseId: aws.String(v.ToolUseID),
					Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: resultText(v)}},
				}
				if v.IsError {
					res.Status = brtypes.ToolResultStatusError
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: res})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	return out, system, nil
}

// encodeTools builds the tool configuration and the name maps between
// canonical and provider-visible tool names.
func encodeTools(defs []*model.ToolDefinition) (*brtypes.ToolConfiguration, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil, nil
	}
	canonToProv := make(map[string]string, len(defs))
	provToCanon := make(map[string]string, len(defs))
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		prov := SanitizeToolName(def.Name)
		if prev, ok := provToCanon[prov]; ok && prev != def.Name {
			return nil, nil, nil, fmt.Errorf("bedrock: tool name %q sanitizes to %q which collides with %q", def.Name, prov, prev)
		}
		canonToProv[def.Name] = prov
		provToCanon[prov] = def.Name
		schema := def.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		spec := brtypes.ToolSpecification{
			Name:        aws.String(prov),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}
		if def.Description != "" {
			spec.Description = aws.String(def.Description)
		}
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	return &brtypes.ToolConfiguration{Tools: tools}, canonToProv, provToCanon, nil
}

func toolInput(use model.ToolUsePart) any {
	if use.RawInput != "" {
		var v any
		if err := json.Unmarshal([]byte(use.RawInput), &v); err == nil {
			return v
		}
	}
	if use.Input == nil {
		return map[string]any{}
	}
	return use.Input
}

// toDocument round-trips v through JSON so the lazy document only holds
// plain JSON values.
func toDocument(ctx context.Context, v any, logger telemetry.Logger) document.Interface {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn(ctx, "bedrock: tool input is not JSON encodable", "err", err)
		return document.NewLazyDocument(map[string]any{})
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return document.NewLazyDocument(map[string]any{})
	}
	return document.NewLazyDocument(out)
}

func resultText(tr model.ToolResultPart) string {
	var b strings.Builder
	for _, p := range tr.Output {
		if t, ok := p.(model.TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// isRateLimited reports whether err is a throttling signal, either a 429
// response or a throttling error code.
func isRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusTooManyRequests
}

func wrapBedrockError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	pe := &model.ProviderError{Provider: providerName, Operation: op, Kind: model.ProviderErrorKindUnknown, Cause: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
		pe.Message = apiErr.ErrorMessage()
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		pe.HTTPStatus = respErr.HTTPStatusCode()
		pe.Kind = model.KindFromStatus(pe.HTTPStatus)
	}
	if isRateLimited(err) {
		pe.Kind = model.ProviderErrorKindRateLimited
		if pe.HTTPStatus == 0 {
			pe.HTTPStatus = http.StatusTooManyRequests
		}
	}
	return pe
}
