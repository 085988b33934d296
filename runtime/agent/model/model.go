// Package model defines the provider-agnostic message, content and streaming
// types shared by the agent runtime and the model adapters. Messages carry an
// ordered list of content parts; streamed responses are delivered as Chunk
// values that carry indexed deltas which the aggregate package folds back into
// a complete Response.
package model

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type (
	// Client is implemented by model adapters (OpenAI, Anthropic, Bedrock). It
	// opens a streaming completion for the given request. Clients must be safe
	// for concurrent use.
	Client interface {
		// Stream sends the request to the provider and returns a Streamer that
		// yields partial response chunks until io.EOF. Callers must Close the
		// returned Streamer.
		Stream(ctx context.Context, req *Request) (Streamer, error)
	}

	// Streamer delivers partial model output. Successive calls to Recv return
	// chunks until io.EOF. Streamers are consumed from a single goroutine.
	Streamer interface {
		// Recv returns the next chunk from the stream.
		Recv() (*Chunk, error)
		// Close releases the underlying provider stream.
		Close() error
	}

	// Request captures the normalized parameters for one model invocation.
	Request struct {
		// Model is the provider-specific model identifier.
		Model string
		// Messages is the ordered conversation sent to the model, system
		// messages included.
		Messages []*Message
		// Tools lists the tools the model may call. Empty disables tool use.
		Tools []*ToolDefinition
		// MaxTokens caps completion tokens. Zero selects the provider default.
		MaxTokens int
		// Temperature controls sampling. Zero leaves the provider default.
		Temperature float32
		// Thinking enables provider reasoning modes when non-nil.
		Thinking *ThinkingOptions
	}

	// ThinkingOptions configures provider reasoning ("thinking") output.
	ThinkingOptions struct {
		// BudgetTokens caps the tokens the provider may spend reasoning.
		BudgetTokens int
	}

	// ToolDefinition describes a tool exposed to the model.
	ToolDefinition struct {
		// Name is the tool identifier the model uses in tool calls.
		Name string
		// Description is shown to the model to explain when to call the tool.
		Description string
		// InputSchema is the JSON schema of the tool arguments.
		InputSchema map[string]any
	}

	// Response is the complete result of one streamed model turn as produced
	// by the aggregate package.
	Response struct {
		// ID is the provider response identifier (last non-empty value seen).
		ID string
		// Model is the model that produced the response when reported.
		Model string
		// Text is the concatenated assistant text.
		Text string
		// Thinking is the concatenated reasoning text.
		Thinking string
		// Signature is the provider signature attached to the reasoning, if any.
		Signature string
		// ToolCalls lists the complete tool calls in ascending index order.
		ToolCalls []ToolUsePart
		// Usage is the additive sum of all usage deltas.
		Usage TokenUsage
		// FinishReason is the last non-empty finish reason reported.
		FinishReason string
	}

	// TokenUsage tracks token counts reported by providers.
	TokenUsage struct {
		InputTokens      int `json:"input_tokens,omitempty"`
		OutputTokens     int `json:"output_tokens,omitempty"`
		TotalTokens      int `json:"total_tokens,omitempty"`
		CacheReadTokens  int `json:"cache_read_tokens,omitempty"`
		CacheWriteTokens int `json:"cache_write_tokens,omitempty"`
	}
)

// ErrRateLimited is returned (possibly wrapped) by clients when the provider
// throttles the request.
var ErrRateLimited = errors.New("model: rate limited")

// Add returns the field-wise sum of u and other.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
	}
}

// Message builds the assistant message carrying the response content. Parts
// are ordered thinking, text, then tool calls. Empty sections are omitted.
func (r *Response) Message(name string) *Message {
	var parts []Part
	if r.Thinking != "" || r.Signature != "" {
		parts = append(parts, ThinkingPart{Text: r.Thinking, Signature: r.Signature})
	}
	if r.Text != "" {
		parts = append(parts, TextPart{Text: r.Text})
	}
	for _, tc := range r.ToolCalls {
		parts = append(parts, tc)
	}
	msg := NewMessage(RoleAssistant, name, parts...)
	if r.FinishReason != "" {
		msg.Meta = map[string]any{"finish_reason": r.FinishReason}
	}
	return msg
}

// NewMessage returns a message with a fresh identifier.
func NewMessage(role ConversationRole, name string, parts ...Part) *Message {
	return &Message{
		ID:    uuid.NewString(),
		Name:  name,
		Role:  role,
		Parts: parts,
	}
}

// NewTextMessage returns a message holding a single text part.
func NewTextMessage(role ConversationRole, name, text string) *Message {
	return NewMessage(role, name, TextPart{Text: text})
}

// Text returns the concatenation of all text parts of the message.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ToolUses returns the tool call parts of the message in order.
func (m *Message) ToolUses() []ToolUsePart {
	if m == nil {
		return nil
	}
	var uses []ToolUsePart
	for _, p := range m.Parts {
		if u, ok := p.(ToolUsePart); ok {
			uses = append(uses, u)
		}
	}
	return uses
}

// Clone returns a copy of m whose Parts slice and Meta map may be modified
// without affecting m. Parts themselves are values and are not deep-copied.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Parts != nil {
		c.Parts = append([]Part(nil), m.Parts...)
	}
	if m.Meta != nil {
		c.Meta = make(map[string]any, len(m.Meta))
		for k, v := range m.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}
