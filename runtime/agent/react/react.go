// Package react provides a reason-act loop usable as the domain logic of a
// runtime.Agent. Each iteration streams one model turn, reporting reasoning
// chunks as they arrive, then executes the requested tool calls and feeds
// their results back to the model. The loop ends when the model answers
// without calling tools. When the iteration budget is exhausted the loop
// asks the model for a summary of the work done so far.
package react

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"goa.design/agentcall/runtime/agent/aggregate"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/runtime"
	"goa.design/agentcall/runtime/agent/telemetry"
	"goa.design/agentcall/runtime/agent/tools"
)

type (
	// Loop is a reason-act loop. Configure it with New and pass Reply to
	// runtime.New.
	Loop struct {
		name        string
		client      model.Client
		tools       *tools.Registry
		model       string
		system      string
		maxIters    int
		maxTokens   int
		temperature float32
		thinking    *model.ThinkingOptions
		summary     string
		logger      telemetry.Logger
	}

	// Options configures a Loop.
	Options struct {
		// Tools lists the tools the model may call.
		Tools *tools.Registry
		// Model is the provider model identifier.
		Model string
		// System is the system prompt prepended to every request.
		System string
		// MaxIterations bounds the number of reasoning turns. Defaults to
		// DefaultMaxIterations.
		MaxIterations int
		// MaxTokens caps completion tokens per turn.
		MaxTokens int
		// Temperature controls sampling.
		Temperature float32
		// Thinking enables provider reasoning output.
		Thinking *model.ThinkingOptions
		// SummaryPrompt is the instruction sent when the iteration budget is
		// exhausted. Defaults to DefaultSummaryPrompt.
		SummaryPrompt string
		// Logger emits structured logs.
		Logger telemetry.Logger
	}

	// Option configures a Loop via New.
	Option func(*Options)
)

const (
	// DefaultMaxIterations is the default reasoning turn budget.
	DefaultMaxIterations = 10

	// DefaultSummaryPrompt asks the model to wrap up.
	DefaultSummaryPrompt = "You have failed to generate a response within the maximum iterations. " +
		"Now respond directly by summarizing the current situation."
)

// WithTools sets the tool registry.
func WithTools(r *tools.Registry) Option { return func(o *Options) { o.Tools = r } }

// WithModel sets the model identifier.
func WithModel(m string) Option { return func(o *Options) { o.Model = m } }

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(s string) Option { return func(o *Options) { o.System = s } }

// WithMaxIterations sets the reasoning turn budget.
func WithMaxIterations(n int) Option { return func(o *Options) { o.MaxIterations = n } }

// WithMaxTokens caps completion tokens per turn.
func WithMaxTokens(n int) Option { return func(o *Options) { o.MaxTokens = n } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option { return func(o *Options) { o.Temperature = t } }

// WithThinking enables provider reasoning with the given token budget.
func WithThinking(budget int) Option {
	return func(o *Options) { o.Thinking = &model.ThinkingOptions{BudgetTokens: budget} }
}

// WithSummaryPrompt overrides DefaultSummaryPrompt.
func WithSummaryPrompt(p string) Option { return func(o *Options) { o.SummaryPrompt = p } }

// WithLogger sets the logger.
func WithLogger(l telemetry.Logger) Option { return func(o *Options) { o.Logger = l } }

// New returns a loop that names its messages after the agent name and sends
// requests to client.
func New(name string, client model.Client, opts ...Option) *Loop {
	var o Options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.SummaryPrompt == "" {
		o.SummaryPrompt = DefaultSummaryPrompt
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	if o.Tools == nil {
		o.Tools = tools.NewRegistry()
	}
	return &Loop{
		name:        name,
		client:      client,
		tools:       o.Tools,
		model:       o.Model,
		system:      o.System,
		maxIters:    o.MaxIterations,
		maxTokens:   o.MaxTokens,
		temperature: o.Temperature,
		thinking:    o.Thinking,
		summary:     o.SummaryPrompt,
		logger:      o.Logger,
	}
}

// Reply implements runtime.ReplyFunc.
func (l *Loop) Reply(ctx context.Context, input []*model.Message, ev runtime.Emitter) (*model.Message, error) {
	if l.client == nil {
		return nil, errors.New("react: model client is required")
	}
	conv := make([]*model.Message, 0, len(input)+1)
	if l.system != "" {
		conv = append(conv, model.NewTextMessage(model.RoleSystem, "system", l.system))
	}
	conv = append(conv, input...)

	var usage model.TokenUsage
	for i := 0; i < l.maxIters; i++ {
		msg, resp, err := l.turn(ctx, conv, l.tools.Definitions(), ev.Reasoning, ev.ReasoningDone)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(resp.Usage)
		conv = append(conv, msg)
		if len(resp.ToolCalls) == 0 {
			return withUsage(msg, usage), nil
		}
		for _, use := range resp.ToolCalls {
			res, err := l.act(ctx, use, ev)
			if err != nil {
				return nil, err
			}
			conv = append(conv, res)
			if hint := failureHint(res); hint != nil {
				if err := ev.Hint(ctx, hint); err != nil {
					return nil, err
				}
				conv = append(conv, hint)
			}
		}
	}

	l.logger.Warn(ctx, "react loop reached max iterations", "agent", l.name, "max_iterations", l.maxIters)
	conv = append(conv, model.NewTextMessage(model.RoleUser, "system", l.summary))
	msg, resp, err := l.turn(ctx, conv, nil, ev.Summary, ev.SummaryDone)
	if err != nil {
		return nil, err
	}
	return withUsage(msg, usage.Add(resp.Usage)), nil
}

// turn streams one model response. chunk receives the growing message after
// every content chunk and done the final message; all share one ID.
func (l *Loop) turn(
	ctx context.Context,
	conv []*model.Message,
	defs []*model.ToolDefinition,
	chunk, done func(context.Context, *model.Message) error,
) (*model.Message, *model.Response, error) {
	req := &model.Request{
		Model:       l.model,
		Messages:    conv,
		Tools:       defs,
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
		Thinking:    l.thinking,
	}
	streamer, err := l.client.Stream(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("react: stream: %w", err)
	}
	id := uuid.NewString()
	var order blockOrder
	resp, err := aggregate.Consume(ctx, streamer, func(ctx context.Context, c *model.Chunk, agg *aggregate.Aggregator) error {
		if !hasContent(c) {
			return nil
		}
		order.observe(agg)
		return chunk(ctx, l.partial(id, agg, order))
	})
	if err != nil {
		return nil, nil, err
	}
	msg := resp.Message(l.name)
	msg.ID = id
	order.arrange(msg.Parts)
	if err := done(ctx, msg); err != nil {
		return nil, nil, err
	}
	return msg, resp, nil
}

// act executes one tool call, reporting progress and the result through ev.
func (l *Loop) act(ctx context.Context, use model.ToolUsePart, ev runtime.Emitter) (*model.Message, error) {
	id := uuid.NewString()
	progress := func(ctx context.Context, partial []model.Part) error {
		msg := toolMessage(id, model.ToolResultPart{ToolUseID: use.ID, Name: use.Name, Output: partial})
		return ev.Acting(ctx, use, msg)
	}
	res, err := l.tools.Execute(ctx, use, progress)
	if err != nil {
		return nil, err
	}
	if res.IsError {
		l.logger.Warn(ctx, "tool call failed", "agent", l.name, "tool", use.Name, "tool_use_id", use.ID)
	}
	msg := toolMessage(id, res)
	if err := ev.ActingDone(ctx, use, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// partial snapshots the aggregator into a message. Blocks appear in the
// order they started streaming so successive snapshots only grow.
func (l *Loop) partial(id string, agg *aggregate.Aggregator, order blockOrder) *model.Message {
	parts := make([]model.Part, 0, len(order))
	for _, k := range order {
		switch k {
		case model.PartKindThinking:
			parts = append(parts, model.ThinkingPart{Text: agg.Thinking()})
		case model.PartKindText:
			parts = append(parts, model.TextPart{Text: agg.Text()})
		}
	}
	return &model.Message{ID: id, Name: l.name, Role: model.RoleAssistant, Parts: parts}
}

// blockOrder lists the streamed block kinds of a turn by first arrival.
type blockOrder []model.PartKind

func (o *blockOrder) observe(agg *aggregate.Aggregator) {
	if agg.Thinking() != "" && !slices.Contains(*o, model.PartKindThinking) {
		*o = append(*o, model.PartKindThinking)
	}
	if agg.Text() != "" && !slices.Contains(*o, model.PartKindText) {
		*o = append(*o, model.PartKindText)
	}
}

// arrange reorders parts in place to follow o. Kinds not in o keep their
// relative order after the streamed blocks.
func (o blockOrder) arrange(parts []model.Part) {
	rank := func(p model.Part) int {
		if i := slices.Index(o, p.Kind()); i >= 0 {
			return i
		}
		return len(o)
	}
	slices.SortStableFunc(parts, func(a, b model.Part) int { return cmp.Compare(rank(a), rank(b)) })
}

func toolMessage(id string, res model.ToolResultPart) *model.Message {
	return &model.Message{ID: id, Name: res.Name, Role: model.RoleTool, Parts: []model.Part{res}}
}

// failureHint returns a hint nudging the model to correct a failed tool
// call, or nil when the call succeeded.
func failureHint(res *model.Message) *model.Message {
	tr, ok := res.Parts[0].(model.ToolResultPart)
	if !ok || !tr.IsError {
		return nil
	}
	text := fmt.Sprintf("The %s tool call failed. Check the error, correct the arguments and try again, or answer without it.", tr.Name)
	return model.NewTextMessage(model.RoleUser, "system", text)
}

func hasContent(c *model.Chunk) bool {
	for _, d := range c.Deltas {
		switch d := d.(type) {
		case model.TextDelta:
			if d.Text != "" {
				return true
			}
		case model.ThinkingDelta:
			if d.Text != "" {
				return true
			}
		}
	}
	return false
}

func withUsage(msg *model.Message, usage model.TokenUsage) *model.Message {
	if msg.Meta == nil {
		msg.Meta = make(map[string]any)
	}
	msg.Meta["usage"] = usage
	return msg
}
