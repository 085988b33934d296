package aggregate

import (
	"strings"

	"goa.design/agentcall/runtime/agent/model"
)

// Aggregator folds the chunks of one streamed response into a
// model.Response. It owns one accumulator per content kind. The zero value is
// ready to use; an Aggregator is not safe for concurrent use and is reused
// across responses by calling Reset.
type Aggregator struct {
	id        string
	modelID   string
	text      strings.Builder
	thinking  strings.Builder
	signature string
	tools     ToolCalls
	usage     model.TokenUsage
	finish    string
	chunks    int
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Append folds chunk into the running state. A nil chunk is a no-op. Text and
// reasoning are concatenated, usage is added, and the response ID, model and
// finish reason keep the latest non-empty value.
func (a *Aggregator) Append(chunk *model.Chunk) {
	if chunk == nil {
		return
	}
	a.chunks++
	if chunk.ID != "" {
		a.id = chunk.ID
	}
	if chunk.Model != "" {
		a.modelID = chunk.Model
	}
	if chunk.FinishReason != "" {
		a.finish = chunk.FinishReason
	}
	if chunk.Usage != nil {
		a.usage = a.usage.Add(*chunk.Usage)
	}
	for _, d := range chunk.Deltas {
		switch d := d.(type) {
		case model.TextDelta:
			a.text.WriteString(d.Text)
		case model.ThinkingDelta:
			a.thinking.WriteString(d.Text)
			if d.Signature != "" {
				a.signature = d.Signature
			}
		case model.ToolCallDelta:
			a.tools.Append(d)
		case nil:
		}
	}
}

// Chunks returns the number of non-nil chunks appended since the last Reset.
func (a *Aggregator) Chunks() int { return a.chunks }

// Text returns the text accumulated so far.
func (a *Aggregator) Text() string { return a.text.String() }

// Thinking returns the reasoning text accumulated so far.
func (a *Aggregator) Thinking() string { return a.thinking.String() }

// Finalize returns the complete response. It may be called more than once;
// each call materializes the state accumulated so far.
func (a *Aggregator) Finalize() *model.Response {
	return &model.Response{
		ID:           a.id,
		Model:        a.modelID,
		Text:         a.text.String(),
		Thinking:     a.thinking.String(),
		Signature:    a.signature,
		ToolCalls:    a.tools.Finalize(),
		Usage:        a.usage,
		FinishReason: a.finish,
	}
}

// Reset clears all state so the Aggregator can fold another response.
func (a *Aggregator) Reset() {
	a.id = ""
	a.modelID = ""
	a.text.Reset()
	a.thinking.Reset()
	a.signature = ""
	a.tools.Reset()
	a.usage = model.TokenUsage{}
	a.finish = ""
	a.chunks = 0
}
