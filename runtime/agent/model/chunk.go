package model

type (
	// Chunk is one partial response record produced by a Streamer. Every field
	// is optional: providers send identifiers, deltas, usage and finish reasons
	// in whatever combination their wire protocol dictates.
	Chunk struct {
		// ID is the provider response identifier when present.
		ID string
		// Model is the model identifier when reported.
		Model string
		// Deltas holds the content fragments carried by this chunk.
		Deltas []Delta
		// Usage is the token usage delta carried by this chunk.
		Usage *TokenUsage
		// FinishReason is set on the chunk that terminates generation.
		FinishReason string
	}

	// Delta is a content fragment. Implementations are TextDelta,
	// ThinkingDelta and ToolCallDelta.
	Delta interface {
		isDelta()
	}

	// TextDelta is a fragment of assistant text.
	TextDelta struct {
		Text string
	}

	// ThinkingDelta is a fragment of reasoning text and/or its signature.
	ThinkingDelta struct {
		Text      string
		Signature string
	}

	// ToolCallDelta is a fragment of one tool call addressed by index. ID and
	// Name are typically sent once; empty means not present in this fragment.
	// Arguments is nil when the fragment carries no argument write; a non-nil
	// empty string is a write. A nil Index addresses slot 0.
	ToolCallDelta struct {
		Index     *int
		ID        string
		Name      string
		Arguments *string
	}
)

func (TextDelta) isDelta()     {}
func (ThinkingDelta) isDelta() {}
func (ToolCallDelta) isDelta() {}

// Slot returns the accumulator index addressed by the delta.
func (d ToolCallDelta) Slot() int {
	if d.Index == nil {
		return 0
	}
	return *d.Index
}

// Int returns a pointer to v. It is a convenience for building ToolCallDelta
// values.
func Int(v int) *int { return &v }

// String returns a pointer to v. It is a convenience for building
// ToolCallDelta values.
func String(v string) *string { return &v }
