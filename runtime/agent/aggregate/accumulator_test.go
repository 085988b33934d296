package aggregate

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/model"
)

func TestToolCallsFinalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		deltas []model.ToolCallDelta
		want   []model.ToolUsePart
	}{
		{
			name: "single call without index",
			deltas: []model.ToolCallDelta{
				{ID: "call-1", Name: "search"},
				{Arguments: model.String(`{"q":`)},
				{Arguments: model.String(`"go"}`)},
			},
			want: []model.ToolUsePart{
				{ID: "call-1", Name: "search", RawInput: `{"q":"go"}`, Input: map[string]any{"q": "go"}},
			},
		},
		{
			name: "first id and name win",
			deltas: []model.ToolCallDelta{
				{Index: model.Int(0), ID: "first", Name: "alpha", Arguments: model.String("{}")},
				{Index: model.Int(0), ID: "second", Name: "beta"},
			},
			want: []model.ToolUsePart{
				{ID: "first", Name: "alpha", RawInput: "{}", Input: map[string]any{}},
			},
		},
		{
			name: "malformed arguments yield empty input",
			deltas: []model.ToolCallDelta{
				{ID: "call-1", Name: "search", Arguments: model.String(`{"q": "unterminated`)},
			},
			want: []model.ToolUsePart{
				{ID: "call-1", Name: "search", RawInput: `{"q": "unterminated`, Input: map[string]any{}},
			},
		},
		{
			name: "empty argument write completes the slot",
			deltas: []model.ToolCallDelta{
				{ID: "call-1", Name: "now", Arguments: model.String("")},
			},
			want: []model.ToolUsePart{
				{ID: "call-1", Name: "now", Input: map[string]any{}},
			},
		},
		{
			name: "slot without argument write is dropped",
			deltas: []model.ToolCallDelta{
				{ID: "call-1", Name: "now"},
			},
			want: []model.ToolUsePart{},
		},
		{
			name: "slot without id is dropped",
			deltas: []model.ToolCallDelta{
				{Index: model.Int(3), Name: "search", Arguments: model.String(`{"q":"x"}`)},
			},
			want: []model.ToolUsePart{},
		},
		{
			name: "slot without name is dropped",
			deltas: []model.ToolCallDelta{
				{Index: model.Int(2), ID: "call-2", Arguments: model.String(`{}`)},
			},
			want: []model.ToolUsePart{},
		},
		{
			name: "out of order indices are sorted",
			deltas: []model.ToolCallDelta{
				{Index: model.Int(1), ID: "b", Name: "second"},
				{Index: model.Int(1), Arguments: model.String(`{"n":2}`)},
				{Index: model.Int(0), ID: "a", Name: "first"},
				{Index: model.Int(0), Arguments: model.String(`{"n":1}`)},
			},
			want: []model.ToolUsePart{
				{ID: "a", Name: "first", RawInput: `{"n":1}`, Input: map[string]any{"n": float64(1)}},
				{ID: "b", Name: "second", RawInput: `{"n":2}`, Input: map[string]any{"n": float64(2)}},
			},
		},
		{
			name: "non-object arguments yield empty input",
			deltas: []model.ToolCallDelta{
				{ID: "call-1", Name: "echo", Arguments: model.String(`[1,2]`)},
			},
			want: []model.ToolUsePart{
				{ID: "call-1", Name: "echo", RawInput: `[1,2]`, Input: map[string]any{}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var acc ToolCalls
			for _, d := range tc.deltas {
				acc.Append(d)
			}
			assert.Equal(t, tc.want, acc.Finalize())
		})
	}
}

func TestToolCallsIgnoresEmptyFragments(t *testing.T) {
	t.Parallel()
	var acc ToolCalls
	acc.Append(model.ToolCallDelta{})
	acc.Append(model.ToolCallDelta{Index: model.Int(4)})
	assert.Zero(t, acc.Len())
	assert.Nil(t, acc.Finalize())
}

func TestToolCallsReset(t *testing.T) {
	t.Parallel()
	var acc ToolCalls
	acc.Append(model.ToolCallDelta{ID: "a", Name: "x", Arguments: model.String("{}")})
	require.Len(t, acc.Finalize(), 1)
	acc.Reset()
	assert.Zero(t, acc.Len())
	assert.Empty(t, acc.Finalize())
}

func TestToolCallsFragmentBoundaryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("argument concatenation ignores fragment boundaries", prop.ForAll(
		func(args string, cuts []int) bool {
			var acc ToolCalls
			acc.Append(model.ToolCallDelta{ID: "call", Name: "tool"})
			for _, frag := range split(args, cuts) {
				acc.Append(model.ToolCallDelta{Arguments: model.String(frag)})
			}
			calls := acc.Finalize()
			return len(calls) == 1 && calls[0].RawInput == args
		},
		gen.AnyString(),
		gen.SliceOf(gen.IntRange(0, 64)),
	))

	properties.Property("finalized calls are ordered by index", prop.ForAll(
		func(order []int) bool {
			var acc ToolCalls
			for _, idx := range order {
				acc.Append(model.ToolCallDelta{Index: model.Int(idx), ID: strconv.Itoa(idx), Name: "n", Arguments: model.String("{}")})
			}
			calls := acc.Finalize()
			if len(calls) != acc.Len() {
				return false
			}
			for i := 1; i < len(calls); i++ {
				prev, _ := strconv.Atoi(calls[i-1].ID)
				cur, _ := strconv.Atoi(calls[i].ID)
				if prev >= cur {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 16)),
	))

	properties.TestingRun(t)
}

// split cuts s at the given byte offsets (modulo len(s)+1), keeping every
// byte exactly once and in order.
func split(s string, cuts []int) []string {
	if len(s) == 0 {
		return []string{""}
	}
	var (
		out  []string
		prev int
	)
	for _, c := range cuts {
		pos := c % (len(s) + 1)
		if pos < prev {
			continue
		}
		out = append(out, s[prev:pos])
		prev = pos
	}
	return append(out, s[prev:])
}
