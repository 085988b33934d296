// Package aggregate reassembles streamed model output. A ToolCalls
// accumulator collects indexed tool call fragments and an Aggregator folds a
// sequence of model.Chunk values into one model.Response.
package aggregate

import (
	"encoding/json"
	"sort"
	"strings"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	// ToolCalls accumulates tool call fragments addressed by index. Fragments
	// for a given index may arrive interleaved with other indices and may
	// carry the call ID and name in any fragment. The zero value is ready to
	// use. ToolCalls is not safe for concurrent use.
	ToolCalls struct {
		slots map[int]*slot
	}

	// slot tracks one tool call.
	slot struct {
		id   string
		name string
		args strings.Builder
		// wrote records that at least one argument write (possibly empty)
		// was observed.
		wrote bool
	}
)

// Append folds one fragment into the slot it addresses. A missing index
// addresses slot 0. The first non-empty ID and name win; argument fragments
// are concatenated in arrival order.
func (a *ToolCalls) Append(d model.ToolCallDelta) {
	if d.ID == "" && d.Name == "" && d.Arguments == nil {
		return
	}
	if a.slots == nil {
		a.slots = make(map[int]*slot)
	}
	idx := d.Slot()
	s, ok := a.slots[idx]
	if !ok {
		s = &slot{}
		a.slots[idx] = s
	}
	if s.id == "" && d.ID != "" {
		s.id = d.ID
	}
	if s.name == "" && d.Name != "" {
		s.name = d.Name
	}
	if d.Arguments != nil {
		s.args.WriteString(*d.Arguments)
		s.wrote = true
	}
}

// Len returns the number of slots observed so far, complete or not.
func (a *ToolCalls) Len() int { return len(a.slots) }

// Finalize returns one tool call per complete slot in ascending index order.
// A slot is complete once its ID and name are known and at least one argument
// write was observed; other slots are dropped. Arguments are parsed here and
// only here: arguments that do not decode to a JSON object yield an empty
// Input map while RawInput keeps the accumulated text.
func (a *ToolCalls) Finalize() []model.ToolUsePart {
	if len(a.slots) == 0 {
		return nil
	}
	indices := make([]int, 0, len(a.slots))
	for idx, s := range a.slots {
		if s.complete() {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	calls := make([]model.ToolUsePart, 0, len(indices))
	for _, idx := range indices {
		s := a.slots[idx]
		raw := s.args.String()
		calls = append(calls, model.ToolUsePart{
			ID:       s.id,
			Name:     s.name,
			RawInput: raw,
			Input:    parseArguments(raw),
		})
	}
	return calls
}

// Reset discards all slots.
func (a *ToolCalls) Reset() {
	a.slots = nil
}

func (s *slot) complete() bool {
	return s.id != "" && s.name != "" && s.wrote
}

// parseArguments decodes raw into a map. Empty or malformed input, and JSON
// values that are not objects, produce an empty map.
func parseArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		return args
	}
	return parsed
}
