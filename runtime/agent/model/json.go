package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MarshalJSON encodes TextPart with a Kind discriminator.
func (p TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Kind PartKind `json:"Kind"` //nolint:tagliatelle
		alias
	}{PartKindText, alias(p)})
}

// MarshalJSON encodes ThinkingPart with a Kind discriminator.
func (p ThinkingPart) MarshalJSON() ([]byte, error) {
	type alias ThinkingPart
	return json.Marshal(struct {
		Kind PartKind `json:"Kind"` //nolint:tagliatelle
		alias
	}{PartKindThinking, alias(p)})
}

// MarshalJSON encodes ToolUsePart with a Kind discriminator.
func (p ToolUsePart) MarshalJSON() ([]byte, error) {
	type alias ToolUsePart
	return json.Marshal(struct {
		Kind PartKind `json:"Kind"` //nolint:tagliatelle
		alias
	}{PartKindToolUse, alias(p)})
}

// MarshalJSON encodes ToolResultPart with a Kind discriminator. Output parts
// are themselves discriminated.
func (p ToolResultPart) MarshalJSON() ([]byte, error) {
	type alias ToolResultPart
	return json.Marshal(struct {
		Kind PartKind `json:"Kind"` //nolint:tagliatelle
		alias
	}{PartKindToolResult, alias(p)})
}

// MarshalJSON encodes MediaPart with a Kind discriminator.
func (p MediaPart) MarshalJSON() ([]byte, error) {
	type alias MediaPart
	return json.Marshal(struct {
		Kind PartKind `json:"Kind"` //nolint:tagliatelle
		alias
	}{PartKindMedia, alias(p)})
}

// UnmarshalJSON decodes a Message, materializing the concrete Part types held
// in Parts.
func (m *Message) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ID    string
		Name  string
		Role  ConversationRole
		Parts []json.RawMessage
		Meta  map[string]any
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	parts, err := decodeParts(tmp.Parts)
	if err != nil {
		return err
	}
	m.ID, m.Name, m.Role, m.Parts, m.Meta = tmp.ID, tmp.Name, tmp.Role, parts, tmp.Meta
	return nil
}

// UnmarshalJSON decodes a ToolResultPart including its nested output parts.
func (p *ToolResultPart) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ToolUseID string
		Name      string
		Output    []json.RawMessage
		IsError   bool
		Meta      map[string]any
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	out, err := decodeParts(tmp.Output)
	if err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	*p = ToolResultPart{ToolUseID: tmp.ToolUseID, Name: tmp.Name, Output: out, IsError: tmp.IsError, Meta: tmp.Meta}
	return nil
}

// DecodePart decodes a single Kind-discriminated part.
func DecodePart(raw json.RawMessage) (Part, error) {
	var head struct {
		Kind PartKind
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		// Bare strings are accepted as text.
		var text string
		if errText := json.Unmarshal(raw, &text); errText == nil {
			return TextPart{Text: text}, nil
		}
		return nil, fmt.Errorf("decode part object: %w", err)
	}
	switch head.Kind {
	case PartKindText:
		var p TextPart
		if err := unmarshalPart(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartKindThinking:
		var p ThinkingPart
		if err := unmarshalPart(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartKindToolUse:
		var p ToolUsePart
		if err := unmarshalPart(raw, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, errors.New("tool_use part requires Name")
		}
		return p, nil
	case PartKindToolResult:
		var p ToolResultPart
		if err := unmarshalPart(raw, &p); err != nil {
			return nil, err
		}
		if p.ToolUseID == "" {
			return nil, errors.New("tool_result part requires ToolUseID")
		}
		return p, nil
	case PartKindMedia:
		var p MediaPart
		if err := unmarshalPart(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "":
		return nil, errors.New("part is missing Kind")
	default:
		return nil, fmt.Errorf("unknown part kind %q", head.Kind)
	}
}

func decodeParts(raws []json.RawMessage) ([]Part, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	parts := make([]Part, 0, len(raws))
	for i, raw := range raws {
		p, err := DecodePart(raw)
		if err != nil {
			return nil, fmt.Errorf("decode parts[%d]: %w", i, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func unmarshalPart(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
