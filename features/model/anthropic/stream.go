package anthropic

import (
	"errors"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"goa.design/agentcall/runtime/agent/model"
)

// streamer adapts an Anthropic Messages stream to model.Streamer. Each Recv
// pulls stream events until one maps to a chunk.
type streamer struct {
	stream      *ssestream.Stream[sdk.MessageStreamEventUnion]
	toolNameMap map[string]string
	done        bool
}

func newStreamer(stream *ssestream.Stream[sdk.MessageStreamEventUnion], nameMap map[string]string) *streamer {
	return &streamer{stream: stream, toolNameMap: nameMap}
}

func (s *streamer) Recv() (*model.Chunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.stream.Next() {
		chunk, err := s.translate(s.stream.Current())
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			return chunk, nil
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		return nil, providerError("messages.stream", err)
	}
	return nil, io.EOF
}

func (s *streamer) Close() error {
	return s.stream.Close()
}

// translate maps one stream event to a chunk. It returns nil for events that
// carry no content (pings, block stops, message stop).
func (s *streamer) translate(event sdk.MessageStreamEventUnion) (*model.Chunk, error) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		u := ev.Message.Usage
		return &model.Chunk{
			ID:    ev.Message.ID,
			Model: string(ev.Message.Model),
			Usage: &model.TokenUsage{
				InputTokens:      int(u.InputTokens),
				TotalTokens:      int(u.InputTokens),
				CacheReadTokens:  int(u.CacheReadInputTokens),
				CacheWriteTokens: int(u.CacheCreationInputTokens),
			},
		}, nil
	case sdk.ContentBlockStartEvent:
		toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock)
		if !ok {
			return nil, nil
		}
		if toolUse.ID == "" {
			return nil, errors.New("anthropic stream: tool use block missing id")
		}
		name := toolUse.Name
		// Unknown names are surfaced as-is so the tool registry reports them.
		if canonical, ok := s.toolNameMap[name]; ok {
			name = canonical
		}
		return &model.Chunk{Deltas: []model.Delta{model.ToolCallDelta{
			Index: model.Int(int(ev.Index)),
			ID:    toolUse.ID,
			Name:  name,
		}}}, nil
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil, nil
			}
			return &model.Chunk{Deltas: []model.Delta{model.TextDelta{Text: delta.Text}}}, nil
		case sdk.InputJSONDelta:
			if delta.PartialJSON == "" {
				return nil, nil
			}
			return &model.Chunk{Deltas: []model.Delta{model.ToolCallDelta{
				Index:     model.Int(idx),
				Arguments: model.String(delta.PartialJSON),
			}}}, nil
		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return nil, nil
			}
			return &model.Chunk{Deltas: []model.Delta{model.ThinkingDelta{Text: delta.Thinking}}}, nil
		case sdk.SignatureDelta:
			if delta.Signature == "" {
				return nil, nil
			}
			return &model.Chunk{Deltas: []model.Delta{model.ThinkingDelta{Signature: delta.Signature}}}, nil
		}
		return nil, nil
	case sdk.MessageDeltaEvent:
		return &model.Chunk{
			FinishReason: string(ev.Delta.StopReason),
			Usage: &model.TokenUsage{
				OutputTokens: int(ev.Usage.OutputTokens),
				TotalTokens:  int(ev.Usage.OutputTokens),
			},
		}, nil
	}
	return nil, nil
}
