package bedrock

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	// streamer adapts a ConverseStream event stream to model.Streamer. A
	// goroutine reads the SDK event channel and hands translated chunks to
	// Recv.
	streamer struct {
		ctx    context.Context
		cancel context.CancelFunc
		stream *bedrockruntime.ConverseStreamEventStream
		chunks chan *model.Chunk

		errMu    sync.Mutex
		errSet   bool
		finalErr error
	}

	// chunkProcessor converts Bedrock stream events into model chunks.
	chunkProcessor struct {
		names map[string]string
	}
)

func newStreamer(ctx context.Context, stream *bedrockruntime.ConverseStreamEventStream, names map[string]string) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{
		ctx:    cctx,
		cancel: cancel,
		stream: stream,
		chunks: make(chan *model.Chunk, 32),
	}
	go s.run(&chunkProcessor{names: names})
	return s
}

func (s *streamer) Recv() (*model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	case <-s.ctx.Done():
		err := s.ctx.Err()
		s.setErr(err)
		return nil, err
	}
}

func (s *streamer) Close() error {
	s.cancel()
	return s.stream.Close()
}

func (s *streamer) run(p *chunkProcessor) {
	defer close(s.chunks)
	defer func() { _ = s.stream.Close() }()

	events := s.stream.Events()
	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		case event, ok := <-events:
			if !ok {
				if err := s.stream.Err(); err != nil {
					s.setErr(wrapBedrockError("converse_stream.recv", err))
				}
				return
			}
			chunk := p.handle(event)
			if chunk == nil {
				continue
			}
			select {
			case <-s.ctx.Done():
				s.setErr(s.ctx.Err())
				return
			case s.chunks <- chunk:
			}
		}
	}
}

func (s *streamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *streamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

// handle returns the chunk for event or nil when the event carries nothing
// the aggregator needs.
func (p *chunkProcessor) handle(event brtypes.ConverseStreamOutput) *model.Chunk {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		use, ok := ev.Value.Start.(*brtypes.ContentBlockStartMemberToolUse)
		if !ok {
			return nil
		}
		d := model.ToolCallDelta{Index: contentIndex(ev.Value.ContentBlockIndex)}
		if use.Value.ToolUseId != nil {
			d.ID = *use.Value.ToolUseId
		}
		if use.Value.Name != nil {
			d.Name = p.canonical(*use.Value.Name)
		}
		return &model.Chunk{Deltas: []model.Delta{d}}
	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		switch delta := ev.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			if delta.Value == "" {
				return nil
			}
			return &model.Chunk{Deltas: []model.Delta{model.TextDelta{Text: delta.Value}}}
		case *brtypes.ContentBlockDeltaMemberReasoningContent:
			switch r := delta.Value.(type) {
			case *brtypes.ReasoningContentBlockDeltaMemberText:
				return &model.Chunk{Deltas: []model.Delta{model.ThinkingDelta{Text: r.Value}}}
			case *brtypes.ReasoningContentBlockDeltaMemberSignature:
				return &model.Chunk{Deltas: []model.Delta{model.ThinkingDelta{Signature: r.Value}}}
			}
		case *brtypes.ContentBlockDeltaMemberToolUse:
			if delta.Value.Input == nil {
				return nil
			}
			return &model.Chunk{Deltas: []model.Delta{model.ToolCallDelta{
				Index:     contentIndex(ev.Value.ContentBlockIndex),
				Arguments: model.String(*delta.Value.Input),
			}}}
		}
	case *brtypes.ConverseStreamOutputMemberMessageStop:
		return &model.Chunk{FinishReason: string(ev.Value.StopReason)}
	case *brtypes.ConverseStreamOutputMemberMetadata:
		u := ev.Value.Usage
		if u == nil {
			return nil
		}
		return &model.Chunk{Usage: &model.TokenUsage{
			InputTokens:      int32Value(u.InputTokens),
			OutputTokens:     int32Value(u.OutputTokens),
			TotalTokens:      int32Value(u.TotalTokens),
			CacheReadTokens:  int32Value(u.CacheReadInputTokens),
			CacheWriteTokens: int32Value(u.CacheWriteInputTokens),
		}}
	}
	return nil
}

func (p *chunkProcessor) canonical(name string) string {
	if c, ok := p.names[name]; ok {
		return c
	}
	return name
}

// contentIndex returns the block index. Bedrock always sets it on block
// events; a missing index maps to block 0.
func contentIndex(idx *int32) *int {
	if idx == nil {
		return model.Int(0)
	}
	return model.Int(int(*idx))
}

func int32Value(v *int32) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

