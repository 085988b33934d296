package aggregate

import (
	"context"
	"errors"
	"io"

	"goa.design/agentcall/runtime/agent/model"
)

// ChunkFunc observes a chunk after it has been folded into the aggregator. The
// aggregator is passed so observers can read the running text and reasoning.
type ChunkFunc func(ctx context.Context, chunk *model.Chunk, agg *Aggregator) error

// Consume drains streamer into a new Aggregator and returns the finalized
// response. fn, when not nil, is invoked for every chunk in arrival order; an
// error returned by fn stops consumption. The streamer is always closed.
// Consume returns ctx.Err() when ctx is cancelled between chunks.
func Consume(ctx context.Context, streamer model.Streamer, fn ChunkFunc) (*model.Response, error) {
	if streamer == nil {
		return nil, errors.New("aggregate: nil streamer")
	}
	defer func() {
		_ = streamer.Close()
	}()

	agg := New()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := streamer.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if chunk == nil {
			continue
		}
		agg.Append(chunk)
		if fn != nil {
			if err := fn(ctx, chunk, agg); err != nil {
				return nil, err
			}
		}
	}
	return agg.Finalize(), nil
}
