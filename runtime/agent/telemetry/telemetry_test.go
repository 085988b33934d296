package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"
)

func TestNoopImplementations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := NewNoopLogger()
	logger.Debug(ctx, "debug", "k", "v")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error", "err", errors.New("x"))

	metrics := NewNoopMetrics()
	metrics.IncCounter("c", 1, "env", "test")
	metrics.RecordTimer("t", time.Second)

	newCtx, span := NewNoopTracer().Start(ctx, "op")
	require.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.AddEvent("e", "k", 1)
	span.SetStatus(codes.Ok, "")
	span.RecordError(errors.New("x"))
	span.End()
}

func TestFieldersPairsKeysAndValues(t *testing.T) {
	t.Parallel()

	fs := fielders("hello", []any{"a", 1, 2, "skipped", "err", errors.New("boom"), "trailing"})
	assert.Equal(t, []log.Fielder{
		log.KV{K: "msg", V: "hello"},
		log.KV{K: "a", V: 1},
		log.KV{K: "err", V: "boom"},
		log.KV{K: "trailing", V: nil},
	}, fs)
}

func TestAttributeConversion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("agent", "a"),
		attribute.String("odd", ""),
	}, tagsToAttrs([]string{"agent", "a", "odd"}))

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "v"),
		attribute.Int("i", 1),
		attribute.Int64("i64", 2),
		attribute.Float64("f", 1.5),
		attribute.Bool("b", true),
		attribute.String("d", "1s"),
		attribute.String("n", ""),
	}, kvToAttrs([]any{"s", "v", "i", 1, "i64", int64(2), "f", 1.5, "b", true, "d", time.Second, "n", nil}))
}

func TestOtelImplementationsUseGlobalProviders(t *testing.T) {
	t.Parallel()

	m := NewOtelMetrics()
	m.IncCounter("agent.calls", 1, "agent", "a")
	m.IncCounter("agent.calls", 1, "agent", "a")
	m.RecordTimer("agent.call.duration", time.Millisecond)

	ctx, span := NewOtelTracer().Start(context.Background(), "agent.call")
	require.NotNil(t, ctx)
	span.AddEvent("started", "agent", "a")
	span.SetStatus(codes.Error, "failed")
	span.End()
}
