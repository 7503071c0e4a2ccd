package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectExtract_RoundTrips(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	meta := Inject(ctx, nil)
	require.Contains(t, meta, TraceContextKey)

	restored := Extract(context.Background(), meta)
	assert.Equal(t, traceID, trace.SpanContextFromContext(restored).TraceID())
	assert.Equal(t, spanID, trace.SpanContextFromContext(restored).SpanID())
}

func TestInject_NoSpanLeavesMetadataUntouched(t *testing.T) {
	meta := Inject(context.Background(), map[string]interface{}{"k": "v"})
	assert.NotContains(t, meta, TraceContextKey)
	assert.Equal(t, "v", meta["k"])
}
