// Package tracing holds the process-wide Tracer handle used to wrap
// process/stream calls on both the dispatcher and the remote proxy. It
// never constructs an exporter itself: callers that want real spans call
// SetTracer with whatever go.opentelemetry.io/otel/sdk/trace provider
// they've wired up; by default spans are no-ops via otel's noop tracer.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

var tracer trace.Tracer = trace.NewNoopTracerProvider().Tracer("agenkit-sub000")

// SetTracer replaces the process-wide tracer. Call it once at startup,
// before any Start call, from cmd/agentd's main.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// Tracer returns the active tracer.
func Tracer() trace.Tracer {
	return tracer
}

// Start begins a span named name as a child of ctx's span, if any.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// TraceContextKey is the metadata key carrying the W3C traceparent
// string; it is agent.TraceContextKey, the reserved key every transport
// and composition agent already knows to propagate verbatim.
const TraceContextKey = agent.TraceContextKey

var propagator = propagation.TraceContext{}

// mapCarrier adapts a metadata map to propagation.TextMapCarrier. Inject
// and Extract use it as a scratch carrier and copy only the traceparent
// string to and from metadata[TraceContextKey]; tracestate is not carried.
type mapCarrier map[string]interface{}

func (c mapCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c mapCarrier) Set(key, value string) { c[key] = value }

func (c mapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Inject writes the span context carried by ctx into metadata under
// TraceContextKey, creating the map if it is nil.
func Inject(ctx context.Context, metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	sub := make(mapCarrier)
	propagator.Inject(ctx, sub)
	if tp, ok := sub["traceparent"]; ok {
		metadata[TraceContextKey] = tp
	}
	return metadata
}

// Extract reads a previously-injected span context out of metadata and
// returns a context carrying it, suitable as the parent for Start.
func Extract(ctx context.Context, metadata map[string]interface{}) context.Context {
	if metadata == nil {
		return ctx
	}
	tp, ok := metadata[TraceContextKey]
	if !ok {
		return ctx
	}
	sub := mapCarrier{"traceparent": tp}
	return propagator.Extract(ctx, sub)
}
