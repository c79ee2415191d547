package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context of a span, kept as plain strings so it
// can sit in an outbox row until the event is published.
type TraceContext struct {
	Parent string // traceparent
	State  string // tracestate
}

// CaptureTraceContext returns the active span's context, or the zero value
// when ctx carries none.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

func (tc TraceContext) IsZero() bool {
	return tc.Parent == "" && tc.State == ""
}

// Attach makes tc the remote parent of spans started from the returned ctx.
func (tc TraceContext) Attach(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Parent}
	if tc.State != "" {
		carrier.Set("tracestate", tc.State)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
