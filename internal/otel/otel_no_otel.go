//go:build no_otel

package otel

import "context"

// FakeTracer and FakeSpan stand in for the OpenTelemetry types when built
// with -tags no_otel, so the middleware carries no tracing dependency at
// all in that configuration.
type FakeTracer struct{}
type FakeSpan struct{}

// Tracer returns a no-op tracer.
func Tracer(name string) FakeTracer {
	return FakeTracer{}
}

// Start returns ctx unchanged and a no-op span.
func (t FakeTracer) Start(ctx context.Context, _ string) (context.Context, FakeSpan) {
	return ctx, FakeSpan{}
}

// End is a no-op.
func (s FakeSpan) End() {}
