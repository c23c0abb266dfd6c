//go:build !no_otel

// Package otel is the tracer accessor used at every suspension point the
// middleware owns (cache I/O, Event Provider hooks, token
// serialize/deserialize), grounded on the teacher's internal/otel.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer backed by the global OpenTelemetry
// TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
