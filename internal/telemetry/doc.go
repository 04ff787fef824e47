// Package telemetry wires OpenTelemetry tracing for ragify.
//
// Every pipeline stage opens a span through otel.Tracer, so the loader,
// splitter, vector store and answer synthesis show up as one trace per
// request once a collector is configured. Telemetry is off by default and
// the global no-op provider is used.
//
// Metrics are exported separately through Prometheus (see /metrics on the
// HTTP server).
//
// Tests use NewTestTelemetry, which records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	defer tt.Restore()
//	...
//	tt.AssertSpanExists(t, "rag.Answer")
package telemetry
