// Package tracing configures OpenTelemetry distributed tracing.
//
// New installs a global tracer provider exporting over OTLP/gRPC together
// with the W3C trace context propagator. Packages that emit spans call
// otel.Tracer with their own instrumentation name and never hold a
// reference to this package's Tracer, so disabling tracing costs nothing
// beyond the no-op provider.
//
// Sampling is parent based. A request that arrives with a sampled
// traceparent header is always recorded; otherwise the configured
// strategy ("always", "never" or "ratio") decides.
//
// Span attributes live under the "tailor.*" namespace. Identities are
// recorded only in masked form.
package tracing
