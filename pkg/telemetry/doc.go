// Package telemetry groups the service's observability packages.
//
//   - logging: slog construction with context fields and PII redaction
//   - metrics: Prometheus collector for HTTP, quota and upstream calls
//   - tracing: OpenTelemetry provider setup and span helpers
//   - health: liveness and readiness probes
//
// Identities reach telemetry only in masked form. Metrics are labelled by
// tier, never by identity.
package telemetry
