package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Custom attribute keys use the "tailor.*" namespace.
const (
	AttrRequestID = "tailor.request_id"
	AttrIdentity  = "tailor.identity"
	AttrTier      = "tailor.tier"

	AttrQuotaService = "tailor.quota.service"
	AttrQuotaResult  = "tailor.quota.result"
	AttrQuotaCount   = "tailor.quota.count"
	AttrQuotaLimit   = "tailor.quota.limit"

	AttrUpstreamService = "tailor.upstream.service"
	AttrModel           = "tailor.model"
	AttrTokensInput     = "tailor.tokens.input"
	AttrTokensOutput    = "tailor.tokens.output"

	AttrDocumentKey = "tailor.document.key"
	AttrJobID       = "tailor.extraction.job_id"
)

// SetRequestAttributes sets the request ID and masked caller identity.
func SetRequestAttributes(span trace.Span, requestID, maskedIdentity, tier string) {
	attrs := make([]attribute.KeyValue, 0, 3)
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	if maskedIdentity != "" {
		attrs = append(attrs, attribute.String(AttrIdentity, maskedIdentity))
	}
	if tier != "" {
		attrs = append(attrs, attribute.String(AttrTier, tier))
	}
	span.SetAttributes(attrs...)
}

// SetModelAttributes records which model served a call and its token usage.
func SetModelAttributes(span trace.Span, service, model string, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.String(AttrUpstreamService, service),
		attribute.String(AttrModel, model),
		attribute.Int(AttrTokensInput, inputTokens),
		attribute.Int(AttrTokensOutput, outputTokens),
	)
}

// AddEvent adds an event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
