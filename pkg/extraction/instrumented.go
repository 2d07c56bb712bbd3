package extraction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resumetailor-hq/tailor/pkg/telemetry/tracing"
)

// Recorder receives upstream call measurements.
type Recorder interface {
	RecordUpstreamCall(service, op, result string, duration time.Duration)
}

// Instrumented wraps an Extractor with a span and a call measurement.
type Instrumented struct {
	inner    Extractor
	backend  string
	recorder Recorder
	tracer   trace.Tracer
}

// NewInstrumented wraps inner. A nil recorder only traces.
func NewInstrumented(inner Extractor, backend string, recorder Recorder) *Instrumented {
	return &Instrumented{
		inner:    inner,
		backend:  backend,
		recorder: recorder,
		tracer:   otel.Tracer("resumetailor-hq/tailor/extraction"),
	}
}

// ExtractLines forwards to the wrapped extractor.
func (i *Instrumented) ExtractLines(ctx context.Context, bucket, key string) ([]string, error) {
	ctx, span := i.tracer.Start(ctx, "extraction.ExtractLines", trace.WithAttributes(
		attribute.String(tracing.AttrUpstreamService, i.backend),
		attribute.String(tracing.AttrDocumentKey, key),
	))
	defer span.End()

	start := time.Now()
	lines, err := i.inner.ExtractLines(ctx, bucket, key)
	result := "ok"
	if err != nil {
		result = "error"
		tracing.SetError(span, err)
	} else {
		span.SetAttributes(attribute.Int("tailor.extraction.lines", len(lines)))
	}
	if i.recorder != nil {
		i.recorder.RecordUpstreamCall(i.backend, "extract", result, time.Since(start))
	}
	return lines, err
}
