package generative

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resumetailor-hq/tailor/pkg/telemetry/tracing"
)

// Recorder receives completion measurements.
type Recorder interface {
	RecordUpstreamCall(service, op, result string, duration time.Duration)
	RecordTokens(service, model string, input, output int)
}

// Instrumented wraps a Completer with a span, a call measurement and token
// counts.
type Instrumented struct {
	inner    Completer
	provider string
	model    string
	recorder Recorder
	tracer   trace.Tracer
	timeout  time.Duration
}

// NewInstrumented wraps inner. A nil recorder only traces.
func NewInstrumented(inner Completer, provider, model string, recorder Recorder) *Instrumented {
	return &Instrumented{
		inner:    inner,
		provider: provider,
		model:    model,
		recorder: recorder,
		tracer:   otel.Tracer("resumetailor-hq/tailor/generative"),
	}
}

// WithTimeout bounds each completion by d. Zero leaves calls unbounded.
func (i *Instrumented) WithTimeout(d time.Duration) *Instrumented {
	i.timeout = d
	return i
}

// Complete forwards to the wrapped completer.
func (i *Instrumented) Complete(ctx context.Context, req Request) (*Response, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	ctx, span := i.tracer.Start(ctx, "generative.Complete", trace.WithAttributes(
		attribute.String(tracing.AttrUpstreamService, i.provider),
		attribute.String(tracing.AttrModel, i.model),
		attribute.Int("tailor.generative.max_tokens", req.MaxTokens),
	))
	defer span.End()

	start := time.Now()
	resp, err := i.inner.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		tracing.SetError(span, err)
		if i.recorder != nil {
			i.recorder.RecordUpstreamCall(i.provider, "complete", "error", elapsed)
		}
		return nil, err
	}

	tracing.SetModelAttributes(span, i.provider, resp.Model, resp.InputTokens, resp.OutputTokens)
	if i.recorder != nil {
		i.recorder.RecordUpstreamCall(i.provider, "complete", "ok", elapsed)
		i.recorder.RecordTokens(i.provider, resp.Model, resp.InputTokens, resp.OutputTokens)
	}
	return resp, nil
}
