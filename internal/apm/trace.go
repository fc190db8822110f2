package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexprice/internal/apperror"
)

// Tracer starts spans that understand application errors.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span is the subset of trace.Span the services use.
type Span interface {
	SetAttributes(value ...attribute.KeyValue)
	SetStatus(code codes.Code, description string)
	NoticeError(err error)
	End(options ...trace.SpanEndOption)
}

type openTracer struct {
	tracer trace.Tracer
}

// NewTracer returns a tracer backed by the global provider at call time.
func NewTracer(name string) Tracer {
	return &openTracer{otel.Tracer(name)}
}

func (t *openTracer) StartSpanFromContext(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &traceSpan{span}
}

type traceSpan struct {
	trace.Span
}

// NoticeError records err, tags the span with its error code and kind, and
// marks the span failed.
func (t *traceSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	t.RecordError(err)
	t.Span.SetAttributes(attribute.String("error.code", string(apperror.GetCode(err))))
	if apperror.IsUnavailable(err) {
		t.Span.SetAttributes(attribute.Bool("error.unavailable", true))
	}
	t.Span.SetStatus(codes.Error, apperror.Summary(err))
}
