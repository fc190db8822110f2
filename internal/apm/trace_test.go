package apm

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/dexprice/internal/apperror"
)

func TestSpan_NoticeError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	tracer := &openTracer{tp.Tracer("test")}

	_, span := tracer.StartSpanFromContext(context.Background(), "pricing.refresh")
	span.NoticeError(apperror.External(apperror.CodeEthereumRPCError, "eth_call", errors.New("eof")))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d spans, want 1", len(ended))
	}
	s := ended[0]

	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if s.Status().Description != "Ethereum RPC call failed: eth_call" {
		t.Errorf("description = %q", s.Status().Description)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["error.code"].AsString(); got != string(apperror.CodeEthereumRPCError) {
		t.Errorf("error.code = %q", got)
	}
	if !attrs["error.unavailable"].AsBool() {
		t.Error("error.unavailable should be set")
	}
	if len(s.Events()) != 1 {
		t.Errorf("got %d events, want the recorded error", len(s.Events()))
	}
}

func TestSpan_NoticeNilError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, span := (&openTracer{tp.Tracer("test")}).StartSpanFromContext(context.Background(), "noop")
	span.NoticeError(nil)
	span.End()

	if got := rec.Ended()[0].Status().Code; got != codes.Unset {
		t.Errorf("status = %v, want Unset", got)
	}
}
