package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hpckit/batchq"
)

// tracerName is the instrumentation scope name for batchq tracing.
const tracerName = "github.com/hpckit/batchq"

// Tracing returns middleware that wraps a submission in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include batchq.job.name and batchq.force. On error,
// the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j batchq.Job, opts *batchq.RunOptions, next Handler) error {
		ctx, span := tracer.Start(ctx, "batchq.job.submit",
			trace.WithAttributes(
				attribute.String("batchq.job.name", j.Name()),
				attribute.Bool("batchq.force", opts.Force),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
