package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/keyapp-labs/flowkit/statemachine"

// startAcceptSpan opens the span covering one transition. Uses the global
// tracer provider installed by the telemetry package. The caller ends it.
//
//nolint:spancheck
func startAcceptSpan(ctx context.Context, flow, machineID, from, event string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.accept",
		trace.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("machine_id", machineID),
			attribute.String("from_state", from),
			attribute.String("event", event),
		))

	return ctx, span
}

func finishAcceptSpan(span trace.Span, to string, err error) {
	span.SetAttributes(attribute.String("outcome", outcomeOf(err)))

	if err != nil {
		span.SetAttributes(attribute.String("error_kind", ErrorKind(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return
	}

	span.SetAttributes(attribute.String("to_state", to))
	span.SetStatus(codes.Ok, "")
}

// traceIDs returns the ids of the span in ctx, or empty strings.
func traceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}

	return sc.TraceID().String(), sc.SpanID().String()
}
