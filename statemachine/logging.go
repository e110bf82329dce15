package statemachine

import (
	"context"
	"log/slog"
	"time"
)

func logFields(ctx context.Context, fields ...any) []any {
	if traceID, spanID := traceIDs(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID, "span_id", spanID)
	}

	return fields
}

func logCommitted(ctx context.Context, log *slog.Logger, from, event, to string, took time.Duration) {
	log.DebugContext(ctx, "transition committed", logFields(ctx,
		"from_state", from,
		"event", event,
		"to_state", to,
		"duration_ms", took.Milliseconds(),
	)...)
}

func logFailed(ctx context.Context, log *slog.Logger, from, event string, err error) {
	fields := logFields(ctx,
		"state", from,
		"event", event,
		"kind", ErrorKind(err),
		"error", err,
	)

	switch ErrorKind(err) {
	case KindInvalidEvent:
		log.WarnContext(ctx, "event rejected", fields...)
	case KindCollaborator:
		log.ErrorContext(ctx, "transition failed", fields...)
	default:
		log.InfoContext(ctx, "transition abandoned", fields...)
	}
}
