package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects an event-scoped logger for background handlers.
// Dynamic fields only: event name, event_id (generated when the event has
// none), aggregate_id, trace_id/span_id of the current span when valid, plus
// caller-provided low-cardinality fields.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	e domoutbox.Event,
	extra ...observability.Field,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, 5+len(extra))
	fields = append(fields, observability.F("event", e.EventName()))

	evtID := ""
	if id, ok := e.(domoutbox.Identified); ok {
		evtID = id.ID()
	}
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if keyed, ok := e.(domoutbox.Keyed); ok {
		fields = append(fields, observability.F("aggregate_id", keyed.AggregateID()))
	}

	sc := trace.SpanContextFromContext(ctx)
	if sc.TraceID().IsValid() {
		fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
	}
	if sc.SpanID().IsValid() {
		fields = append(fields, observability.F("span_id", sc.SpanID().String()))
	}

	fields = append(fields, extra...)
	return logctx.With(ctx, base.With(fields...))
}
