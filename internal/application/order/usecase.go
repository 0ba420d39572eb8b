package order

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	useCaseOrderUpdate = "order.update"
	useCaseOrderCancel = "order.cancel"
	useCaseOrderDetail = "order.detail"
	useCaseOrderList   = "order.list_by_account"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
)

// instrumented carries the telemetry every use case reports through.
type instrumented struct {
	log    observability.Logger
	tracer observability.Tracer
	// RED metrics (supplied via DI; do not instantiate inside methods).
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	conflicts    observability.Counter   // stock_conflicts_total{operation}
}

func newInstrumented(tel observability.Observability) instrumented {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return instrumented{
		log:          tel.Logger().With(observability.F("service", orderService)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
		conflicts:    m.Counter(observability.MStockConflicts),
	}
}

// execution tracks one use case invocation from begin to finish.
type execution struct {
	useCase string
	start   time.Time
	span    trace.Span
	logger  observability.Logger

	outcome    string
	statusText string
	fields     []observability.Field
}

func (in *instrumented) begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *execution) {
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName,
		append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)...,
	)

	fields := []observability.Field{observability.F("use_case", useCase)}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	// pass logger back to ctx, so downstream gateways/repos log with the same fields
	ctx, logger := logctx.Enrich(ctx, in.log, fields...)

	return ctx, &execution{
		useCase:    useCase,
		start:      time.Now(),
		span:       span,
		logger:     logger,
		outcome:    "success",
		statusText: "OK",
	}
}

// fail marks the execution as failed with a stable status code and returns err.
func (e *execution) fail(status string, err error) error {
	e.outcome, e.statusText = "error", status
	return err
}

// note adds a field to the final use_case_done log line.
func (e *execution) note(key string, value any) {
	e.fields = append(e.fields, observability.F(key, value))
}

func (in *instrumented) finish(e *execution, err error) {
	lat := time.Since(e.start).Seconds()

	if e.span != nil {
		if err != nil {
			e.span.RecordError(err)
			e.span.SetStatus(codes.Error, e.statusText)
		} else {
			e.span.SetStatus(codes.Ok, e.statusText)
		}
		e.span.End()
	}

	in.reqCounter.Add(1,
		observability.L("use_case", e.useCase),
		observability.L("outcome", e.outcome),
	)
	in.durHistogram.Observe(lat,
		observability.L("use_case", e.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", e.outcome),
		observability.F("status", e.statusText),
		observability.F("latency_seconds", lat),
	}, e.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	e.logger.Info("use_case_done", fields...)
}

// publish emits an event best-effort: failures are recorded but never fail
// the use case, whose write has already been committed.
func (in *instrumented) publish(ctx context.Context, publisher domoutbox.Publisher, e *execution, event domoutbox.Event) {
	if publisher == nil || event == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	pubStart := time.Now()
	pubOutcome := "success"

	err := publisher.Publish(pubCtx, event)
	if err == nil && pubCtx.Err() != nil {
		err = pubCtx.Err()
		pubOutcome = "canceled"
	} else if err != nil {
		pubOutcome = "error"
	}
	cancel()

	in.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
		observability.L("outcome", pubOutcome),
	)
	in.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
	)

	if err != nil {
		e.span.RecordError(err)
		e.note("event_publish_error", err.Error())
		e.logger.Warn("event_publish_failed",
			observability.F("event", event.EventName()),
			observability.F("error", err.Error()),
		)
		return
	}
	e.span.AddEvent(event.EventName())
}
