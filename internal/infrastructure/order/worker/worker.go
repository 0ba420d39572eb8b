// Package worker relays order lifecycle events from the in-process bus to a
// durable sink.
package worker

import (
	"context"
	"fmt"

	domorder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/minishop-fulfillment/internal/presentation/worker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const spanPrefix = "Relay."

type Worker struct {
	subscriber domoutbox.Subscriber
	sink       domoutbox.Publisher
	sinkName   string
	log        observability.Logger
	tracer     observability.Tracer
	relayed    observability.Counter
}

// New builds a relay forwarding every order event to sink. sinkName labels
// the logs, e.g. "kafka" or "log".
func New(subscriber domoutbox.Subscriber, sink domoutbox.Publisher, sinkName string, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		sink:       sink,
		sinkName:   sinkName,
		log:        tel.Logger().With(observability.F("component", "order_relay")),
		tracer:     tel.Tracer(),
		relayed:    tel.Metrics().Counter(observability.MEventsRelayed),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.sink == nil {
		return
	}
	for _, name := range domorder.EventNames() {
		w.subscriber.Subscribe(name, w.handle)
	}
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	ctx, span := w.tracer.Start(ctx, spanPrefix+name, attribute.String("sink", w.sinkName))
	defer span.End()

	ctx = workerpresentation.WithEventContext(ctx, w.log, e, observability.F("sink", w.sinkName))
	logger := logctx.FromOr(ctx, w.log)

	outcome := "success"
	defer func() {
		w.relayed.Add(1, observability.L("event", name), observability.L("outcome", outcome))
	}()

	if err := w.sink.Publish(ctx, e); err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "relay failed")
		logger.Error("order_event_relay_failed", observability.F("error", err.Error()))
		return fmt.Errorf("order relay: %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "")
	logger.Debug("order_event_relayed")
	return nil
}

// LogSink is a sink that only logs events, used when no broker is configured.
type LogSink struct {
	log observability.Logger
}

func NewLogSink(logger observability.Logger) *LogSink {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogSink{log: logger}
}

func (s *LogSink) Publish(ctx context.Context, e domoutbox.Event) error {
	logctx.FromOr(ctx, s.log).Info("order_event", observability.F("payload", e))
	return nil
}
