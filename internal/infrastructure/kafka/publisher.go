// Package kafka forwards domain events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const headerEventType = "event_type"

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter returns a writer that waits for every in-sync replica.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Publisher writes each event as a JSON message keyed by its aggregate id,
// so every event of one order lands on the same partition in order.
type Publisher struct {
	log      observability.Logger
	producer Producer
	topic    string
}

func NewPublisher(producer Producer, topic string, log observability.Logger) *Publisher {
	if log == nil {
		log = observability.NopLogger()
	}
	return &Publisher{
		log:      log.With(observability.F("component", "kafka_publisher"), observability.F("topic", topic)),
		producer: producer,
		topic:    topic,
	}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	msg, err := p.message(ctx, e)
	if err != nil {
		return err
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		logctx.FromOr(ctx, p.log).Error("kafka_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("kafka: publish %s: %w", e.EventName(), err)
	}
	return nil
}

func (p *Publisher) message(ctx context.Context, e domoutbox.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier)+1)
	headers = append(headers, kafka.Header{Key: headerEventType, Value: []byte(e.EventName())})
	for _, k := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Value:   payload,
		Headers: headers,
	}
	if keyed, ok := e.(domoutbox.Keyed); ok {
		msg.Key = []byte(keyed.AggregateID())
	}
	return msg, nil
}
