package order

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventLine is the line shape carried by order events.
type EventLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderCreatedEvent is emitted after a new order and its stock reservation are persisted.
type OrderCreatedEvent struct {
	EventID    string      `json:"event_id"`
	OrderID    int64       `json:"order_id"`
	AccountID  int64       `json:"account_id"`
	Status     Status      `json:"status"`
	Lines      []EventLine `json:"lines"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string     { return "order.created" }
func (e OrderCreatedEvent) AggregateID() string { return strconv.FormatInt(e.OrderID, 10) }
func (e OrderCreatedEvent) ID() string          { return e.EventID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		AccountID:  o.AccountID,
		Status:     o.Status,
		Lines:      eventLines(o),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderUpdatedEvent is emitted after an order's lines or status change.
type OrderUpdatedEvent struct {
	EventID    string      `json:"event_id"`
	OrderID    int64       `json:"order_id"`
	AccountID  int64       `json:"account_id"`
	Status     Status      `json:"status"`
	Lines      []EventLine `json:"lines"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (OrderUpdatedEvent) EventName() string     { return "order.updated" }
func (e OrderUpdatedEvent) AggregateID() string { return strconv.FormatInt(e.OrderID, 10) }
func (e OrderUpdatedEvent) ID() string          { return e.EventID }

func NewOrderUpdatedEvent(o *Order) OrderUpdatedEvent {
	return OrderUpdatedEvent{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		AccountID:  o.AccountID,
		Status:     o.Status,
		Lines:      eventLines(o),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted once stock is restored and the order is soft-deleted.
type OrderCancelledEvent struct {
	EventID    string      `json:"event_id"`
	OrderID    int64       `json:"order_id"`
	AccountID  int64       `json:"account_id"`
	Restored   []EventLine `json:"restored"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (OrderCancelledEvent) EventName() string     { return "order.cancelled" }
func (e OrderCancelledEvent) AggregateID() string { return strconv.FormatInt(e.OrderID, 10) }
func (e OrderCancelledEvent) ID() string          { return e.EventID }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		AccountID:  o.AccountID,
		Restored:   eventLines(o),
		OccurredAt: time.Now().UTC(),
	}
}

// EventNames lists every order lifecycle event.
func EventNames() []string {
	return []string{
		OrderCreatedEvent{}.EventName(),
		OrderUpdatedEvent{}.EventName(),
		OrderCancelledEvent{}.EventName(),
	}
}

func eventLines(o *Order) []EventLine {
	lines := o.Lines()
	out := make([]EventLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, EventLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
