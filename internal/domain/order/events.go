package order

import "time"

const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status_changed"
)

// OrderCreatedEvent is emitted once an order is persisted and has a payment session.
type OrderCreatedEvent struct {
	OrderID          string    `json:"order_id"`
	UserID           string    `json:"user_id"`
	Total            int64     `json:"total"`
	DiscountCode     string    `json:"discount_code,omitempty"`
	PaymentSessionID string    `json:"payment_session_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string     { return EventCreated }
func (e OrderCreatedEvent) AggregateID() string { return e.OrderID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:          o.ID,
		UserID:           o.UserID,
		Total:            o.Total,
		DiscountCode:     o.DiscountCode,
		PaymentSessionID: o.PaymentSessionID,
		OccurredAt:       time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted after a guarded status write succeeds.
type OrderStatusChangedEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderStatusChangedEvent) EventName() string     { return EventStatusChanged }
func (e OrderStatusChangedEvent) AggregateID() string { return e.OrderID }

func NewOrderStatusChangedEvent(o *Order, from Status, reason string) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		From:       from,
		To:         o.Status,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
