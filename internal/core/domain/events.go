package domain

import "time"

type OrderEventType string

const (
	OrderEventCreated   OrderEventType = "order.created"
	OrderEventCancelled OrderEventType = "order.cancelled"
)

// OrderEvent is the message published after an order commit or
// cancellation. Delivery is best-effort; the order itself is already
// durable by the time an event is emitted.
type OrderEvent struct {
	Type        OrderEventType `json:"type"`
	OrderID     string         `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	UserID      string         `json:"user_id"`
	TotalAmount string         `json:"total_amount"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
