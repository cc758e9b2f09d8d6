package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the per-item snapshot carried on order events.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     string    `json:"price"`
}

// OrderCreatedEvent is emitted once a checkout commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	UserID      uuid.UUID   `json:"user_id"`
	TotalAmount string      `json:"total_amount"`
	Items       []OrderLine `json:"items"`
}

// OrderCancelledEvent is emitted after stock and balance were restored.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	RefundedAmount string            `json:"refunded_amount"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// OrderStatusChangedEvent reports an administrative status change.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// BalanceCreditedEvent reports a balance top up.
type BalanceCreditedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Amount     string    `json:"amount"`
	NewBalance string    `json:"new_balance"`
}
