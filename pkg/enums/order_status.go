package enums

import (
	"fmt"
	"slices"
)

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderStatusDisplay = map[OrderStatus]string{
	OrderStatusPending:    "Pending",
	OrderStatusPaid:       "Paid",
	OrderStatusProcessing: "Processing",
	OrderStatusShipped:    "Shipped",
	OrderStatusDelivered:  "Delivered",
	OrderStatusCancelled:  "Cancelled",
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// Display returns the human readable label shown to clients.
func (s OrderStatus) Display() string {
	if label, ok := orderStatusDisplay[s]; ok {
		return label
	}
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsCancellable reports whether a customer may still cancel an order in this status.
func (s OrderStatus) IsCancellable() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

// IsActive reports whether the order is still moving through fulfilment.
func (s OrderStatus) IsActive() bool {
	return slices.Contains(ActiveOrderStatuses(), s)
}

// CancellableOrderStatuses lists the statuses a cancellation may start from.
func CancellableOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusPaid}
}

// ActiveOrderStatuses lists the statuses counted as in-flight orders.
func ActiveOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
