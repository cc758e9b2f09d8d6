package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderItemDTO is the public order line shape.
type OrderItemDTO struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Price       string    `json:"price"`
	TotalPrice  string    `json:"total_price"`
}

// OrderDTO is the public order shape.
type OrderDTO struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	Status         enums.OrderStatus `json:"status"`
	StatusDisplay  string            `json:"status_display"`
	TotalAmount    string            `json:"total_amount"`
	ItemsCount     int               `json:"items_count"`
	Items          []OrderItemDTO    `json:"items"`
	CanBeCancelled bool              `json:"can_be_cancelled"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// OrderList is one cursor page of orders.
type OrderList struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// SummaryDTO aggregates a user's order history.
type SummaryDTO struct {
	TotalOrders  int    `json:"total_orders"`
	TotalSpent   string `json:"total_spent"`
	ActiveOrders int    `json:"active_orders"`
}

// ValidationDTO is the dry-run checkout answer.
type ValidationDTO struct {
	CanCreate   bool   `json:"can_create"`
	Message     string `json:"message"`
	TotalAmount string `json:"total_amount"`
	Shortfall   string `json:"shortfall"`
}

// AdminFilters narrows the admin order listing.
type AdminFilters struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
}

func ToDTO(order models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
			TotalPrice:  item.TotalPrice.StringFixed(2),
		})
	}
	return OrderDTO{
		ID:             order.ID,
		UserID:         order.UserID,
		Status:         order.Status,
		StatusDisplay:  order.Status.Display(),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		ItemsCount:     order.ItemsCount(),
		Items:          items,
		CanBeCancelled: order.Status.IsCancellable(),
		CancelledAt:    order.CancelledAt,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

func toList(rows []models.Order, next string) *OrderList {
	out := &OrderList{Items: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Items = append(out.Items, ToDTO(row))
	}
	return out
}
