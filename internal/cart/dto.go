package cart

import (
	"time"

	"github.com/google/uuid"

	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartItemDTO is the public cart line shape.
type CartItemDTO struct {
	ID           uuid.UUID            `json:"id"`
	ProductID    uuid.UUID            `json:"product_id"`
	Product      *products.ProductDTO `json:"product,omitempty"`
	Quantity     int                  `json:"quantity"`
	TotalPrice   string               `json:"total_price"`
	CanBeOrdered bool                 `json:"can_be_ordered"`
	AddedAt      time.Time            `json:"added_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SummaryDTO is the cart totals payload.
type SummaryDTO struct {
	TotalItems int           `json:"total_items"`
	TotalPrice string        `json:"total_price"`
	Items      []CartItemDTO `json:"items"`
}

// AddItemInput is the validated payload for adding a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

func ToDTO(item models.CartItem) CartItemDTO {
	dto := CartItemDTO{
		ID:           item.ID,
		ProductID:    item.ProductID,
		Quantity:     item.Quantity,
		TotalPrice:   item.LineTotal().StringFixed(2),
		CanBeOrdered: CanBeOrdered(item),
		AddedAt:      item.AddedAt,
		UpdatedAt:    item.UpdatedAt,
	}
	if item.Product != nil {
		p := products.ToDTO(*item.Product)
		dto.Product = &p
	}
	return dto
}

func toDTOs(items []models.CartItem) []CartItemDTO {
	out := make([]CartItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, ToDTO(item))
	}
	return out
}
