package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductDTO is the public product shape.
type ProductDTO struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Price         string       `json:"price"`
	StockQuantity int          `json:"stock_quantity"`
	IsActive      bool         `json:"is_active"`
	IsInStock     bool         `json:"is_in_stock"`
	CategoryID    uuid.UUID    `json:"category_id"`
	Category      *CategoryDTO `json:"category,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// StockInfoDTO answers the lightweight availability lookup.
type StockInfoDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stock_quantity"`
	IsInStock     bool      `json:"is_in_stock"`
	Price         string    `json:"price"`
}

// ProductListResult is one cursor page of products.
type ProductListResult struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ListFilters narrows the public product listing.
type ListFilters struct {
	CategoryID *uuid.UUID
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
}

// CreateCategoryInput holds the validated payload to create a category.
type CreateCategoryInput struct {
	Name        string
	Description string
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID    uuid.UUID
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      *bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	CategoryID    *uuid.UUID
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	IsActive      *bool
}

func categoryToDTO(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

// ToDTO maps a product row into its public shape.
func ToDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		IsInStock:     p.IsInStock(),
		CategoryID:    p.CategoryID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Category != nil {
		c := categoryToDTO(*p.Category)
		dto.Category = &c
	}
	return dto
}
