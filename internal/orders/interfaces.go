package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	List(ctx context.Context, filters AdminFilters, params pagination.Params) ([]models.Order, string, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	StatusTotals(ctx context.Context, userID uuid.UUID) ([]StatusTotal, error)
}

// StatusTotal is one order's status and amount, the input to the summary.
type StatusTotal struct {
	Status      enums.OrderStatus
	TotalAmount decimal.Decimal
}
