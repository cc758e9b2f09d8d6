package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its items in one statement batch.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByCreation).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByCreation).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID), params)
}

func (r *repository) List(ctx context.Context, filters AdminFilters, params pagination.Params) ([]models.Order, string, error) {
	qb := r.db.WithContext(ctx)
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		qb = qb.Where("user_id = ?", *filters.UserID)
	}
	return r.list(ctx, qb, params)
}

func (r *repository) list(ctx context.Context, qb *gorm.DB, params pagination.Params) ([]models.Order, string, error) {
	qb, err := pagination.Newest(qb, params)
	if err != nil {
		return nil, "", err
	}

	var rows []models.Order
	if err := qb.Preload("Items", orderItemsByCreation).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return rows, next, nil
}

// MarkCancelled moves a cancellable order to cancelled. The status guard makes
// it the serialization point for concurrent cancels: only one caller sees true.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, enums.CancellableOrderStatuses()).
		Updates(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected == 1, res.Error
}

// UpdateStatus writes to only when the row is still in from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) StatusTotals(ctx context.Context, userID uuid.UUID) ([]StatusTotal, error) {
	var rows []StatusTotal
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, total_amount").
		Where("user_id = ?", userID).
		Scan(&rows).Error
	return rows, err
}

func orderItemsByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
