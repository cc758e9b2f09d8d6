package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository manages persistence for balance entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.BalanceEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BalanceEntry, string, error)
	ListBalanceDrift(ctx context.Context, limit int) ([]BalanceDrift, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.BalanceEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.BalanceEntry, string, error) {
	qb, err := pagination.Newest(r.db.WithContext(ctx).Where("user_id = ?", userID), params)
	if err != nil {
		return nil, "", err
	}

	var entries []models.BalanceEntry
	if err := qb.Find(&entries).Error; err != nil {
		return nil, "", err
	}
	entries, next := pagination.Trim(entries, params, func(e models.BalanceEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return entries, next, nil
}
