package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// BalanceEntry records one immutable balance movement.
type BalanceEntry struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Kind         enums.BalanceEntryKind `gorm:"column:kind;type:text;not null"`
	Amount       decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceAfter decimal.Decimal        `gorm:"column:balance_after;type:numeric(12,2);not null"`
	OrderID      *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (e *BalanceEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
