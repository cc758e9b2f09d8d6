package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. StockQuantity is only decremented through the
// guarded update in the catalog package.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID    uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index"`
	Category      *Category       `gorm:"foreignKey:CategoryID"`
	Name          string          `gorm:"column:name;not null"`
	Description   string          `gorm:"column:description;not null;default:''"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool            `gorm:"column:is_active;not null"`
	Version       int64           `gorm:"column:version;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsInStock reports whether at least one unit is available.
func (p Product) IsInStock() bool {
	return p.StockQuantity > 0
}
