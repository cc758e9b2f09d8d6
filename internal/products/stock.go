package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// HasSufficientStock reports whether the product can cover qty units.
func HasSufficientStock(p models.Product, qty int) bool {
	return p.StockQuantity >= qty
}

// Inventory is the only writer of products.stock_quantity. Both operations
// must run on the caller's transaction.
type Inventory struct{}

func NewInventory() Inventory {
	return Inventory{}
}

// Decrease subtracts qty when enough stock exists. The WHERE clause is the
// availability check, so concurrent decrements can never drive stock below zero.
func (Inventory) Decrease(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock update")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity - ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND stock_quantity >= ?
	`, qty, time.Now().UTC(), productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrease stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return InsufficientStockError(product, qty)
}

// Increase returns qty units to stock. There is no upper bound.
func (Inventory) Increase(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock update")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity + ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ?
	`, qty, time.Now().UTC(), productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increase stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// InsufficientStockError is the domain failure surfaced to clients when a
// product cannot cover the requested quantity.
func InsufficientStockError(p models.Product, requested int) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeDomain, "insufficient stock for %s: available %d", p.Name, p.StockQuantity).
		WithDetails(map[string]any{
			"product_id": p.ID.String(),
			"available":  p.StockQuantity,
			"requested":  requested,
		})
}
