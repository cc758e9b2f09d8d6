package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Reason explains the outcome of Evaluate.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonEmptyCart           Reason = "empty_cart"
	ReasonUnavailableProduct  Reason = "unavailable_product"
	ReasonInsufficientBalance Reason = "insufficient_balance"
)

// Line is a cart item with its derived total.
type Line struct {
	Item      models.CartItem
	LineTotal decimal.Decimal
}

// Evaluation answers whether a cart can be ordered and for how much.
type Evaluation struct {
	Lines       []Line
	TotalAmount decimal.Decimal
	TotalItems  int
	Balance     decimal.Decimal
	Shortfall   decimal.Decimal
	Unavailable *models.CartItem
	Reason      Reason
}

// CanBeOrdered reports whether the line's product is active and in stock for
// the line quantity.
func CanBeOrdered(item models.CartItem) bool {
	if item.Product == nil || !item.Product.IsActive {
		return false
	}
	return products.HasSufficientStock(*item.Product, item.Quantity)
}

// Evaluate is the single decision used by both checkout and the dry-run
// validation. Checks run in order: empty cart, then availability in cart
// order, then balance. Lines must have their Product loaded.
func Evaluate(items []models.CartItem, balance decimal.Decimal) Evaluation {
	eval := Evaluation{
		Lines:       make([]Line, 0, len(items)),
		TotalAmount: decimal.Zero,
		Balance:     balance,
		Shortfall:   decimal.Zero,
		Reason:      ReasonOK,
	}
	if len(items) == 0 {
		eval.Reason = ReasonEmptyCart
		return eval
	}

	for i := range items {
		item := items[i]
		total := item.LineTotal()
		eval.Lines = append(eval.Lines, Line{Item: item, LineTotal: total})
		eval.TotalAmount = eval.TotalAmount.Add(total)
		eval.TotalItems += item.Quantity
		if eval.Unavailable == nil && !CanBeOrdered(item) {
			eval.Unavailable = &items[i]
		}
	}
	eval.TotalAmount = eval.TotalAmount.Round(2)

	if eval.Unavailable != nil {
		eval.Reason = ReasonUnavailableProduct
		return eval
	}
	if balance.LessThan(eval.TotalAmount) {
		eval.Reason = ReasonInsufficientBalance
		eval.Shortfall = eval.TotalAmount.Sub(balance)
	}
	return eval
}

// CanOrder reports whether checkout may proceed.
func (e Evaluation) CanOrder() bool {
	return e.Reason == ReasonOK
}

// Err returns the domain error checkout surfaces for a failed evaluation.
func (e Evaluation) Err() error {
	switch e.Reason {
	case ReasonOK:
		return nil
	case ReasonEmptyCart:
		return pkgerrors.New(pkgerrors.CodeDomain, "cart is empty")
	case ReasonUnavailableProduct:
		item := e.Unavailable
		if item.Product == nil {
			return pkgerrors.New(pkgerrors.CodeDomain, "a product in the cart is no longer available")
		}
		if !item.Product.IsActive {
			return pkgerrors.Newf(pkgerrors.CodeDomain, "product %s is no longer available", item.Product.Name).
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		return products.InsufficientStockError(*item.Product, item.Quantity)
	case ReasonInsufficientBalance:
		return users.InsufficientBalanceError(e.TotalAmount, e.Balance)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown cart evaluation reason %q", e.Reason))
	}
}

// Message is the human readable outcome shown by the validation endpoint.
func (e Evaluation) Message() string {
	if e.Reason == ReasonOK {
		return "order can be created"
	}
	if typed := pkgerrors.As(e.Err()); typed != nil {
		return typed.Message()
	}
	return string(e.Reason)
}
