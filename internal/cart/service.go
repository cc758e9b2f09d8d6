package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the signed-in user's cart.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]CartItemDTO, error)
	Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartItemDTO, error)
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItemDTO, error)
	Remove(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) (int64, error)
	Summary(ctx context.Context, userID uuid.UUID) (*SummaryDTO, error)
}

type service struct {
	repo     CartRepository
	products productLoader
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds a cart service.
func NewService(repo CartRepository, productRepo productLoader, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: productRepo, tx: tx, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]CartItemDTO, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return toDTOs(items), nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartItemDTO, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.products.FindActiveByID(ctx, input.ProductID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	var itemID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		id, err := s.upsertLine(ctx, tx, userID, *product, input.Quantity)
		itemID = id
		return err
	})
	if err != nil && db.IsUniqueViolation(err, "ux_cart_items_user_product") {
		// a concurrent add created the line first; merge into it
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			id, err := s.upsertLine(ctx, tx, userID, *product, input.Quantity)
			itemID = id
			return err
		})
	}
	if err != nil {
		return nil, asDomainOrDependency(err, "add cart item")
	}

	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, userID.String())
		s.logg.Info(logCtx, fmt.Sprintf("cart line %s now holds product %s", itemID, product.ID))
	}
	return s.reload(ctx, userID, itemID)
}

func (s *service) upsertLine(ctx context.Context, tx *gorm.DB, userID uuid.UUID, product models.Product, qty int) (uuid.UUID, error) {
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByUserAndProduct(ctx, userID, product.ID)
	if err != nil && !db.IsNotFound(err) {
		return uuid.Nil, err
	}
	if existing != nil {
		merged := existing.Quantity + qty
		if !products.HasSufficientStock(product, merged) {
			return uuid.Nil, products.InsufficientStockError(product, merged)
		}
		return existing.ID, repo.UpdateQuantity(ctx, existing.ID, merged)
	}
	if !products.HasSufficientStock(product, qty) {
		return uuid.Nil, products.InsufficientStockError(product, qty)
	}
	item := &models.CartItem{UserID: userID, ProductID: product.ID, Quantity: qty}
	if err := repo.Create(ctx, item); err != nil {
		return uuid.Nil, err
	}
	return item.ID, nil
}

func (s *service) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItemDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item, err := s.repo.FindForUser(ctx, itemID, userID)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	if item.Product == nil || !item.Product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeDomain, "product is no longer available")
	}
	if !products.HasSufficientStock(*item.Product, quantity) {
		return nil, products.InsufficientStockError(*item.Product, quantity)
	}
	if err := s.repo.UpdateQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart quantity")
	}
	return s.reload(ctx, userID, item.ID)
}

func (s *service) Remove(ctx context.Context, userID, itemID uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, itemID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return n, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*SummaryDTO, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart summary")
	}
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(item.LineTotal())
		count += item.Quantity
	}
	return &SummaryDTO{
		TotalItems: count,
		TotalPrice: total.Round(2).StringFixed(2),
		Items:      toDTOs(items),
	}, nil
}

func (s *service) reload(ctx context.Context, userID, itemID uuid.UUID) (*CartItemDTO, error) {
	item, err := s.repo.FindForUser(ctx, itemID, userID)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	dto := ToDTO(*item)
	return &dto, nil
}

func mapLookupErr(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
}

func asDomainOrDependency(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
