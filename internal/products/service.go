package products

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads and admin product management.
type Service interface {
	ListProducts(ctx context.Context, filters ListFilters, params pagination.Params) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	StockInfo(ctx context.Context, id uuid.UUID) (*StockInfoDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

// updateRetry replays an admin edit that lost the version race to a
// concurrent stock movement.
var updateRetry = db.RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond}

type service struct {
	repo  *Repository
	retry db.RetryPolicy
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, retry: updateRetry}, nil
}

func (s *service) ListProducts(ctx context.Context, filters ListFilters, params pagination.Params) (*ProductListResult, error) {
	if filters.MinPrice != nil && filters.MaxPrice != nil && filters.MinPrice.GreaterThan(*filters.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price cannot exceed max_price")
	}
	if err := pagination.Validate(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	result := &ProductListResult{Items: make([]ProductDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Items = append(result.Items, ToDTO(row))
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "load product")
	}
	dto := ToDTO(*product)
	return &dto, nil
}

func (s *service) StockInfo(ctx context.Context, id uuid.UUID) (*StockInfoDTO, error) {
	product, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "load product stock")
	}
	return &StockInfoDTO{
		ID:            product.ID,
		Name:          product.Name,
		StockQuantity: product.StockQuantity,
		IsInStock:     product.IsInStock(),
		Price:         product.Price.StringFixed(2),
	}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryToDTO(row))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	category := &models.Category{Name: name, Description: strings.TrimSpace(input.Description)}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	dto := categoryToDTO(*category)
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateProductFields(input.Name, input.Price, input.StockQuantity); err != nil {
		return nil, err
	}
	category, err := s.repo.FindCategory(ctx, input.CategoryID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	product := &models.Product{
		CategoryID:    category.ID,
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		Price:         input.Price.Round(2),
		StockQuantity: input.StockQuantity,
		IsActive:      active,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	product.Category = category
	dto := ToDTO(*product)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	_, err := db.RetryOnConflict(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.applyUpdate(ctx, id, input)
	})
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "reload product")
	}
	dto := ToDTO(*updated)
	return &dto, nil
}

// applyUpdate writes only the columns present in input. Stock is written
// only when the admin sets it explicitly; the version check keeps a stale
// read from overwriting a checkout that committed in between.
func (s *service) applyUpdate(ctx context.Context, id uuid.UUID, input UpdateProductInput) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapLookupErr(err, "load product")
	}

	updates := map[string]any{}
	if input.CategoryID != nil && *input.CategoryID != product.CategoryID {
		category, err := s.repo.FindCategory(ctx, *input.CategoryID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		updates["category_id"] = category.ID
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
		updates["name"] = product.Name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
		updates["price"] = product.Price
	}
	if input.StockQuantity != nil {
		product.StockQuantity = *input.StockQuantity
		updates["stock_quantity"] = product.StockQuantity
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := validateProductFields(product.Name, product.Price, product.StockQuantity); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	ok, err := s.repo.Update(ctx, id, product.Version, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	if !ok {
		return db.ErrVersionConflict
	}
	return nil
}

func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func validateProductFields(name string, price decimal.Decimal, stock int) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	return nil
}

func mapLookupErr(err error, action string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
