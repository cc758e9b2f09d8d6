package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func ptr[T any](v T) *T { return &v }

func TestListProductsFilters(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	laptop := dbtest.CreateProduct(t, conn, "Gaming Laptop", "999.99", 5)
	book := dbtest.CreateProduct(t, conn, "Go Programming Book", "39.99", 10)
	hidden := dbtest.CreateProduct(t, conn, "Old Laptop", "99.99", 1)
	require.NoError(t, conn.Model(hidden).Update("is_active", false).Error)

	all, err := svc.ListProducts(ctx, ListFilters{}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Empty(t, all.NextCursor)

	byCategory, err := svc.ListProducts(ctx, ListFilters{CategoryID: &book.CategoryID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, byCategory.Items, 1)
	assert.Equal(t, book.ID, byCategory.Items[0].ID)
	require.NotNil(t, byCategory.Items[0].Category)

	bySearch, err := svc.ListProducts(ctx, ListFilters{Search: "laptop"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, bySearch.Items, 1)
	assert.Equal(t, laptop.ID, bySearch.Items[0].ID)

	byPrice, err := svc.ListProducts(ctx, ListFilters{
		MinPrice: ptr(decimal.RequireFromString("40")),
		MaxPrice: ptr(decimal.RequireFromString("1000")),
	}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, byPrice.Items, 1)
	assert.Equal(t, "999.99", byPrice.Items[0].Price)
}

func TestListProductsRejectsInvertedPriceRange(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ListProducts(context.Background(), ListFilters{
		MinPrice: ptr(decimal.RequireFromString("50")),
		MaxPrice: ptr(decimal.RequireFromString("10")),
	}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListProductsRejectsBadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ListProducts(context.Background(), ListFilters{}, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListProductsPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	for i := 0; i < 3; i++ {
		dbtest.CreateProduct(t, conn, "Widget", "1.50", 1)
	}

	page, err := svc.ListProducts(context.Background(), ListFilters{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestGetProductHidesInactive(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "T-Shirt", "19.99", 3)

	dto, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, dto.IsInStock)

	require.NoError(t, svc.DeactivateProduct(ctx, product.ID))
	_, err = svc.GetProduct(ctx, product.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	assert.True(t, pkgerrors.IsCode(svc.DeactivateProduct(ctx, uuid.New()), pkgerrors.CodeNotFound))
}

func TestStockInfo(t *testing.T) {
	svc, conn := newTestService(t)
	product := dbtest.CreateProduct(t, conn, "Jeans", "49.99", 0)

	info, err := svc.StockInfo(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.StockQuantity)
	assert.False(t, info.IsInStock)
	assert.Equal(t, "49.99", info.Price)
}

func TestCreateAndUpdateProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Electronics", Description: "Gadgets"})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Electronics"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		CategoryID:    category.ID,
		Name:          "Smartphone",
		Price:         decimal.RequireFromString("599.99"),
		StockQuantity: 15,
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, "599.99", created.Price)

	updated, err := svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Price:         ptr(decimal.RequireFromString("549.50")),
		StockQuantity: ptr(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "549.50", updated.Price)
	assert.Equal(t, 20, updated.StockQuantity)
	assert.Equal(t, "Smartphone", updated.Name)

	_, err = svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Price: ptr(decimal.Zero)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateProduct(ctx, created.ID, UpdateProductInput{StockQuantity: ptr(-1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestCreateProductValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	category := dbtest.CreateCategory(t, conn)

	_, err := svc.CreateProduct(ctx, CreateProductInput{CategoryID: uuid.New(), Name: "Ghost", Price: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(ctx, CreateProductInput{CategoryID: category.ID, Name: "Free", Price: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(ctx, CreateProductInput{CategoryID: category.ID, Name: " ", Price: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

// interleaveDecrease runs a checkout-style stock decrement right before the
// next n admin UPDATE statements reach the database.
func interleaveDecrease(t *testing.T, conn *gorm.DB, productID uuid.UUID, qty, n int) {
	t.Helper()
	remaining := n
	err := conn.Callback().Update().Before("gorm:update").Register("test:interleave_decrease", func(tx *gorm.DB) {
		if remaining == 0 {
			return
		}
		remaining--
		require.NoError(t, NewInventory().Decrease(context.Background(), conn, productID, qty))
	})
	require.NoError(t, err)
}

func TestUpdateProductKeepsConcurrentStockDecrease(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Widget", "19.99", 10)

	interleaveDecrease(t, conn, product.ID, 3, 1)

	updated, err := svc.UpdateProduct(ctx, product.ID, UpdateProductInput{Name: ptr("Widget v2")})
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", updated.Name)
	assert.Equal(t, 7, updated.StockQuantity)
	assert.Equal(t, 7, dbtest.ReloadProduct(t, conn, product.ID).StockQuantity)
}

func TestUpdateProductGivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Widget", "19.99", 10)

	interleaveDecrease(t, conn, product.ID, 1, 100)

	_, err := svc.UpdateProduct(ctx, product.ID, UpdateProductInput{StockQuantity: ptr(50)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	reloaded := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 7, reloaded.StockQuantity)
	assert.Equal(t, "Widget", reloaded.Name)
}

func TestUpdateProductWithoutChangesKeepsVersion(t *testing.T) {
	svc, conn := newTestService(t)
	product := dbtest.CreateProduct(t, conn, "Widget", "19.99", 4)
	before := dbtest.ReloadProduct(t, conn, product.ID).Version

	updated, err := svc.UpdateProduct(context.Background(), product.ID, UpdateProductInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.StockQuantity)
	assert.Equal(t, before, dbtest.ReloadProduct(t, conn, product.ID).Version)
}
