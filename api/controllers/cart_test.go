package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	userID   uuid.UUID
	added    cart.AddItemInput
	itemID   uuid.UUID
	quantity int
	cleared  bool
	err      error
}

func (s *stubCartService) List(_ context.Context, userID uuid.UUID) ([]cart.CartItemDTO, error) {
	s.userID = userID
	return []cart.CartItemDTO{{ID: uuid.New(), Quantity: 2, TotalPrice: "20.00"}}, s.err
}

func (s *stubCartService) Add(_ context.Context, userID uuid.UUID, input cart.AddItemInput) (*cart.CartItemDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.userID, s.added = userID, input
	return &cart.CartItemDTO{ID: uuid.New(), ProductID: input.ProductID, Quantity: input.Quantity}, nil
}

func (s *stubCartService) SetQuantity(_ context.Context, userID, itemID uuid.UUID, quantity int) (*cart.CartItemDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.userID, s.itemID, s.quantity = userID, itemID, quantity
	return &cart.CartItemDTO{ID: itemID, Quantity: quantity}, nil
}

func (s *stubCartService) Remove(_ context.Context, userID, itemID uuid.UUID) error {
	s.userID, s.itemID = userID, itemID
	return s.err
}

func (s *stubCartService) Clear(_ context.Context, userID uuid.UUID) (int64, error) {
	s.userID, s.cleared = userID, true
	return 2, s.err
}

func (s *stubCartService) Summary(_ context.Context, userID uuid.UUID) (*cart.SummaryDTO, error) {
	s.userID = userID
	return &cart.SummaryDTO{TotalItems: 3, TotalPrice: "299.97", Items: []cart.CartItemDTO{}}, s.err
}

func TestCartRequiresUser(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"list":    CartList(&stubCartService{}, testLogger()),
		"add":     CartAdd(&stubCartService{}, testLogger()),
		"clear":   CartClear(&stubCartService{}, testLogger()),
		"summary": CartSummary(&stubCartService{}, testLogger()),
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, http.MethodPost, "/api/v1/cart", `{}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCartAdd(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	svc := &stubCartService{}
	body := `{"product_id":"` + productID.String() + `","quantity":3}`
	rec := serve(CartAdd(svc, testLogger()), http.MethodPost, "/api/v1/cart/add", body, asUser(userID))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, userID, svc.userID)
	assert.Equal(t, cart.AddItemInput{ProductID: productID, Quantity: 3}, svc.added)
}

func TestCartAddRejectsZeroQuantity(t *testing.T) {
	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	rec := serve(CartAdd(&stubCartService{}, testLogger()), http.MethodPost, "/api/v1/cart/add", body, asUser(uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "quantity")
}

func TestCartAddSurfacesStockShortfall(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeDomain, "insufficient stock for Laptop: requested 5, available 2").
		WithDetails(map[string]any{"required": 5, "available": 2})}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":5}`
	rec := serve(CartAdd(svc, testLogger()), http.MethodPost, "/api/v1/cart/add", body, asUser(uuid.New()))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeDomain), apiErr.Code)
	assert.Contains(t, apiErr.Message, "insufficient stock")
}

func TestCartSetQuantityShapes(t *testing.T) {
	userID, itemID := uuid.New(), uuid.New()

	svc := &stubCartService{}
	rec := serve(CartSetQuantity(svc, testLogger()), http.MethodPost, "/api/v1/cart/"+itemID.String()+"/quantity", `{"quantity":4}`,
		asUser(userID), withParam("id", itemID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	wrapped := decodeData[cartQuantityResponse](t, rec)
	assert.Equal(t, "quantity updated", wrapped.Message)
	require.NotNil(t, wrapped.CartItem)
	assert.Equal(t, 4, wrapped.CartItem.Quantity)
	assert.Equal(t, itemID, svc.itemID)

	rec = serve(CartUpdate(svc, testLogger()), http.MethodPut, "/api/v1/cart/"+itemID.String(), `{"quantity":2}`,
		asUser(userID), withParam("id", itemID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[cart.CartItemDTO](t, rec).Quantity)
}

func TestCartRemoveNotFound(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")}
	rec := serve(CartRemove(svc, testLogger()), http.MethodDelete, "/api/v1/cart/"+itemID.String()+"/remove", "",
		asUser(uuid.New()), withParam("id", itemID.String()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartClearAndSummary(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{}

	rec := serve(CartClear(svc, testLogger()), http.MethodPost, "/api/v1/cart/clear", "", asUser(userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.cleared)
	assert.Equal(t, "cart cleared", decodeData[messageResponse](t, rec).Message)

	rec = serve(CartSummary(svc, testLogger()), http.MethodGet, "/api/v1/cart/summary", "", asUser(userID))
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData[cart.SummaryDTO](t, rec)
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, "299.97", summary.TotalPrice)
}
