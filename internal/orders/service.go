package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/tracing"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BalanceMover debits and refunds user balances on the caller's transaction.
type BalanceMover interface {
	AddBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, m users.Movement) (*models.User, error)
	SubtractBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, m users.Movement) (*models.User, error)
}

// StockMover adjusts product stock on the caller's transaction.
type StockMover interface {
	Decrease(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Increase(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Service defines the order lifecycle.
type Service interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*OrderDTO, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	GetOrderSummary(ctx context.Context, userID uuid.UUID) (*SummaryDTO, error)
	ValidateOrderCreation(ctx context.Context, userID uuid.UUID) (*ValidationDTO, error)
	UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	AdminListOrders(ctx context.Context, filters AdminFilters, params pagination.Params) (*OrderList, error)
}

// ServiceParams groups the collaborators of the order service.
type ServiceParams struct {
	Repo      Repository
	Carts     cart.CartRepository
	Users     *users.Repository
	Accounts  BalanceMover
	Inventory StockMover
	Tx        txRunner
	Outbox    outboxPublisher
	Retry     db.RetryPolicy
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	carts     cart.CartRepository
	users     *users.Repository
	accounts  BalanceMover
	inventory StockMover
	tx        txRunner
	outbox    outboxPublisher
	retry     db.RetryPolicy
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	tracer    trace.Tracer
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if p.Accounts == nil {
		return nil, fmt.Errorf("balance mover required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("stock mover required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:      p.Repo,
		carts:     p.Carts,
		users:     p.Users,
		accounts:  p.Accounts,
		inventory: p.Inventory,
		tx:        p.Tx,
		outbox:    p.Outbox,
		retry:     p.Retry,
		metrics:   p.Metrics,
		logg:      p.Logger,
		tracer:    tracing.Tracer("storefront/orders"),
	}
	onRetry := p.Retry.OnRetry
	svc.retry.OnRetry = func(attempt int) {
		svc.metrics.IncCheckoutRetry()
		if onRetry != nil {
			onRetry(attempt)
		}
	}
	return svc, nil
}

// CreateOrderFromCart converts the user's cart into a pending order. Stock,
// balance, cart and outbox writes commit together or not at all; only a lost
// balance version race replays the transaction.
func (s *service) CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "orders.CreateOrderFromCart", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()
	started := time.Now()

	var reason cart.Reason
	failed := failure{UserID: userID}
	order, err := db.RetryOnConflict(ctx, s.retry, func(ctx context.Context) (*models.Order, error) {
		var created *models.Order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			user, err := s.users.WithTx(tx).FindByID(ctx, userID)
			if err != nil {
				return mapUserErr(err)
			}
			lines, err := s.carts.WithTx(tx).ListByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}

			eval := cart.Evaluate(lines, user.Balance)
			reason = eval.Reason
			if !eval.CanOrder() {
				return eval.Err()
			}

			failed.OrderID = uuid.New()
			failed.Amount = &eval.TotalAmount
			created, err = s.placeOrder(ctx, tx, failed.OrderID, user, eval)
			return err
		})
		return created, err
	})

	s.metrics.ObserveCheckout(checkoutResult(err, reason), time.Since(started))
	if err != nil {
		recordSpanError(span, err)
		s.logFailure(ctx, "create order failed", err, failed)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
		s.logg.Info(logCtx, fmt.Sprintf("order created total=%s items=%d", order.TotalAmount.StringFixed(2), order.ItemsCount()))
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) placeOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, user *models.User, eval cart.Evaluation) (*models.Order, error) {
	order := &models.Order{
		ID:          orderID,
		UserID:      user.ID,
		Status:      enums.OrderStatusPending,
		TotalAmount: eval.TotalAmount,
		Items:       make([]models.OrderItem, 0, len(eval.Lines)),
	}
	lines := make([]payloads.OrderLine, 0, len(eval.Lines))
	for _, line := range eval.Lines {
		product := line.Item.Product
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Item.Quantity,
			Price:       product.Price,
			TotalPrice:  line.LineTotal.Round(2),
		})
		lines = append(lines, payloads.OrderLine{
			ProductID: product.ID,
			Quantity:  line.Item.Quantity,
			Price:     product.Price.StringFixed(2),
		})
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	if _, err := s.accounts.SubtractBalance(ctx, tx, user.ID, order.TotalAmount, users.Movement{
		Kind:    enums.BalanceEntryOrderDebit,
		OrderID: &order.ID,
	}); err != nil {
		return nil, err
	}

	for _, line := range eval.Lines {
		if err := s.inventory.Decrease(ctx, tx, line.Item.ProductID, line.Item.Quantity); err != nil {
			return nil, err
		}
	}

	if _, err := s.carts.WithTx(tx).DeleteAllForUser(ctx, user.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      user.ID,
			TotalAmount: order.TotalAmount.StringFixed(2),
			Items:       lines,
		},
		Version: 1,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}
	return order, nil
}

// CancelOrder reverses a pending or paid order: stock is returned, the total
// is refunded and the order becomes cancelled. The cart is not restored.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "orders.CancelOrder", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	failed := failure{UserID: userID, OrderID: orderID}
	order, err := db.RetryOnConflict(ctx, s.retry, func(ctx context.Context) (*models.Order, error) {
		var cancelled *models.Order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.repo.WithTx(tx).FindForUser(ctx, orderID, userID)
			if err != nil {
				return mapOrderErr(err)
			}
			failed.Amount = &order.TotalAmount
			actor := outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)}
			cancelled, err = s.reverse(ctx, tx, order, actor)
			return err
		})
		return cancelled, err
	})
	if err != nil {
		recordSpanError(span, err)
		s.logFailure(ctx, "cancel order failed", err, failed)
		return nil, err
	}

	s.metrics.IncCancellation()
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), orderID.String())
		s.logg.Info(logCtx, fmt.Sprintf("order cancelled refund=%s", order.TotalAmount.StringFixed(2)))
	}
	dto := ToDTO(*order)
	return &dto, nil
}

// reverse runs the cancellation writes on tx. The guarded status update goes
// first so a concurrent cancel fails before any stock or balance moves.
func (s *service) reverse(ctx context.Context, tx *gorm.DB, order *models.Order, actor outbox.ActorRef) (*models.Order, error) {
	if !order.Status.IsCancellable() {
		return nil, orderNotCancellable(order.Status)
	}
	previous := order.Status
	now := time.Now().UTC()

	ok, err := s.repo.WithTx(tx).MarkCancelled(ctx, order.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !ok {
		return nil, orderNotCancellable(order.Status)
	}

	for _, item := range order.Items {
		if err := s.inventory.Increase(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if _, err := s.accounts.AddBalance(ctx, tx, order.UserID, order.TotalAmount, users.Movement{
		Kind:    enums.BalanceEntryOrderRefund,
		OrderID: &order.ID,
	}); err != nil {
		return nil, err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &actor,
		Data: payloads.OrderCancelledEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: previous,
			RefundedAmount: order.TotalAmount.StringFixed(2),
			CancelledAt:    now,
		},
		Version: 1,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled")
	}

	reloaded, err := s.repo.WithTx(tx).FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return reloaded, nil
}

func (s *service) GetOrderSummary(ctx context.Context, userID uuid.UUID) (*SummaryDTO, error) {
	rows, err := s.repo.StatusTotals(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order summary")
	}
	spent := decimal.Zero
	active := 0
	for _, row := range rows {
		if row.Status != enums.OrderStatusCancelled {
			spent = spent.Add(row.TotalAmount)
		}
		if row.Status.IsActive() {
			active++
		}
	}
	return &SummaryDTO{
		TotalOrders:  len(rows),
		TotalSpent:   spent.Round(2).StringFixed(2),
		ActiveOrders: active,
	}, nil
}

// ValidateOrderCreation answers whether checkout would succeed right now
// without writing anything.
func (s *service) ValidateOrderCreation(ctx context.Context, userID uuid.UUID) (*ValidationDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	lines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	eval := cart.Evaluate(lines, user.Balance)
	return &ValidationDTO{
		CanCreate:   eval.CanOrder(),
		Message:     eval.Message(),
		TotalAmount: eval.TotalAmount.StringFixed(2),
		Shortfall:   eval.Shortfall.StringFixed(2),
	}, nil
}

// UpdateStatus is the administrative status override. There is no transition
// table; cancelled is terminal and moving to cancelled performs the reversal.
func (s *service) UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status).
			WithDetails(map[string]any{"status": "must be one of pending, paid, processing, shipped, delivered, cancelled"})
	}
	ctx, span := s.tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.status", status.String()),
	))
	defer span.End()

	cancelled := false
	failed := failure{OrderID: orderID}
	order, err := db.RetryOnConflict(ctx, s.retry, func(ctx context.Context) (*models.Order, error) {
		var updated *models.Order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByID(ctx, orderID)
			if err != nil {
				return mapOrderErr(err)
			}
			failed.UserID = order.UserID
			failed.Amount = &order.TotalAmount
			if order.Status == enums.OrderStatusCancelled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot change status")
			}
			if order.Status == status {
				updated = order
				return nil
			}
			if status == enums.OrderStatusCancelled {
				updated, err = s.reverse(ctx, tx, order, actor)
				cancelled = err == nil
				return err
			}

			ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, status)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &actor,
				Data: payloads.OrderStatusChangedEvent{
					OrderID: order.ID,
					UserID:  order.UserID,
					From:    order.Status,
					To:      status,
				},
				Version: 1,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status changed")
			}
			updated, err = repo.FindByID(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			return nil
		})
		return updated, err
	})
	if err != nil {
		recordSpanError(span, err)
		s.logFailure(ctx, fmt.Sprintf("update order status to %s failed", status), err, failed)
		return nil, err
	}
	if cancelled {
		s.metrics.IncCancellation()
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if err := pagination.Validate(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toList(rows, next), nil
}

func (s *service) GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindForUser(ctx, orderID, userID)
	if err != nil {
		return nil, mapOrderErr(err)
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) AdminListOrders(ctx context.Context, filters AdminFilters, params pagination.Params) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", *filters.Status)
	}
	if err := pagination.Validate(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toList(rows, next), nil
}

// failure is the order context attached to an unexpected lifecycle error.
type failure struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	Amount  *decimal.Decimal
}

// logFailure logs errors the client cannot fix. Business-rule outcomes are
// left to the HTTP layer.
func (s *service) logFailure(ctx context.Context, msg string, err error, f failure) {
	if s.logg == nil || isClientError(err) {
		return
	}
	if f.UserID != uuid.Nil {
		ctx = s.logg.WithUserID(ctx, f.UserID.String())
	}
	if f.OrderID != uuid.Nil {
		ctx = s.logg.WithOrderID(ctx, f.OrderID.String())
	}
	if f.Amount != nil {
		ctx = s.logg.WithField(ctx, "amount", f.Amount.StringFixed(2))
	}
	s.logg.Error(ctx, msg, err)
}

func isClientError(err error) bool {
	for _, code := range []pkgerrors.Code{
		pkgerrors.CodeDomain,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeValidation,
	} {
		if pkgerrors.IsCode(err, code) {
			return true
		}
	}
	return false
}

func orderNotCancellable(status enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot be cancelled in status %s", status).
		WithDetails(map[string]any{"status": status.String()})
}

func mapOrderErr(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func mapUserErr(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}

func checkoutResult(err error, reason cart.Reason) string {
	switch {
	case err == nil:
		return metrics.CheckoutResultSuccess
	case errors.Is(err, db.ErrVersionConflict):
		return metrics.CheckoutResultConflict
	case pkgerrors.IsCode(err, pkgerrors.CodeDomain):
		switch reason {
		case cart.ReasonEmptyCart:
			return metrics.CheckoutResultEmptyCart
		case cart.ReasonInsufficientBalance:
			return metrics.CheckoutResultInsufficientBalance
		}
		return metrics.CheckoutResultUnavailableProduct
	default:
		return metrics.CheckoutResultError
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
