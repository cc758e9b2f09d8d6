package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type entryRecorder interface {
	RecordEntry(ctx context.Context, tx *gorm.DB, input ledger.RecordEntryInput) (*models.BalanceEntry, error)
}

// Movement labels a balance change for the ledger.
type Movement struct {
	Kind    enums.BalanceEntryKind
	OrderID *uuid.UUID
}

// HasSufficientBalance reports whether the user can cover amount.
func HasSufficientBalance(u models.User, amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// Accounts is the only writer of users.balance. Every mutation is a
// compare-and-swap on users.version and appends a ledger entry on the same
// transaction; a lost race surfaces as db.ErrVersionConflict.
type Accounts struct {
	repo   *Repository
	ledger entryRecorder
}

func NewAccounts(repo *Repository, ledger entryRecorder) (*Accounts, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger recorder required")
	}
	return &Accounts{repo: repo, ledger: ledger}, nil
}

// AddBalance credits amount and returns the updated user.
func (a *Accounts) AddBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, m Movement) (*models.User, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	user, err := a.load(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return a.apply(ctx, tx, user, user.Balance.Add(amount), amount, m)
}

// SubtractBalance debits amount, failing with a domain error when the
// balance cannot cover it.
func (a *Accounts) SubtractBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, m Movement) (*models.User, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	user, err := a.load(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if !HasSufficientBalance(*user, amount) {
		return nil, InsufficientBalanceError(amount, user.Balance)
	}
	return a.apply(ctx, tx, user, user.Balance.Sub(amount), amount, m)
}

func (a *Accounts) load(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for balance update")
	}
	user, err := a.repo.WithTx(tx).FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user balance")
	}
	return user, nil
}

func (a *Accounts) apply(ctx context.Context, tx *gorm.DB, user *models.User, next, amount decimal.Decimal, m Movement) (*models.User, error) {
	next = next.Round(2)
	won, err := a.repo.WithTx(tx).CompareAndSetBalance(ctx, user.ID, user.Version, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write balance")
	}
	if !won {
		return nil, db.ErrVersionConflict
	}

	if _, err := a.ledger.RecordEntry(ctx, tx, ledger.RecordEntryInput{
		UserID:       user.ID,
		Kind:         m.Kind,
		Amount:       amount,
		BalanceAfter: next,
		OrderID:      m.OrderID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record balance entry")
	}

	user.Balance = next
	user.Version++
	return user, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount cannot have more than two decimal places")
	}
	return nil
}

// InsufficientBalanceError is the domain failure for a debit the balance
// cannot cover.
func InsufficientBalanceError(required, available decimal.Decimal) *pkgerrors.Error {
	shortfall := required.Sub(available)
	return pkgerrors.Newf(pkgerrors.CodeDomain,
		"insufficient balance: required %s, available %s, shortfall %s",
		required.StringFixed(2), available.StringFixed(2), shortfall.StringFixed(2),
	).WithDetails(map[string]any{
		"required":  required.StringFixed(2),
		"available": available.StringFixed(2),
		"shortfall": shortfall.StringFixed(2),
	})
}
