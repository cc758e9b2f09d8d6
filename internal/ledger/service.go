package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service records and lists balance movements.
type Service interface {
	RecordEntry(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.BalanceEntry, error)
	ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryList, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures one balance movement after it was applied.
type RecordEntryInput struct {
	UserID       uuid.UUID
	Kind         enums.BalanceEntryKind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	OrderID      *uuid.UUID
}

// EntryDTO is the public shape of a balance movement.
type EntryDTO struct {
	ID           uuid.UUID              `json:"id"`
	Kind         enums.BalanceEntryKind `json:"kind"`
	Amount       string                 `json:"amount"`
	BalanceAfter string                 `json:"balance_after"`
	OrderID      *uuid.UUID             `json:"order_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// EntryList is one cursor page of balance movements.
type EntryList struct {
	Items      []EntryDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordEntry(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.BalanceEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("invalid balance entry kind %q", input.Kind)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("balance entry amount must be positive")
	}
	if input.BalanceAfter.IsNegative() {
		return nil, fmt.Errorf("balance after entry cannot be negative")
	}

	entry := &models.BalanceEntry{
		UserID:       input.UserID,
		Kind:         input.Kind,
		Amount:       input.Amount,
		BalanceAfter: input.BalanceAfter,
		OrderID:      input.OrderID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryList, error) {
	if err := pagination.Validate(params); err != nil {
		return nil, err
	}
	entries, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list balance entries")
	}
	out := &EntryList{Items: make([]EntryDTO, 0, len(entries)), NextCursor: next}
	for _, e := range entries {
		out.Items = append(out.Items, EntryDTO{
			ID:           e.ID,
			Kind:         e.Kind,
			Amount:       e.Amount.StringFixed(2),
			BalanceAfter: e.BalanceAfter.StringFixed(2),
			OrderID:      e.OrderID,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out, nil
}
