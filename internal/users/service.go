package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type entryLister interface {
	ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ledger.EntryList, error)
}

// Service exposes profile and balance operations for the signed-in user.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileDTO) (*UserDTO, error)
	CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*UserDTO, error)
	ListBalanceEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ledger.EntryList, error)
}

// ServiceParams groups the collaborators of the users service.
type ServiceParams struct {
	Repo     *Repository
	Accounts *Accounts
	Tx       txRunner
	Outbox   outboxPublisher
	Ledger   entryLister
	Retry    db.RetryPolicy
}

type service struct {
	repo     *Repository
	accounts *Accounts
	tx       txRunner
	outbox   outboxPublisher
	ledger   entryLister
	retry    db.RetryPolicy
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if p.Accounts == nil {
		return nil, fmt.Errorf("accounts guard required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	return &service{
		repo:     p.Repo,
		accounts: p.Accounts,
		tx:       p.Tx,
		outbox:   p.Outbox,
		ledger:   p.Ledger,
		retry:    p.Retry,
	}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileDTO) (*UserDTO, error) {
	updates := map[string]any{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "username cannot be empty")
		}
		updates["username"] = username
	}
	if input.Email != nil {
		email := NormalizeEmail(*input.Email)
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be empty")
		}
		updates["email"] = email
	}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}

	if err := s.repo.UpdateProfile(ctx, userID, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or email already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return s.GetProfile(ctx, userID)
}

// CreditBalance tops up the user's balance. The transaction is replayed when
// a concurrent checkout or refund wins the version race.
func (s *service) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*UserDTO, error) {
	return db.RetryOnConflict(ctx, s.retry, func(ctx context.Context) (*UserDTO, error) {
		var out *UserDTO
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			user, err := s.accounts.AddBalance(ctx, tx, userID, amount, Movement{Kind: enums.BalanceEntryTopUp})
			if err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBalanceCredited,
				AggregateType: enums.AggregateUser,
				AggregateID:   user.ID,
				Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
				Data: payloads.BalanceCreditedEvent{
					UserID:     user.ID,
					Amount:     amount.StringFixed(2),
					NewBalance: user.Balance.StringFixed(2),
				},
				Version: 1,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit balance credited")
			}
			out = FromModel(user)
			return nil
		})
		return out, err
	})
}

func (s *service) ListBalanceEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ledger.EntryList, error) {
	return s.ledger.ListEntries(ctx, userID, params)
}
