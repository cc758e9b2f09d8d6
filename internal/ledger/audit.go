package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceDrift is a user whose stored balance no longer matches the
// balance_after of their newest ledger entry.
type BalanceDrift struct {
	UserID        uuid.UUID
	Balance       decimal.Decimal
	LedgerBalance decimal.Decimal
}

// Difference is stored minus ledger.
func (d BalanceDrift) Difference() decimal.Decimal {
	return d.Balance.Sub(d.LedgerBalance)
}

type balanceSnapshot struct {
	UserID        uuid.UUID           `gorm:"column:user_id"`
	Balance       decimal.Decimal     `gorm:"column:balance"`
	LedgerBalance decimal.NullDecimal `gorm:"column:ledger_balance"`
}

const balanceSnapshotSQL = `
SELECT u.id AS user_id,
       u.balance AS balance,
       (SELECT e.balance_after
          FROM balance_entries e
         WHERE e.user_id = u.id
         ORDER BY e.created_at DESC, e.id DESC
         LIMIT 1) AS ledger_balance
  FROM users u
 ORDER BY u.id`

// ListBalanceDrift compares every user's balance with their ledger. A user
// without entries is expected to hold zero. At most limit drifts are
// returned; limit <= 0 returns all of them.
func (r *repository) ListBalanceDrift(ctx context.Context, limit int) ([]BalanceDrift, error) {
	var rows []balanceSnapshot
	if err := r.db.WithContext(ctx).Raw(balanceSnapshotSQL).Scan(&rows).Error; err != nil {
		return nil, err
	}

	var out []BalanceDrift
	for _, row := range rows {
		expected := decimal.Zero
		if row.LedgerBalance.Valid {
			expected = row.LedgerBalance.Decimal
		}
		if row.Balance.Equal(expected) {
			continue
		}
		out = append(out, BalanceDrift{UserID: row.UserID, Balance: row.Balance, LedgerBalance: expected})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
