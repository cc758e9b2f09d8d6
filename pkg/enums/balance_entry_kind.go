package enums

import "fmt"

// BalanceEntryKind classifies a row in the account balance ledger.
type BalanceEntryKind string

const (
	BalanceEntryTopUp       BalanceEntryKind = "top_up"
	BalanceEntryOrderDebit  BalanceEntryKind = "order_debit"
	BalanceEntryOrderRefund BalanceEntryKind = "order_refund"
)

var validBalanceEntryKinds = []BalanceEntryKind{
	BalanceEntryTopUp,
	BalanceEntryOrderDebit,
	BalanceEntryOrderRefund,
}

// IsValid reports whether the value is a known BalanceEntryKind.
func (k BalanceEntryKind) IsValid() bool {
	for _, candidate := range validBalanceEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsCredit reports whether entries of this kind increase the balance.
func (k BalanceEntryKind) IsCredit() bool {
	return k == BalanceEntryTopUp || k == BalanceEntryOrderRefund
}

// ParseBalanceEntryKind converts raw input into a BalanceEntryKind.
func ParseBalanceEntryKind(value string) (BalanceEntryKind, error) {
	for _, candidate := range validBalanceEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance entry kind %q", value)
}
