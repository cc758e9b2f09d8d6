package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryOnConflictReplaysUntilSuccess(t *testing.T) {
	calls := 0
	retried := []int{}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, OnRetry: func(a int) { retried = append(retried, a) }}

	got, err := RetryOnConflict(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("debit: %w", ErrVersionConflict)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d", got, calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("unexpected retry callbacks %v", retried)
	}
}

func TestRetryOnConflictGivesUp(t *testing.T) {
	calls := 0
	_, err := RetryOnConflict(context.Background(), RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, ErrVersionConflict
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryOnConflictDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("insufficient balance")
	_, err := RetryOnConflict(context.Background(), RetryPolicy{MaxAttempts: 5}, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call returning boom, got %v after %d", err, calls)
	}
}
