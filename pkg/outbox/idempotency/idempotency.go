package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Manager guards against publishing the same outbox event twice to a sink.
// A claim is a Redis SETNX on `sf:idempotency:evt:published:<sink>:<event_id>`
// that lives for the configured TTL. Outbox rows can be fetched again after a
// crash between the broker ack and the published_at update; the claim turns
// that replay into a skip.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim reports whether the caller now owns the publish of eventID. False
// means another attempt already delivered it.
func (m *Manager) Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error) {
	key, err := m.publishedKey(sink, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
}

// Release drops a claim so a failed publish can be retried.
func (m *Manager) Release(ctx context.Context, sink string, eventID uuid.UUID) error {
	key, err := m.publishedKey(sink, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) publishedKey(sink string, eventID uuid.UUID) (string, error) {
	if sink == "" {
		return "", errors.New("sink name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("evt:published:%s", sink), eventID.String()), nil
}
