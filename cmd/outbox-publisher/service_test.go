package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, label string) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, label),
		CreatedAt:     time.Now().UTC(),
	}
}

func ordersResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderCreated,
			Topic:         "orders-topic",
			AggregateType: enums.AggregateOrder,
		},
		Payload: &payloads.OrderCreatedEvent{},
	}
}

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "event-one"), orderEvent(t, "event-two")}}
	sink := &fakeSink{errs: []error{errors.New("transient"), nil}}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestPublishBuildsKeyedMessage(t *testing.T) {
	event := orderEvent(t, "keyed")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeSink{}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sink.sent))
	}
	msg := sink.sent[0]
	if msg.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	if msg.Key != event.AggregateID.String() {
		t.Fatalf("expected aggregate id as key, got %q", msg.Key)
	}
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatalf("payload not forwarded verbatim")
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderCreated) || msg.Attributes["aggregate_type"] != string(enums.AggregateOrder) {
		t.Fatalf("unexpected attributes %v", msg.Attributes)
	}
}

func TestGuardSkipsAlreadyDeliveredEvent(t *testing.T) {
	event := orderEvent(t, "replayed")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeSink{}
	guard := &fakeGuard{claimed: map[uuid.UUID]bool{event.ID: true}}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil, guard)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(sink.sent) != 0 {
		t.Fatalf("expected duplicate to be skipped, sent %d", len(sink.sent))
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatalf("expected replayed row to be marked published")
	}
}

func TestGuardReleasedOnPublishFailure(t *testing.T) {
	event := orderEvent(t, "fails")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeSink{errs: []error{errors.New("broker down")}}
	guard := &fakeGuard{claimed: map[uuid.UUID]bool{}}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil, guard)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if guard.claimed[event.ID] {
		t.Fatalf("expected claim to be released after failure")
	}
	if len(guard.released) != 1 || guard.released[0] != "fake" {
		t.Fatalf("expected release for sink fake, got %v", guard.released)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected row marked failed")
	}
}

func TestGuardErrorFallsBackToPublish(t *testing.T) {
	event := orderEvent(t, "redis-down")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeSink{}
	guard := &fakeGuard{err: errors.New("redis down")}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil, guard)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(sink.sent) != 1 || len(repo.published) != 1 {
		t.Fatalf("expected publish despite guard error")
	}
}

func TestServiceProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := orderEvent(t, "nonretryable")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakeSink{}, &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}, dlqRepo, nil, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.Payload == nil || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := orderEvent(t, "max-attempts")
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeSink{errs: []error{errors.New("transient")}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	if dlqRepo.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", dlqRepo.entries[0].ErrorReason)
	}
}

func TestRunRecordsJobMetricsAndStopsOnCancel(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "metrics")}}
	sink := &fakeSink{}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil, nil)
	reg := prometheus.NewRegistry()
	service.metrics = metrics.NewJobMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	repo.afterFetch = func() {
		if len(repo.published) > 0 {
			cancel()
		}
	}
	repo.drainOnce = true

	err := service.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if got := counterValue(t, reg, "job_success"); got < 1 {
		t.Fatalf("expected at least one successful cycle, got %v", got)
	}
}

func TestNewServiceRequiresSink(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:        &config.Config{},
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:            &fakeDB{},
		Repository:    &fakeRepo{},
		Registry:      &fakeRegistry{},
		DLQRepository: &fakeDLQRepo{},
	})
	if err == nil {
		t.Fatal("expected error without sink")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("unexpected backoff %v", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap, got %v", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, sink outbox.Sink, registry registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig, guard publishGuard) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 10,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	params := ServiceParams{
		Config:        &config.Config{Outbox: outboxCfg},
		Logger:        logg,
		DB:            &fakeDB{},
		Sink:          sink,
		Repository:    repo,
		Registry:      registry,
		DLQRepository: dlq,
	}
	if guard != nil {
		params.Guard = guard
	}
	service, err := NewService(params)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	drainOnce  bool
	fetched    bool
	afterFetch func()
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.afterFetch != nil {
		defer f.afterFetch()
	}
	if f.drainOnce && f.fetched {
		return nil, nil
	}
	f.fetched = true
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeSink struct {
	errs []error
	sent []outbox.Message
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Publish(_ context.Context, msg outbox.Message) error {
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err == nil {
		f.sent = append(f.sent, msg)
	}
	return err
}

func (f *fakeSink) Ping(context.Context) error { return nil }

func (f *fakeSink) Close() error { return nil }

type fakeGuard struct {
	claimed  map[uuid.UUID]bool
	released []string
	err      error
}

func (f *fakeGuard) Claim(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.claimed[eventID] {
		return false, nil
	}
	f.claimed[eventID] = true
	return true, nil
}

func (f *fakeGuard) Release(_ context.Context, sink string, eventID uuid.UUID) error {
	delete(f.claimed, eventID)
	f.released = append(f.released, sink)
	return nil
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
