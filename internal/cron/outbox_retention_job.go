package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
)

type publishedEventPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Events        publishedEventPurger
	DeadLetters   deadLetterPurger
	RetentionDays int
	// DLQRetentionDays keeps dead letters longer than delivered events so
	// they can still be replayed by hand.
	DLQRetentionDays int
}

// NewOutboxRetentionJob purges delivered outbox rows and old dead letters.
// Undelivered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DeadLetters == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultOutboxRetentionDays
	}
	dlqRetention := params.DLQRetentionDays
	if dlqRetention <= 0 {
		dlqRetention = defaultDLQRetentionDays
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		events:       params.Events,
		deadLetters:  params.DeadLetters,
		retention:    retention,
		dlqRetention: dlqRetention,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	events       publishedEventPurger
	deadLetters  deadLetterPurger
	retention    int
	dlqRetention int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	eventCutoff := now.Add(-time.Duration(j.retention) * 24 * time.Hour)
	dlqCutoff := now.Add(-time.Duration(j.dlqRetention) * 24 * time.Hour)

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.events.DeletePublishedBefore(ctx, tx, eventCutoff); err != nil {
			return fmt.Errorf("purge published events: %w", err)
		}
		if deadLetters, err = j.deadLetters.DeleteFailedBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("purge dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"event_cutoff":     eventCutoff,
		"dlq_cutoff":       dlqCutoff,
		"events_deleted":   events,
		"dead_letters_del": deadLetters,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
