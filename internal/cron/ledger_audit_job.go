package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultDriftReportLimit = 100

type driftFinder interface {
	ListBalanceDrift(ctx context.Context, limit int) ([]ledger.BalanceDrift, error)
}

type LedgerAuditJobParams struct {
	Logger  *logger.Logger
	Ledger  driftFinder
	Metrics *metrics.LedgerMetrics
	Limit   int
}

// NewLedgerAuditJob checks that every stored balance equals the newest ledger
// entry of its user. Drift is reported, never repaired.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDriftReportLimit
	}
	return &ledgerAuditJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		limit:   limit,
	}, nil
}

type ledgerAuditJob struct {
	logg    *logger.Logger
	ledger  driftFinder
	metrics *metrics.LedgerMetrics
	limit   int
}

func (j *ledgerAuditJob) Name() string { return "ledger-audit" }

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	drifts, err := j.ledger.ListBalanceDrift(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("ledger audit: %w", err)
	}
	j.metrics.SetDrift(len(drifts))

	for _, d := range drifts {
		driftCtx := j.logg.WithUserID(ctx, d.UserID.String())
		driftCtx = j.logg.WithFields(driftCtx, map[string]any{
			"balance":        d.Balance.StringFixed(2),
			"ledger_balance": d.LedgerBalance.StringFixed(2),
			"difference":     d.Difference().StringFixed(2),
		})
		j.logg.Warn(driftCtx, "balance does not match ledger")
	}
	j.logg.Info(j.logg.WithField(ctx, "drifted_users", len(drifts)), "ledger audit complete")
	return nil
}
