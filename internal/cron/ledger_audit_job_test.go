package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubDriftFinder struct {
	drifts []ledger.BalanceDrift
	err    error
	limit  int
}

func (s *stubDriftFinder) ListBalanceDrift(_ context.Context, limit int) ([]ledger.BalanceDrift, error) {
	s.limit = limit
	return s.drifts, s.err
}

func TestLedgerAuditJobReportsDrift(t *testing.T) {
	finder := &stubDriftFinder{drifts: []ledger.BalanceDrift{{
		UserID:        uuid.New(),
		Balance:       decimal.RequireFromString("12.00"),
		LedgerBalance: decimal.RequireFromString("10.00"),
	}}}
	reg := prometheus.NewRegistry()
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:  testLogger(),
		Ledger:  finder,
		Metrics: metrics.NewLedgerMetrics(reg),
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, defaultDriftReportLimit, finder.limit)

	gathered, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, gathered, 1)
	assert.Equal(t, float64(1), gathered[0].GetMetric()[0].GetGauge().GetValue())
}

func TestLedgerAuditJobPropagatesError(t *testing.T) {
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger: testLogger(),
		Ledger: &stubDriftFinder{err: errors.New("db down")},
	})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
}

func TestLedgerAuditJobAgainstDatabase(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.CreateUser(t, conn, "0")
	dbtest.CreateUser(t, conn, "3.50")

	reg := prometheus.NewRegistry()
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:  testLogger(),
		Ledger:  ledger.NewRepository(conn),
		Metrics: metrics.NewLedgerMetrics(reg),
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	gathered, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, gathered, 1)
	assert.Equal(t, float64(1), gathered[0].GetMetric()[0].GetGauge().GetValue())
}
