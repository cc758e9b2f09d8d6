package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	registry, err := NewRegistry(ok, failing)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	count, err := testutil.GatherAndCount(reg, "job_success", "job_failure")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: &fakeLock{held: true}})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunOnceSurfacesLockError(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{acquireErr: errors.New("redis down")}})
	require.NoError(t, err)
	assert.Error(t, svc.RunOnce(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "job"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: &fakeLock{}})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, svc.Interval())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)
}
