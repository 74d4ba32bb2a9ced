package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type flagLock struct {
	held     bool
	releases int
}

func (f *flagLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *flagLock) Release(context.Context) error {
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

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &countingJob{name: "outbox-retention"}
	broken := &countingJob{name: "payment-expiry", err: errors.New("db down")}
	lock := &flagLock{}

	err := newTestService(t, lock, broken, ok).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment-expiry: db down")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, broken.runs)
	assert.False(t, lock.held)
	assert.Equal(t, 1, lock.releases)
}

func TestRunOnceSkipsWhileAnotherReplicaHoldsLock(t *testing.T) {
	job := &countingJob{name: "payment-expiry"}
	lock := &flagLock{held: true}

	require.NoError(t, newTestService(t, lock, job).RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "payment-expiry"}
	svc := newTestService(t, &flagLock{}, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	assert.Error(t, err)
}
