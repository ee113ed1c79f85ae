package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingSweeper struct {
	olderThan time.Duration
	calls     int
	err       error
}

func (r *recordingSweeper) Cleanup(_ context.Context, olderThan time.Duration) error {
	r.calls++
	r.olderThan = olderThan
	return r.err
}

func TestIdempotencySweepJobHandle(t *testing.T) {
	sweeper := &recordingSweeper{}
	job := NewIdempotencySweepJob(sweeper, nil, nil)

	task, err := NewIdempotencySweepTask(14)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, sweeper.calls)
	require.Equal(t, 14*24*time.Hour, sweeper.olderThan)
}

func TestIdempotencySweepJobHandle_StoreErrorRetries(t *testing.T) {
	sweeper := &recordingSweeper{err: errors.New("pg down")}
	job := NewIdempotencySweepJob(sweeper, nil, nil)

	task, err := NewIdempotencySweepTask(7)
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry, "store failures must stay retryable")
}

func TestIdempotencySweepJobHandle_DropsGarbage(t *testing.T) {
	sweeper := &recordingSweeper{}
	job := NewIdempotencySweepJob(sweeper, nil, nil)

	t.Run("undecodable payload", func(t *testing.T) {
		task := asynq.NewTask(TaskIdempotencySweep, []byte(`{"retain_days":`))
		require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	})

	t.Run("non-positive retention", func(t *testing.T) {
		task := asynq.NewTask(TaskIdempotencySweep, []byte(`{"retain_days":0}`))
		require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	})

	require.Zero(t, sweeper.calls)
}
