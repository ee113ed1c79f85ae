package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/entitlements"
)

type recordingSyncer struct {
	schoolID int64
	tier     entitlements.Tier
	calls    int
	err      error
}

func (r *recordingSyncer) SyncTier(_ context.Context, schoolID int64, tier entitlements.Tier) error {
	r.calls++
	r.schoolID = schoolID
	r.tier = tier
	return r.err
}

func TestTierSyncJobHandle(t *testing.T) {
	syncer := &recordingSyncer{}
	job := NewTierSyncJob(syncer, nil, nil)

	task, err := NewTierSyncTask(42, entitlements.TierStarter)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, syncer.calls)
	require.Equal(t, int64(42), syncer.schoolID)
	require.Equal(t, entitlements.TierStarter, syncer.tier)
}

func TestTierSyncJobHandle_StoreErrorRetries(t *testing.T) {
	syncer := &recordingSyncer{err: errors.New("pg down")}
	job := NewTierSyncJob(syncer, nil, nil)

	task, err := NewTierSyncTask(42, entitlements.TierEnterprise)
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry, "store failures must stay retryable")
}

func TestTierSyncJobHandle_DropsGarbage(t *testing.T) {
	syncer := &recordingSyncer{}
	job := NewTierSyncJob(syncer, nil, nil)

	t.Run("undecodable payload", func(t *testing.T) {
		task := asynq.NewTask(TaskTierSync, []byte(`{"school_id":`))
		require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	})

	t.Run("unknown tier", func(t *testing.T) {
		task := asynq.NewTask(TaskTierSync, []byte(`{"school_id":42,"tier":"PLATINUM"}`))
		require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	})

	require.Zero(t, syncer.calls)
}
