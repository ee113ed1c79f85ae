package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/arunika-edu/arunika-edu/internal/entitlements"
	jobmetrics "github.com/arunika-edu/arunika-edu/internal/jobs"
)

// TierSyncer applies a tier to a school's subscription and tool accesses.
type TierSyncer interface {
	SyncTier(ctx context.Context, schoolID int64, tier entitlements.Tier) error
}

// TierSyncJob consumes TaskTierSync tasks. The underlying sync is
// idempotent, so at-least-once delivery and retries are safe.
type TierSyncJob struct {
	Syncer  TierSyncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTierSyncJob initialises the tier sync handler.
func NewTierSyncJob(syncer TierSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *TierSyncJob {
	return &TierSyncJob{Syncer: syncer, Logger: logger, Metrics: metrics}
}

// Handle executes one tier sync. Malformed payloads are dropped; store
// failures are returned so asynq retries them.
func (j *TierSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Syncer == nil {
		return errors.New("tier sync: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTierSync)

	var payload TierSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger().Error("tier sync: undecodable payload", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	tier, err := entitlements.ParseTier(payload.Tier)
	if err != nil {
		j.logger().Error("tier sync: unknown tier",
			slog.String("tier", payload.Tier), slog.Int64("school_id", payload.SchoolID))
		return tracker.End(asynq.SkipRetry)
	}

	if err := j.Syncer.SyncTier(ctx, payload.SchoolID, tier); err != nil {
		j.logger().Error("tier sync failed",
			slog.Any("error", err), slog.Int64("school_id", payload.SchoolID))
		return tracker.End(err)
	}
	j.logger().Info("tier sync applied",
		slog.Int64("school_id", payload.SchoolID), slog.String("tier", string(tier)))
	return tracker.End(nil)
}

func (j *TierSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
