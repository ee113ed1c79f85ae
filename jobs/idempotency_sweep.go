package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/arunika-edu/arunika-edu/internal/jobs"
)

// KeySweeper prunes idempotency keys older than the retention window.
type KeySweeper interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencySweepJob consumes TaskIdempotencySweep tasks. Deleting stale
// keys re-opens the dedupe window for their event ids, so the retention must
// outlast the billing provider's redelivery horizon.
type IdempotencySweepJob struct {
	Store   KeySweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencySweepJob initialises the sweep handler.
func NewIdempotencySweepJob(store KeySweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencySweepJob {
	return &IdempotencySweepJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle prunes one retention window's worth of keys. Malformed payloads are
// dropped; store failures are returned so asynq retries them.
func (j *IdempotencySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencySweep)

	var payload IdempotencySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger().Error("idempotency sweep: undecodable payload", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	if payload.RetainDays <= 0 {
		j.logger().Error("idempotency sweep: non-positive retention",
			slog.Int("retain_days", payload.RetainDays))
		return tracker.End(asynq.SkipRetry)
	}

	retention := time.Duration(payload.RetainDays) * 24 * time.Hour
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		j.logger().Error("idempotency sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("idempotency keys swept", slog.Int("retain_days", payload.RetainDays))
	return tracker.End(nil)
}

func (j *IdempotencySweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
