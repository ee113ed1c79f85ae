package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/arunika-edu/arunika-edu/internal/entitlements"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTierSync applies a subscription tier change to a school's tool
	// accesses. Enqueued by the billing webhook and the operator sync
	// endpoint; safe to deliver more than once.
	TaskTierSync = "entitlement:tier_sync"
	// TaskIdempotencySweep prunes processed webhook event keys past their
	// retention window. Scheduled nightly.
	TaskIdempotencySweep = "maintenance:idempotency_sweep"
)

// TierSyncPayload carries one tier change to apply.
type TierSyncPayload struct {
	SchoolID int64  `json:"school_id"`
	Tier     string `json:"tier"`
}

// NewTierSyncTask constructs an Asynq task for a tier change.
func NewTierSyncTask(schoolID int64, tier entitlements.Tier) (*asynq.Task, error) {
	data, err := json.Marshal(TierSyncPayload{SchoolID: schoolID, Tier: string(tier)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTierSync, data, asynq.Queue(QueueDefault)), nil
}

// IdempotencySweepPayload sets the retention window for processed keys.
type IdempotencySweepPayload struct {
	RetainDays int `json:"retain_days"`
}

// NewIdempotencySweepTask constructs the nightly key-pruning task.
func NewIdempotencySweepTask(retainDays int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencySweepPayload{RetainDays: retainDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencySweep, data, asynq.Queue(QueueDefault)), nil
}
