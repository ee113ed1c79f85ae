package permissions

import (
	"context"
	"fmt"
)

// AdminCounter counts a school's active administrators.
type AdminCounter interface {
	CountActiveAdmins(ctx context.Context, schoolID int64) (int, error)
}

// AdminQuota is the subscription's view of the admin limit.
type AdminQuota struct {
	Tier      string
	MaxAdmins int64
}

// QuotaSource reads the school's admin quota from its subscription.
type QuotaSource interface {
	AdminQuota(ctx context.Context, schoolID int64) (AdminQuota, error)
}

// AdminCapacity is the result of the admin-cardinality precondition.
type AdminCapacity struct {
	CanAdd       bool   `json:"can_add"`
	CurrentCount int    `json:"current_count"`
	MaxAllowed   int64  `json:"max_allowed"`
	Message      string `json:"message"`
}

// CapacityChecker runs the admin-cardinality check against the subscription.
// It is a precondition for admin creation, not a permission decision.
type CapacityChecker struct {
	admins AdminCounter
	quotas QuotaSource
}

// NewCapacityChecker builds a CapacityChecker.
func NewCapacityChecker(admins AdminCounter, quotas QuotaSource) *CapacityChecker {
	return &CapacityChecker{admins: admins, quotas: quotas}
}

// CheckAdminLimit compares the school's active admin count against its
// subscription quota. MaxAdmins of -1 means unlimited.
func (c *CapacityChecker) CheckAdminLimit(ctx context.Context, schoolID int64) (AdminCapacity, error) {
	quota, err := c.quotas.AdminQuota(ctx, schoolID)
	if err != nil {
		return AdminCapacity{}, fmt.Errorf("permissions: admin quota: %w", err)
	}
	count, err := c.admins.CountActiveAdmins(ctx, schoolID)
	if err != nil {
		return AdminCapacity{}, fmt.Errorf("permissions: admin count: %w", err)
	}

	capacity := AdminCapacity{CurrentCount: count, MaxAllowed: quota.MaxAdmins}
	if quota.MaxAdmins == -1 {
		capacity.CanAdd = true
		capacity.Message = fmt.Sprintf("%s tier allows unlimited administrators; %d in use", quota.Tier, count)
		return capacity, nil
	}
	if int64(count) < quota.MaxAdmins {
		capacity.CanAdd = true
		capacity.Message = fmt.Sprintf("%s tier allows %d administrators; %d in use", quota.Tier, quota.MaxAdmins, count)
		return capacity, nil
	}
	capacity.Message = fmt.Sprintf("%s tier limit of %d administrators reached", quota.Tier, quota.MaxAdmins)
	return capacity, nil
}
