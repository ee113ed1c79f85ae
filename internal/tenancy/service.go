package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/permissions"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// ServiceRepository abstracts repository usage for the membership service.
type ServiceRepository interface {
	CreateMembership(ctx context.Context, input CreateMembershipInput) (Membership, error)
	EndMembership(ctx context.Context, schoolID, userID int64, endedAt time.Time) error
	ListBySchool(ctx context.Context, schoolID int64, limit, offset int) ([]Membership, int, error)
}

// CapacityChecker runs the subscription's admin-quota precondition.
type CapacityChecker interface {
	CheckAdminLimit(ctx context.Context, schoolID int64) (permissions.AdminCapacity, error)
}

// GrantCleaner revokes a staff member's permission grants on removal.
type GrantCleaner interface {
	RemoveGrants(ctx context.Context, schoolID, staffID int64) error
}

// Service coordinates membership management.
type Service struct {
	repo     ServiceRepository
	capacity CapacityChecker
	grants   GrantCleaner
	audit    AuditPort
	now      func() time.Time
}

// NewService builds a Service. The audit port may be nil.
func NewService(repo ServiceRepository, capacity CapacityChecker, grants GrantCleaner, auditor AuditPort) *Service {
	return &Service{repo: repo, capacity: capacity, grants: grants, audit: auditor, now: time.Now}
}

// AddAdminInput carries the admin-membership creation request.
type AddAdminInput struct {
	UserID   int64
	Position string
	ActorID  int64
}

// AddAdmin creates an ADMIN membership after the subscription's admin-quota
// precondition passes. Quota failures carry the capacity message wrapped in
// ErrAdminLimitReached.
func (s *Service) AddAdmin(ctx context.Context, schoolID int64, input AddAdminInput) (Membership, error) {
	if schoolID == 0 {
		return Membership{}, errors.New("tenancy: school id required")
	}
	if input.UserID == 0 {
		return Membership{}, errors.New("tenancy: user id required")
	}
	if input.Position != "" && input.Position != PositionPrincipal {
		return Membership{}, fmt.Errorf("tenancy: unknown position %q", input.Position)
	}

	capacity, err := s.capacity.CheckAdminLimit(ctx, schoolID)
	if err != nil {
		return Membership{}, fmt.Errorf("tenancy: admin capacity check: %w", err)
	}
	if !capacity.CanAdd {
		return Membership{}, fmt.Errorf("%w: %s", ErrAdminLimitReached, capacity.Message)
	}

	membership, err := s.repo.CreateMembership(ctx, CreateMembershipInput{
		SchoolID: schoolID,
		UserID:   input.UserID,
		Kind:     KindAdmin,
		Position: input.Position,
	})
	if err != nil {
		return Membership{}, err
	}
	s.record(ctx, audit.Event{
		ActorID:  input.ActorID,
		SchoolID: schoolID,
		Action:   "tenancy:admin_added",
		Entity:   "membership",
		EntityID: strconv.FormatInt(membership.ID, 10),
		Meta: map[string]any{
			"user_id":  input.UserID,
			"position": input.Position,
		},
	})
	return membership, nil
}

// RemoveStaff ends the user's active memberships in the school and revokes
// their permission grants so no stale grant outlives the membership.
func (s *Service) RemoveStaff(ctx context.Context, schoolID, userID, actorID int64) error {
	if err := s.repo.EndMembership(ctx, schoolID, userID, s.now().UTC()); err != nil {
		return err
	}
	if s.grants != nil {
		if err := s.grants.RemoveGrants(ctx, schoolID, userID); err != nil {
			return fmt.Errorf("tenancy: revoke grants: %w", err)
		}
	}
	s.record(ctx, audit.Event{
		ActorID:  actorID,
		SchoolID: schoolID,
		Action:   "tenancy:staff_removed",
		Entity:   "membership",
		EntityID: strconv.FormatInt(userID, 10),
	})
	return nil
}

// List returns a page of the school's memberships.
func (s *Service) List(ctx context.Context, schoolID int64, page, perPage int) ([]Membership, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	members, total, err := s.repo.ListBySchool(ctx, schoolID, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return members, shared.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, event)
}
