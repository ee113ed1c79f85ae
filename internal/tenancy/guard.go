package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// MembershipStore abstracts the membership lookups the guard needs.
type MembershipStore interface {
	// Fallback resolution for tokens without a school claim.
	LatestEnrollment(ctx context.Context, userID int64) (Membership, error)
	ActiveStaffMembership(ctx context.Context, userID int64) (Membership, error)
	// Claim re-verification against the persistence layer.
	StaffMembership(ctx context.Context, schoolID, userID int64) (Membership, error)
	StudentEnrollment(ctx context.Context, schoolID, userID int64) (Membership, error)
}

// AuditPort records security-relevant events.
type AuditPort interface {
	Record(ctx context.Context, event audit.Event) error
}

// Guard decides which school a request may bind to. Every tenant-scoped
// operation passes through Authorize before any finer-grained decision runs.
type Guard struct {
	store  MembershipStore
	audit  AuditPort
	logger *slog.Logger
}

// NewGuard builds a Guard. The audit port may be nil.
func NewGuard(store MembershipStore, auditor AuditPort, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, audit: auditor, logger: logger}
}

// Authorize resolves the actor's school, rejects requests for any other
// school, and re-verifies the token's school claim against the membership
// store. The returned id is what all downstream data access must use; the
// caller passes it explicitly, the guard never mutates the request.
//
// SUPER_ADMIN binds to whatever was requested; zero means global scope.
// Store failures propagate so every caller fails closed.
func (g *Guard) Authorize(ctx context.Context, actor shared.Actor, requestedSchoolID int64) (int64, error) {
	if actor.IsSuperAdmin() {
		return requestedSchoolID, nil
	}

	resolved := actor.SchoolID
	verified := false
	if resolved == 0 {
		membership, err := g.resolveFallback(ctx, actor)
		if err != nil {
			return 0, err
		}
		resolved = membership.SchoolID
		verified = true
	}

	if requestedSchoolID != 0 && requestedSchoolID != resolved {
		g.recordCrossTenant(ctx, actor, resolved, requestedSchoolID)
		return 0, shared.ErrCrossTenantAccess
	}

	if !verified {
		if err := g.verifyClaim(ctx, actor, resolved); err != nil {
			return 0, err
		}
	}
	return resolved, nil
}

// resolveFallback covers tokens minted before school binding existed. A
// student's most recent enrollment counts even when inactive; staff need a
// current membership.
func (g *Guard) resolveFallback(ctx context.Context, actor shared.Actor) (Membership, error) {
	var (
		membership Membership
		err        error
	)
	if actor.Role == shared.RoleStudent {
		membership, err = g.store.LatestEnrollment(ctx, actor.UserID)
	} else {
		membership, err = g.store.ActiveStaffMembership(ctx, actor.UserID)
	}
	if errors.Is(err, shared.ErrNotFound) {
		return Membership{}, shared.ErrNoTenantAssociation
	}
	if err != nil {
		return Membership{}, fmt.Errorf("tenancy: resolve membership: %w", err)
	}
	return membership, nil
}

// verifyClaim defends against stale or forged tokens: the claimed school must
// still be backed by a membership row. Students may hold a historical
// enrollment (transcript access survives leaving the school); staff must be
// active.
func (g *Guard) verifyClaim(ctx context.Context, actor shared.Actor, schoolID int64) error {
	var err error
	if actor.Role == shared.RoleStudent {
		_, err = g.store.StudentEnrollment(ctx, schoolID, actor.UserID)
	} else {
		_, err = g.store.StaffMembership(ctx, schoolID, actor.UserID)
	}
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrInvalidTenantContext
	}
	if err != nil {
		return fmt.Errorf("tenancy: verify membership: %w", err)
	}
	return nil
}

func (g *Guard) recordCrossTenant(ctx context.Context, actor shared.Actor, boundSchoolID, requestedSchoolID int64) {
	g.logger.Warn("cross-tenant access denied",
		slog.Int64("user_id", actor.UserID),
		slog.String("role", string(actor.Role)),
		slog.Int64("bound_school_id", boundSchoolID),
		slog.Int64("requested_school_id", requestedSchoolID),
	)
	if g.audit == nil {
		return
	}
	_ = g.audit.Record(ctx, audit.Event{
		ActorID:  actor.UserID,
		SchoolID: boundSchoolID,
		Action:   "tenancy:cross_tenant_denied",
		Entity:   "school",
		EntityID: strconv.FormatInt(requestedSchoolID, 10),
		Reason:   shared.ReasonCode(shared.ErrCrossTenantAccess),
		Meta: map[string]any{
			"actor_role":          string(actor.Role),
			"requested_school_id": requestedSchoolID,
		},
	})
}
