package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// StorePort abstracts grant persistence for the service.
type StorePort interface {
	ListGrants(ctx context.Context, schoolID, staffID int64) ([]GrantPair, error)
	ReplaceGrants(ctx context.Context, schoolID, staffID int64, pairs []GrantPair) error
	RemoveGrants(ctx context.Context, schoolID, staffID int64) error
}

// AuditPort records security-relevant events.
type AuditPort interface {
	Record(ctx context.Context, event audit.Event) error
}

// Service owns grant administration: wholesale replacement, removal on staff
// exit, and the principal-immutability rule.
type Service struct {
	store      StorePort
	cache      *GrantCache
	principals PrincipalSource
	audit      AuditPort
	logger     *slog.Logger
}

// NewService builds a Service. Cache and audit may be nil.
func NewService(store StorePort, cache *GrantCache, principals PrincipalSource, auditor AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, principals: principals, audit: auditor, logger: logger}
}

// ListGrants returns the staff member's stored grant set.
func (s *Service) ListGrants(ctx context.Context, schoolID, staffID int64) ([]GrantPair, error) {
	return s.store.ListGrants(ctx, schoolID, staffID)
}

// ReplaceGrants swaps the staff member's grant set wholesale. The principal's
// access is not grant-backed and must never be edited here.
func (s *Service) ReplaceGrants(ctx context.Context, schoolID, staffID int64, pairs []GrantPair, actorID int64) ([]GrantPair, error) {
	normalized, err := NormalizePairs(pairs)
	if err != nil {
		return nil, err
	}
	if err := s.refuseIfPrincipal(ctx, schoolID, staffID); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceGrants(ctx, schoolID, staffID, normalized); err != nil {
		return nil, err
	}
	s.invalidate(ctx, schoolID, staffID)
	s.record(ctx, audit.Event{
		ActorID:  actorID,
		SchoolID: schoolID,
		Action:   "permissions:grants_replaced",
		Entity:   "staff",
		EntityID: strconv.FormatInt(staffID, 10),
		Meta: map[string]any{
			"grants": normalized,
			"count":  len(normalized),
		},
	})
	return normalized, nil
}

// RemoveGrants deletes the staff member's grant set, used when the staff
// member leaves the school.
func (s *Service) RemoveGrants(ctx context.Context, schoolID, staffID int64) error {
	if err := s.refuseIfPrincipal(ctx, schoolID, staffID); err != nil {
		return err
	}
	if err := s.store.RemoveGrants(ctx, schoolID, staffID); err != nil {
		return err
	}
	s.invalidate(ctx, schoolID, staffID)
	s.record(ctx, audit.Event{
		SchoolID: schoolID,
		Action:   "permissions:grants_removed",
		Entity:   "staff",
		EntityID: strconv.FormatInt(staffID, 10),
	})
	return nil
}

func (s *Service) refuseIfPrincipal(ctx context.Context, schoolID, staffID int64) error {
	isPrincipal, err := s.principals.IsPrincipal(ctx, schoolID, staffID)
	if err != nil {
		return fmt.Errorf("permissions: principal check: %w", err)
	}
	if isPrincipal {
		return shared.ErrPrincipalImmutable
	}
	return nil
}

// invalidate drops the cached set; a failure only means the old set lingers
// until the TTL, so log and move on.
func (s *Service) invalidate(ctx context.Context, schoolID, staffID int64) {
	if err := s.cache.Invalidate(ctx, schoolID, staffID); err != nil {
		s.logger.Warn("grant cache invalidation failed",
			slog.Any("error", err),
			slog.Int64("school_id", schoolID),
			slog.Int64("staff_id", staffID),
		)
	}
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, event)
}
