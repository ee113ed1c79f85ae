package entitlements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/permissions"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// ServiceStore abstracts persistence for the entitlement service.
type ServiceStore interface {
	EnsureSubscription(ctx context.Context, schoolID int64) (Subscription, error)
	UpdateSubscriptionTier(ctx context.Context, schoolID int64, tier Tier, limits TierLimits) error
	GetToolAccess(ctx context.Context, schoolID int64, slug string) (ToolAccess, error)
	ListToolAccess(ctx context.Context, schoolID int64) ([]ToolAccess, error)
	UpsertToolAccess(ctx context.Context, access ToolAccess) (ToolAccess, error)
	MarkExpired(ctx context.Context, schoolID int64, slug string) error
}

// AuditPort records security-relevant entitlement events.
type AuditPort interface {
	Record(ctx context.Context, event audit.Event) error
}

// Service owns the subscription and tool-access state machine.
type Service struct {
	store   ServiceStore
	catalog *Catalog
	audit   AuditPort
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewService builds a Service. A nil catalog falls back to the built-in
// one; the audit port may be nil.
func NewService(store ServiceStore, catalog *Catalog, auditor AuditPort, logger *slog.Logger) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, catalog: catalog, audit: auditor, logger: logger, now: time.Now}
}

// Subscription returns the school's subscription, creating the FREE default
// on first access. Legacy PROFESSIONAL rows read as STARTER.
func (s *Service) Subscription(ctx context.Context, schoolID int64) (Subscription, error) {
	return s.ensureSubscription(ctx, schoolID)
}

// AdminQuota exposes the subscription's admin ceiling to the permission
// package's capacity check.
func (s *Service) AdminQuota(ctx context.Context, schoolID int64) (permissions.AdminQuota, error) {
	sub, err := s.ensureSubscription(ctx, schoolID)
	if err != nil {
		return permissions.AdminQuota{}, err
	}
	return permissions.AdminQuota{Tier: string(sub.Tier), MaxAdmins: sub.MaxAdmins}, nil
}

// ensureSubscription loads the subscription, lazily creating the FREE
// default. Concurrent first accesses for one school collapse into a single
// store round trip.
func (s *Service) ensureSubscription(ctx context.Context, schoolID int64) (Subscription, error) {
	value, err, _ := s.group.Do(strconv.FormatInt(schoolID, 10), func() (any, error) {
		// The flight's result is shared with every collapsed caller, so it
		// must not die with whichever request happened to start it.
		return s.store.EnsureSubscription(context.WithoutCancel(ctx), schoolID)
	})
	if err != nil {
		return Subscription{}, err
	}
	sub := value.(Subscription)
	sub.Tier = NormalizeTier(sub.Tier)
	return sub, nil
}

// CheckAccess evaluates the school's entitlement for one tool. This is a
// command, not a pure read: an ACTIVE or TRIAL record found past its
// deadline is persisted as EXPIRED before the denial is returned, so later
// reads see the true state without re-running the clock comparison.
func (s *Service) CheckAccess(ctx context.Context, schoolID int64, slug string) (Decision, error) {
	if _, ok := s.catalog.Tool(slug); !ok {
		return Decision{Reason: ReasonToolNotFound}, nil
	}
	access, err := s.store.GetToolAccess(ctx, schoolID, slug)
	if errors.Is(err, shared.ErrNotFound) {
		return Decision{Reason: ReasonNotSubscribed}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("entitlements: load tool access: %w", err)
	}
	decision := s.transition(ctx, access)
	return decision, nil
}

// ListEntitlements evaluates every catalog tool for the school in catalog
// order. Stale records are expired the same way CheckAccess does it.
func (s *Service) ListEntitlements(ctx context.Context, schoolID int64) ([]ToolEntitlement, error) {
	accesses, err := s.store.ListToolAccess(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("entitlements: list tool access: %w", err)
	}
	bySlug := make(map[string]ToolAccess, len(accesses))
	for _, access := range accesses {
		bySlug[access.ToolSlug] = access
	}

	entitlements := make([]ToolEntitlement, 0, len(s.catalog.tools))
	for _, tool := range s.catalog.Tools() {
		entry := ToolEntitlement{Slug: tool.Slug, Name: tool.Name}
		if access, ok := bySlug[tool.Slug]; ok {
			entry.Decision = s.transition(ctx, access)
		} else {
			entry.Decision = Decision{Reason: ReasonNotSubscribed}
		}
		entitlements = append(entitlements, entry)
	}
	return entitlements, nil
}

// ToolEntitlement pairs a catalog entry with its evaluated decision.
type ToolEntitlement struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Decision
}

// transition evaluates a record and persists a newly discovered expiry.
// A persistence failure keeps the denial — the next read retries the write.
func (s *Service) transition(ctx context.Context, access ToolAccess) Decision {
	decision := evaluate(access, s.now().UTC())
	if decision.Status == StatusExpired && access.Status != StatusExpired {
		if err := s.store.MarkExpired(ctx, access.SchoolID, access.ToolSlug); err != nil {
			s.logger.Warn("persist tool expiry",
				slog.Any("error", err),
				slog.Int64("school_id", access.SchoolID),
				slog.String("tool", access.ToolSlug))
		}
	}
	return decision
}

// evaluate is the pure state check: no clock reads, no writes.
func evaluate(access ToolAccess, now time.Time) Decision {
	switch access.Status {
	case StatusDisabled:
		return Decision{Status: StatusDisabled, Reason: ReasonDisabled}
	case StatusExpired:
		return Decision{Status: StatusExpired, Reason: ReasonExpired}
	case StatusTrial:
		if access.TrialEndsAt != nil && now.After(*access.TrialEndsAt) {
			return Decision{Status: StatusExpired, Reason: ReasonExpired}
		}
		return Decision{Allowed: true, Status: StatusTrial, TrialDaysRemaining: trialDaysRemaining(access.TrialEndsAt, now)}
	case StatusActive:
		if access.ExpiresAt != nil && now.After(*access.ExpiresAt) {
			return Decision{Status: StatusExpired, Reason: ReasonExpired}
		}
		return Decision{Allowed: true, Status: StatusActive}
	}
	// Unknown status denies.
	return Decision{Status: access.Status, Reason: ReasonDisabled}
}

// trialDaysRemaining reports whole days until the trial ends, rounded up
// and floored at zero. Zero with a still-TRIAL status means "ends today".
func trialDaysRemaining(end *time.Time, now time.Time) int {
	if end == nil {
		return 0
	}
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// SyncTier moves the school onto the tier: quota columns are rewritten and
// every catalog tool is granted or revoked per the tier's allow-list.
// Running it twice with the same tier is a no-op the second time — already
// ACTIVE rows keep their ActivatedAt, and EXPIRED rows stay EXPIRED (the
// way back from an expired trial is an upgrade, not a sync).
func (s *Service) SyncTier(ctx context.Context, schoolID int64, tier Tier) error {
	canonical, err := ParseTier(string(tier))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	if _, err := s.ensureSubscription(ctx, schoolID); err != nil {
		return err
	}
	if err := s.store.UpdateSubscriptionTier(ctx, schoolID, canonical, LimitsFor(canonical)); err != nil {
		return fmt.Errorf("entitlements: sync tier: %w", err)
	}

	accesses, err := s.store.ListToolAccess(ctx, schoolID)
	if err != nil {
		return fmt.Errorf("entitlements: sync tier: %w", err)
	}
	bySlug := make(map[string]ToolAccess, len(accesses))
	for _, access := range accesses {
		bySlug[access.ToolSlug] = access
	}

	now := s.now().UTC()
	for _, tool := range s.catalog.Tools() {
		if err := s.syncTool(ctx, schoolID, tool, canonical, bySlug, now); err != nil {
			return err
		}
	}

	s.record(ctx, audit.Event{
		SchoolID: schoolID,
		Action:   "entitlements:tier_synced",
		Entity:   "subscription",
		EntityID: strconv.FormatInt(schoolID, 10),
		Meta:     map[string]any{"tier": canonical},
	})
	return nil
}

func (s *Service) syncTool(ctx context.Context, schoolID int64, tool Tool, tier Tier, bySlug map[string]ToolAccess, now time.Time) error {
	allowed := tool.eligible(tier)
	existing, exists := bySlug[tool.Slug]

	status := existing.Status
	if exists && status != StatusExpired && evaluate(existing, now).Status == StatusExpired {
		// A record past its deadline is genuinely expired even though no
		// read has persisted it yet; sync must not promote or disable it
		// into looking like anything else.
		if err := s.store.MarkExpired(ctx, schoolID, tool.Slug); err != nil {
			return err
		}
		status = StatusExpired
	}

	switch {
	case allowed && !exists:
		_, err := s.store.UpsertToolAccess(ctx, ToolAccess{
			SchoolID:    schoolID,
			ToolSlug:    tool.Slug,
			Status:      StatusActive,
			ActivatedAt: &now,
		})
		return err
	case allowed && (status == StatusTrial || status == StatusDisabled):
		_, err := s.store.UpsertToolAccess(ctx, ToolAccess{
			SchoolID:    schoolID,
			ToolSlug:    tool.Slug,
			Status:      StatusActive,
			ActivatedAt: &now,
		})
		return err
	case !allowed && status == StatusActive:
		revoked := existing
		revoked.Status = StatusDisabled
		_, err := s.store.UpsertToolAccess(ctx, revoked)
		return err
	}
	// Already ACTIVE under an allowing tier, EXPIRED, a TRIAL running out
	// its own clock under a disallowing tier, or absent: nothing to write.
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, event)
}
