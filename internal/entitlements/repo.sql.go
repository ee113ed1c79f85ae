package entitlements

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Repository provides PostgreSQL backed persistence for subscriptions,
// tool access and the credit ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subscriptionColumns = `id, school_id, tier, max_admins, ai_credits, ai_credits_used, active, created_at, updated_at`

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.SchoolID, &s.Tier, &s.MaxAdmins, &s.AICredits, &s.AICreditsUsed, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, shared.ErrNotFound
		}
		return Subscription{}, err
	}
	return s, nil
}

// GetSubscription returns the school's subscription row.
func (r *Repository) GetSubscription(ctx context.Context, schoolID int64) (Subscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE school_id = $1`, schoolID)
	return scanSubscription(row)
}

// EnsureSubscription returns the school's subscription, creating a FREE one
// when none exists. ON CONFLICT DO NOTHING keeps concurrent first reads from
// racing each other into duplicate rows.
func (r *Repository) EnsureSubscription(ctx context.Context, schoolID int64) (Subscription, error) {
	limits := LimitsFor(TierFree)
	row := r.pool.QueryRow(ctx, `INSERT INTO subscriptions (school_id, tier, max_admins, ai_credits, ai_credits_used, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, TRUE, NOW(), NOW())
		ON CONFLICT (school_id) DO NOTHING
		RETURNING `+subscriptionColumns,
		schoolID, TierFree, limits.MaxAdmins, limits.AICredits)
	sub, err := scanSubscription(row)
	if errors.Is(err, shared.ErrNotFound) {
		// The row already existed; the insert returned nothing.
		return r.GetSubscription(ctx, schoolID)
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("entitlements: ensure subscription: %w", err)
	}
	return sub, nil
}

// UpdateSubscriptionTier rewrites the school's tier and quota columns.
func (r *Repository) UpdateSubscriptionTier(ctx context.Context, schoolID int64, tier Tier, limits TierLimits) error {
	tag, err := r.pool.Exec(ctx, `UPDATE subscriptions
		SET tier = $2, max_admins = $3, ai_credits = $4, updated_at = NOW()
		WHERE school_id = $1`, schoolID, tier, limits.MaxAdmins, limits.AICredits)
	if err != nil {
		return fmt.Errorf("entitlements: update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SpendCredits performs the conditional atomic increment backing the credit
// ledger. The balance check and the counter bump are one statement, so
// concurrent spends for the same school can never overdraw. Callers must
// ensure the subscription exists first; a miss here means the balance was
// insufficient.
func (r *Repository) SpendCredits(ctx context.Context, schoolID, amount int64) (Subscription, error) {
	row := r.pool.QueryRow(ctx, `UPDATE subscriptions
		SET ai_credits_used = ai_credits_used + $2, updated_at = NOW()
		WHERE school_id = $1
		  AND (ai_credits = -1 OR ai_credits_used + $2 <= ai_credits)
		RETURNING `+subscriptionColumns, schoolID, amount)
	sub, err := scanSubscription(row)
	if errors.Is(err, shared.ErrNotFound) {
		return Subscription{}, ErrInsufficientCredits
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("entitlements: spend credits: %w", err)
	}
	return sub, nil
}

// RecordCreditEvent appends one ledger entry for a successful spend.
func (r *Repository) RecordCreditEvent(ctx context.Context, event CreditEvent) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO credit_events (school_id, amount, reason, spent_at)
		VALUES ($1, $2, $3, $4)`, event.SchoolID, event.Amount, event.Reason, event.SpentAt)
	if err != nil {
		return fmt.Errorf("entitlements: record credit event: %w", err)
	}
	return nil
}

const toolAccessColumns = `id, school_id, tool_slug, status, trial_ends_at, activated_at, expires_at, updated_at`

func scanToolAccess(row pgx.Row) (ToolAccess, error) {
	var a ToolAccess
	err := row.Scan(&a.ID, &a.SchoolID, &a.ToolSlug, &a.Status, &a.TrialEndsAt, &a.ActivatedAt, &a.ExpiresAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ToolAccess{}, shared.ErrNotFound
		}
		return ToolAccess{}, err
	}
	return a, nil
}

// GetToolAccess returns the school's record for one tool.
func (r *Repository) GetToolAccess(ctx context.Context, schoolID int64, slug string) (ToolAccess, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+toolAccessColumns+` FROM school_tool_access
		WHERE school_id = $1 AND tool_slug = $2`, schoolID, slug)
	return scanToolAccess(row)
}

// ListToolAccess returns all of the school's tool records.
func (r *Repository) ListToolAccess(ctx context.Context, schoolID int64) ([]ToolAccess, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+toolAccessColumns+` FROM school_tool_access
		WHERE school_id = $1 ORDER BY tool_slug`, schoolID)
	if err != nil {
		return nil, fmt.Errorf("entitlements: list tool access: %w", err)
	}
	defer rows.Close()
	var accesses []ToolAccess
	for rows.Next() {
		var a ToolAccess
		if err := rows.Scan(&a.ID, &a.SchoolID, &a.ToolSlug, &a.Status, &a.TrialEndsAt, &a.ActivatedAt, &a.ExpiresAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accesses = append(accesses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accesses, nil
}

// UpsertToolAccess writes the record for (school, tool), creating or
// replacing its state fields.
func (r *Repository) UpsertToolAccess(ctx context.Context, access ToolAccess) (ToolAccess, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO school_tool_access (school_id, tool_slug, status, trial_ends_at, activated_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (school_id, tool_slug) DO UPDATE
		SET status = EXCLUDED.status,
		    trial_ends_at = EXCLUDED.trial_ends_at,
		    activated_at = EXCLUDED.activated_at,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
		RETURNING `+toolAccessColumns,
		access.SchoolID, access.ToolSlug, access.Status, access.TrialEndsAt, access.ActivatedAt, access.ExpiresAt)
	saved, err := scanToolAccess(row)
	if err != nil {
		return ToolAccess{}, fmt.Errorf("entitlements: upsert tool access: %w", err)
	}
	return saved, nil
}

// MarkExpired persists the lazy ACTIVE/TRIAL -> EXPIRED transition. The
// status guard makes concurrent readers discovering the same expiry
// harmless: whoever runs second updates nothing.
func (r *Repository) MarkExpired(ctx context.Context, schoolID int64, slug string) error {
	_, err := r.pool.Exec(ctx, `UPDATE school_tool_access
		SET status = $3, updated_at = NOW()
		WHERE school_id = $1 AND tool_slug = $2 AND status IN ($4, $5)`,
		schoolID, slug, StatusExpired, StatusActive, StatusTrial)
	if err != nil {
		return fmt.Errorf("entitlements: mark expired: %w", err)
	}
	return nil
}
