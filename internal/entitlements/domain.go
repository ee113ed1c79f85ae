// Package entitlements owns a school's subscription, its gated premium
// tools and the metered AI-credit ledger. Tool access follows a small state
// machine per (school, tool) pair; expiry transitions happen lazily on read.
package entitlements

import (
	"errors"
	"strings"
	"time"
)

// Tier is a subscription plan.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierStarter    Tier = "STARTER"
	TierEnterprise Tier = "ENTERPRISE"

	// TierProfessional is a legacy plan name still present in old
	// subscription rows and billing events. It is an alias of STARTER and
	// is normalized away on read.
	TierProfessional Tier = "PROFESSIONAL"
)

// ErrUnknownTier rejects tier names outside the catalog.
var ErrUnknownTier = errors.New("entitlements: unknown tier")

// ParseTier normalizes a raw tier name, collapsing the legacy
// PROFESSIONAL alias into STARTER.
func ParseTier(raw string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(raw))) {
	case TierFree:
		return TierFree, nil
	case TierStarter, TierProfessional:
		return TierStarter, nil
	case TierEnterprise:
		return TierEnterprise, nil
	}
	return "", ErrUnknownTier
}

// NormalizeTier maps stored tier values onto the canonical set. Unknown
// values pass through unchanged; callers that need strictness use ParseTier.
func NormalizeTier(tier Tier) Tier {
	if tier == TierProfessional {
		return TierStarter
	}
	return tier
}

// Unlimited is the sentinel for uncapped admins or credits.
const Unlimited int64 = -1

// TierLimits carries a tier's numeric quotas.
type TierLimits struct {
	MaxAdmins int64 `json:"max_admins"`
	AICredits int64 `json:"ai_credits"`
}

// tierLimits is the canonical quota table. PROFESSIONAL shares STARTER's
// row via NormalizeTier.
var tierLimits = map[Tier]TierLimits{
	TierFree:       {MaxAdmins: 2, AICredits: 50},
	TierStarter:    {MaxAdmins: 10, AICredits: 500},
	TierEnterprise: {MaxAdmins: Unlimited, AICredits: Unlimited},
}

// LimitsFor returns the quota row for a tier, defaulting unknown tiers to
// FREE so a bad row can never widen access.
func LimitsFor(tier Tier) TierLimits {
	if limits, ok := tierLimits[NormalizeTier(tier)]; ok {
		return limits
	}
	return tierLimits[TierFree]
}

// Subscription is a school's plan record. AICreditsUsed only ever grows;
// AICreditsUsed <= AICredits holds unless AICredits is Unlimited.
type Subscription struct {
	ID            int64     `json:"id"`
	SchoolID      int64     `json:"school_id"`
	Tier          Tier      `json:"tier"`
	MaxAdmins     int64     `json:"max_admins"`
	AICredits     int64     `json:"ai_credits"`
	AICreditsUsed int64     `json:"ai_credits_used"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Remaining returns the spendable credit balance, or Unlimited.
func (s Subscription) Remaining() int64 {
	if s.AICredits == Unlimited {
		return Unlimited
	}
	return s.AICredits - s.AICreditsUsed
}

// AccessStatus is the per-(school, tool) state.
type AccessStatus string

const (
	StatusActive   AccessStatus = "ACTIVE"
	StatusTrial    AccessStatus = "TRIAL"
	StatusExpired  AccessStatus = "EXPIRED"
	StatusDisabled AccessStatus = "DISABLED"
)

// ToolAccess is one school's record for one tool. EXPIRED and DISABLED are
// terminal here; only a tier sync triggered by billing reactivates a tool,
// and it never resurrects an EXPIRED row.
type ToolAccess struct {
	ID          int64        `json:"id"`
	SchoolID    int64        `json:"school_id"`
	ToolSlug    string       `json:"tool_slug"`
	Status      AccessStatus `json:"status"`
	TrialEndsAt *time.Time   `json:"trial_ends_at,omitempty"`
	ActivatedAt *time.Time   `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Diagnostic reasons for a "no access" decision. Callers surface these to
// pick between upgrade prompts, trial-over messaging and plain 404s.
const (
	ReasonToolNotFound  = "tool_not_found"
	ReasonNotSubscribed = "not_subscribed"
	ReasonExpired       = "expired"
	ReasonDisabled      = "disabled"

	// ReasonInsufficientCredits tags credit-ledger rejections.
	ReasonInsufficientCredits = "insufficient_credits"
)

// Decision is the evaluated entitlement for one tool right now.
type Decision struct {
	Allowed            bool         `json:"allowed"`
	Status             AccessStatus `json:"status,omitempty"`
	Reason             string       `json:"reason,omitempty"`
	TrialDaysRemaining int          `json:"trial_days_remaining,omitempty"`
}

// ErrInsufficientCredits marks a conditional credit increment that matched
// no row: the balance would have been overdrawn.
var ErrInsufficientCredits = errors.New("entitlements: insufficient credits")

// CreditEvent records one successful metered spend.
type CreditEvent struct {
	ID       int64     `json:"id"`
	SchoolID int64     `json:"school_id"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`
	SpentAt  time.Time `json:"spent_at"`
}
