package entitlements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/observability"
)

// LedgerStore abstracts persistence for the credit ledger. SpendCredits
// must be atomic at the storage layer: balance check and increment in one
// operation, returning ErrInsufficientCredits when the check fails.
type LedgerStore interface {
	EnsureSubscription(ctx context.Context, schoolID int64) (Subscription, error)
	SpendCredits(ctx context.Context, schoolID, amount int64) (Subscription, error)
	RecordCreditEvent(ctx context.Context, event CreditEvent) error
}

// Ledger meters AI-credit consumption per school.
type Ledger struct {
	store   LedgerStore
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger builds a Ledger. Audit port and metrics may be nil.
func NewLedger(store LedgerStore, auditor AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, audit: auditor, metrics: metrics, logger: logger, now: time.Now}
}

// SpendResult reports one ledger decision. A denial is a modeled outcome,
// not an error: Granted is false and Message carries the shortfall computed
// from the balance as it stood before the attempt.
type SpendResult struct {
	Granted   bool   `json:"granted"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	Message   string `json:"message,omitempty"`
}

// Spend withdraws amount credits for the school. The increment is a single
// conditional storage operation, so concurrent spends for one school can
// never drive the counter past the allotment; an unlimited subscription
// (AICredits == -1) bypasses the balance check for any amount.
func (l *Ledger) Spend(ctx context.Context, schoolID, amount int64, reason string) (SpendResult, error) {
	if amount <= 0 {
		return SpendResult{}, errors.New("entitlements: spend amount must be positive")
	}
	before, err := l.store.EnsureSubscription(ctx, schoolID)
	if err != nil {
		return SpendResult{}, err
	}

	updated, err := l.store.SpendCredits(ctx, schoolID, amount)
	if errors.Is(err, ErrInsufficientCredits) {
		remaining := before.Remaining()
		l.metrics.RecordCreditSpend(false, amount)
		return SpendResult{
			Granted:   false,
			Used:      before.AICreditsUsed,
			Remaining: remaining,
			Message:   fmt.Sprintf("insufficient credits: requested %d, %d remaining (short %d)", amount, remaining, amount-remaining),
		}, nil
	}
	if err != nil {
		return SpendResult{}, err
	}

	if err := l.store.RecordCreditEvent(ctx, CreditEvent{
		SchoolID: schoolID,
		Amount:   amount,
		Reason:   reason,
		SpentAt:  l.now().UTC(),
	}); err != nil {
		l.logger.Warn("record credit event", slog.Any("error", err), slog.Int64("school_id", schoolID))
	}
	l.record(ctx, audit.Event{
		SchoolID: schoolID,
		Action:   "entitlements:credits_spent",
		Entity:   "subscription",
		EntityID: strconv.FormatInt(schoolID, 10),
		Meta: map[string]any{
			"amount":    amount,
			"reason":    reason,
			"remaining": updated.Remaining(),
		},
	})
	l.metrics.RecordCreditSpend(true, amount)
	return SpendResult{Granted: true, Used: updated.AICreditsUsed, Remaining: updated.Remaining()}, nil
}

func (l *Ledger) record(ctx context.Context, event audit.Event) {
	if l.audit == nil {
		return
	}
	_ = l.audit.Record(ctx, event)
}
