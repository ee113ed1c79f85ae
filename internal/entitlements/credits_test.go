package entitlements

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLedger(store *memoryStore, at time.Time) (*Ledger, *memoryAudit) {
	auditor := &memoryAudit{}
	ledger := NewLedger(store, auditor, nil, nil)
	ledger.now = func() time.Time { return at }
	return ledger, auditor
}

func TestLedgerSpend(t *testing.T) {
	store := newMemoryStore()
	store.seedSubscription(Subscription{SchoolID: 1, Tier: TierFree, AICredits: 100, AICreditsUsed: 90, Active: true})
	ledger, auditor := newTestLedger(store, testNow)

	result, err := ledger.Spend(context.Background(), 1, 5, "ai-grading")
	require.NoError(t, err)
	require.True(t, result.Granted)
	require.EqualValues(t, 95, result.Used)
	require.EqualValues(t, 5, result.Remaining)

	require.Len(t, store.events, 1)
	require.EqualValues(t, 5, store.events[0].Amount)
	require.Equal(t, "ai-grading", store.events[0].Reason)
	require.Equal(t, testNow, store.events[0].SpentAt)

	recorded := auditor.recorded()
	require.Len(t, recorded, 1)
	require.Equal(t, "entitlements:credits_spent", recorded[0].Action)
}

func TestLedgerSpend_InsufficientUsesPreOpBalance(t *testing.T) {
	store := newMemoryStore()
	store.seedSubscription(Subscription{SchoolID: 1, Tier: TierFree, AICredits: 100, AICreditsUsed: 90, Active: true})
	ledger, _ := newTestLedger(store, testNow)

	result, err := ledger.Spend(context.Background(), 1, 11, "ai-grading")
	require.NoError(t, err, "a balance rejection is a modeled outcome, not an error")
	require.False(t, result.Granted)
	require.EqualValues(t, 90, result.Used)
	require.EqualValues(t, 10, result.Remaining)
	require.Contains(t, result.Message, "requested 11")
	require.Contains(t, result.Message, "10 remaining")
	require.Contains(t, result.Message, "short 1")

	sub, err := store.subscriptionRow(1)
	require.NoError(t, err)
	require.EqualValues(t, 90, sub.AICreditsUsed, "a rejected spend must not move the counter")
	require.Empty(t, store.events)
}

func TestLedgerSpend_ConcurrentExactlyOneSuccess(t *testing.T) {
	store := newMemoryStore()
	store.seedSubscription(Subscription{SchoolID: 1, Tier: TierFree, AICredits: 100, AICreditsUsed: 90, Active: true})
	ledger, _ := newTestLedger(store, testNow)

	type outcome struct {
		result SpendResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.Spend(context.Background(), 1, 8, "ai-grading")
			outcomes <- outcome{result: result, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	granted := 0
	for out := range outcomes {
		require.NoError(t, out.err)
		if out.result.Granted {
			granted++
		}
	}
	require.Equal(t, 1, granted, "exactly one of two 8-credit spends fits into 10 remaining")

	sub, err := store.subscriptionRow(1)
	require.NoError(t, err)
	require.EqualValues(t, 98, sub.AICreditsUsed)
}

func TestLedgerSpend_ConcurrentNeverOverdraws(t *testing.T) {
	store := newMemoryStore()
	store.seedSubscription(Subscription{SchoolID: 1, Tier: TierFree, AICredits: 100, AICreditsUsed: 90, Active: true})
	ledger, _ := newTestLedger(store, testNow)

	const spenders = 50
	type outcome struct {
		result SpendResult
		err    error
	}
	outcomes := make(chan outcome, spenders)
	var wg sync.WaitGroup
	for i := 0; i < spenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.Spend(context.Background(), 1, 2, "ai-lesson-planner")
			outcomes <- outcome{result: result, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	granted := 0
	for out := range outcomes {
		require.NoError(t, out.err)
		if out.result.Granted {
			granted++
		}
	}
	require.Equal(t, 5, granted)

	sub, err := store.subscriptionRow(1)
	require.NoError(t, err)
	require.EqualValues(t, 100, sub.AICreditsUsed, "the counter must stop exactly at the allotment")
}

func TestLedgerSpend_UnlimitedBypassesCheck(t *testing.T) {
	store := newMemoryStore()
	store.seedSubscription(Subscription{SchoolID: 1, Tier: TierEnterprise, AICredits: Unlimited, AICreditsUsed: 5000, Active: true})
	ledger, _ := newTestLedger(store, testNow)

	result, err := ledger.Spend(context.Background(), 1, 99999, "report-insights")
	require.NoError(t, err)
	require.True(t, result.Granted)
	require.Equal(t, Unlimited, result.Remaining)
	require.EqualValues(t, 104999, result.Used, "the monotonic counter still advances")
}

func TestLedgerSpend_RejectsNonPositiveAmount(t *testing.T) {
	ledger, _ := newTestLedger(newMemoryStore(), testNow)

	_, err := ledger.Spend(context.Background(), 1, 0, "ai-grading")
	require.Error(t, err)
	_, err = ledger.Spend(context.Background(), 1, -3, "ai-grading")
	require.Error(t, err)
}

func TestLedgerSpend_LazySubscriptionDefault(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestLedger(store, testNow)

	result, err := ledger.Spend(context.Background(), 7, 10, "ai-grading")
	require.NoError(t, err)
	require.True(t, result.Granted, "a fresh school spends against the FREE allotment")
	require.EqualValues(t, 40, result.Remaining)
}
