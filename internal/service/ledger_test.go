package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) Publish(e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestLedger(t *testing.T) (*LedgerService, *memory.Store, *eventLog) {
	t.Helper()
	store := memory.New()
	events := &eventLog{}
	ledger := NewLedgerService(store, time.Second, events).WithClock(func() time.Time { return testNow })
	return ledger, store, events
}

func kes(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestContributionsAccumulateOnOpeningBalance(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.CreateMember(ctx, "+254700000001", "Alice", decimal.RequireFromString("250.50"))
	require.NoError(t, err)

	amounts := []string{"100", "0.25", "999.99", "50", "1"}
	want := decimal.RequireFromString("250.50")
	for _, a := range amounts {
		amount := decimal.RequireFromString(a)
		_, balance, err := ledger.AddPayment(ctx, "+254700000001", amount, domain.PaymentContribution, "")
		require.NoError(t, err)
		want = want.Add(amount)
		assert.True(t, balance.Equal(want), "after %s: got %s want %s", a, balance, want)
	}

	m, err := ledger.GetMember(ctx, "+254700000001")
	require.NoError(t, err)
	assert.True(t, m.Balance.Equal(want))
	require.NotNil(t, m.LastPayment)
	assert.True(t, m.LastPayment.Equal(testNow))
}

func TestCreateMemberTwice(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.CreateMember(ctx, "1", "Alice", decimal.Zero)
	require.NoError(t, err)
	_, err = ledger.CreateMember(ctx, "1", "Alice Again", decimal.Zero)
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists), "got %v", err)

	members, err := ledger.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Alice", members[0].Name)
}

func TestCreateMemberValidation(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.CreateMember(ctx, " ", "Alice", decimal.Zero)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	_, err = ledger.CreateMember(ctx, "1", "", decimal.Zero)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = ledger.CreateMemberFromRequest(ctx, &domain.CreateMemberRequest{Phone: "1"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDeleteMemberCascades(t *testing.T) {
	ctx := context.Background()
	ledger, _, events := newTestLedger(t)

	_, err := ledger.CreateMember(ctx, "1", "Alice", decimal.Zero)
	require.NoError(t, err)
	_, _, err = ledger.AddPayment(ctx, "1", kes(100), "", "")
	require.NoError(t, err)
	_, err = ledger.CreateSubscription(ctx, "1", domain.PlanBasic)
	require.NoError(t, err)

	require.NoError(t, ledger.DeleteMember(ctx, "1"))

	_, err = ledger.GetMember(ctx, "1")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	_, err = ledger.GetSubscription(ctx, "1")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	payments, err := ledger.ListPayments(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, payments)

	err = ledger.DeleteMember(ctx, "1")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	assert.Equal(t, []string{
		domain.EventMemberRegistered,
		domain.EventPaymentRecorded,
		domain.EventSubscriptionChanged,
		domain.EventMemberDeleted,
	}, events.types())
}

func TestAddPaymentTypes(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", kes(1000))
	require.NoError(t, err)

	p, balance, err := ledger.AddPayment(ctx, "1", kes(100), domain.PaymentSubscription, "manual fee record")
	require.NoError(t, err)
	assert.True(t, balance.Equal(kes(1000)), "non-contribution payments do not move the balance")
	assert.True(t, p.BalanceDelta.IsZero())

	m, err := ledger.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, m.LastPayment)

	// No sign validation outside the bot.
	_, balance, err = ledger.AddPayment(ctx, "1", kes(-40), "", "reversal")
	require.NoError(t, err)
	assert.True(t, balance.Equal(kes(960)))
}

func TestAddPaymentRejectsUnknownMember(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)

	_, _, err := ledger.AddPayment(ctx, "ghost", kes(100), "", "")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	payments, err := ledger.ListPayments(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestAmountsOutOfRangeAreRejected(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	huge := decimal.RequireFromString("1e300000000")
	tiny := decimal.RequireFromString("1e-300000000")

	_, err := ledger.CreateMember(ctx, "254700000001", "Alice", huge)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	_, err = ledger.CreateMember(ctx, "254700000001", "Alice", kes(100))
	require.NoError(t, err)

	for _, amount := range []decimal.Decimal{huge, tiny} {
		_, _, err = ledger.AddPayment(ctx, "254700000001", amount, "", "")
		assert.True(t, domain.IsKind(err, domain.KindValidation))
		_, _, err = ledger.AddPaymentFromRequest(ctx, &domain.CreatePaymentRequest{Phone: "254700000001", Amount: amount})
		assert.True(t, domain.IsKind(err, domain.KindValidation))
		_, err = ledger.SetBalance(ctx, "254700000001", amount, "")
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	}

	m, err := ledger.GetMember(ctx, "254700000001")
	require.NoError(t, err)
	assert.Equal(t, "100", m.Balance.String())
	payments, err := ledger.ListPayments(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestChargeSubscription(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", kes(350))
	require.NoError(t, err)

	p, balance, err := ledger.ChargeSubscription(ctx, "1", domain.PlanPremium)
	require.NoError(t, err)
	assert.True(t, balance.Equal(kes(50)))
	assert.Equal(t, domain.PaymentSubscription, p.Type)
	assert.True(t, p.Amount.Equal(kes(300)))
	assert.True(t, p.BalanceDelta.Equal(kes(-300)))
	assert.Equal(t, "Monthly premium subscription", p.Description)

	_, _, err = ledger.ChargeSubscription(ctx, "1", domain.PlanBasic)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientFunds))

	m, err := ledger.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.True(t, m.Balance.Equal(kes(50)))
}

func TestSetBalanceAndVerify(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", kes(100))
	require.NoError(t, err)

	_, _, err = ledger.AddPayment(ctx, "1", kes(500), "", "")
	require.NoError(t, err)
	_, _, err = ledger.ChargeSubscription(ctx, "1", domain.PlanBasic)
	require.NoError(t, err)
	p, err := ledger.SetBalance(ctx, "1", kes(1000), "")
	require.NoError(t, err)
	assert.True(t, p.BalanceDelta.Equal(kes(500)))
	assert.Equal(t, "Balance adjustment", p.Description)

	check, err := ledger.VerifyBalance(ctx, "1")
	require.NoError(t, err)
	assert.True(t, check.Stored.Equal(kes(1000)))
	assert.True(t, check.Derived.Equal(kes(1000)))
	assert.True(t, check.Consistent())

	_, err = ledger.SetBalance(ctx, "ghost", kes(1), "")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	_, err = ledger.VerifyBalance(ctx, "ghost")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestUpdateMember(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", kes(100))
	require.NoError(t, err)

	name := "Alice Wanjiru"
	status := domain.MemberStatusInactive
	balance := kes(40)
	m, err := ledger.UpdateMember(ctx, "1", &domain.UpdateMemberRequest{Name: &name, Status: &status, Balance: &balance})
	require.NoError(t, err)
	assert.Equal(t, name, m.Name)
	assert.Equal(t, status, m.Status)
	assert.True(t, m.Balance.Equal(balance))

	_, err = ledger.UpdateMember(ctx, "ghost", &domain.UpdateMemberRequest{Name: &name})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	blank := " "
	err = ledger.RenameMember(ctx, "1", blank)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestPaymentSummaryCountsCurrentMonthOnly(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", decimal.Zero)
	require.NoError(t, err)

	clock := testNow.AddDate(0, -1, 0)
	ledger.WithClock(func() time.Time { return clock })
	_, _, err = ledger.AddPayment(ctx, "1", kes(1000), "", "")
	require.NoError(t, err)

	clock = testNow
	_, _, err = ledger.AddPayment(ctx, "1", kes(200), "", "")
	require.NoError(t, err)
	_, _, err = ledger.AddPayment(ctx, "1", kes(50), domain.PaymentSubscription, "")
	require.NoError(t, err)

	summary, err := ledger.PaymentSummary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.TotalContributions.Equal(kes(1200)))
	assert.True(t, summary.MonthlyContributions.Equal(kes(200)))
	assert.Equal(t, 2, summary.PaymentCount)

	// Next month the June contribution no longer counts.
	clock = testNow.AddDate(0, 1, 0)
	summary, err = ledger.PaymentSummary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.MonthlyContributions.IsZero())
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", kes(100))
	require.NoError(t, err)
	_, err = ledger.CreateMember(ctx, "2", "Bob", kes(200))
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		_, _, err := ledger.AddPayment(ctx, "1", kes(10), "", "")
		require.NoError(t, err)
	}

	stats, err := ledger.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMembers)
	assert.True(t, stats.TotalBalance.Equal(kes(370)))
	assert.True(t, stats.TotalContributions.Equal(kes(70)))
	assert.True(t, stats.MonthlyContributions.Equal(kes(70)))
	assert.Len(t, stats.RecentPayments, 5)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", decimal.Zero)
	require.NoError(t, err)

	_, err = ledger.CreateSubscription(ctx, "1", "gold")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	sub, err := ledger.CreateSubscription(ctx, "1", domain.PlanBasic)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.True(t, sub.StartDate.Equal(testNow))

	_, err = ledger.CreateSubscription(ctx, "1", domain.PlanPremium)
	require.NoError(t, err)
	got, err := ledger.GetSubscription(ctx, "1")
	require.NoError(t, err)
	assert.True(t, got.IsPremium())

	// Subscriptions do not require a member.
	_, err = ledger.CreateSubscription(ctx, "2", domain.PlanBasic)
	require.NoError(t, err)

	views, err := ledger.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Alice", views[0].Name)
}

func TestConcurrentMutationsKeepBalanceConsistent(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.CreateMember(ctx, "1", "Alice", kes(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := ledger.AddPayment(ctx, "1", kes(100), "", "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, _, err := ledger.ChargeSubscription(ctx, "1", domain.PlanBasic)
			if err != nil {
				assert.True(t, domain.IsKind(err, domain.KindInsufficientFunds), "got %v", err)
			}
		}()
	}
	wg.Wait()

	check, err := ledger.VerifyBalance(ctx, "1")
	require.NoError(t, err)
	assert.True(t, check.Consistent(), "stored %s derived %s", check.Stored, check.Derived)
	assert.False(t, check.Stored.IsNegative())
	assert.Zero(t, ledger.locks.size())
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
	assert.Zero(t, k.size())

	// Different keys do not block each other.
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}
