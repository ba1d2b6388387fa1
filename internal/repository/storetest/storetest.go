// Package storetest holds the behaviour every repository.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// Run exercises the store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetMember", func(t *testing.T) { testCreateAndGetMember(t, newStore(t)) })
	t.Run("DuplicateMember", func(t *testing.T) { testDuplicateMember(t, newStore(t)) })
	t.Run("ListMembersByName", func(t *testing.T) { testListMembersByName(t, newStore(t)) })
	t.Run("RenameAndStatus", func(t *testing.T) { testRenameAndStatus(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("RecordPayment", func(t *testing.T) { testRecordPayment(t, newStore(t)) })
	t.Run("RecordPaymentMissingMember", func(t *testing.T) { testRecordPaymentMissingMember(t, newStore(t)) })
	t.Run("RequireFunds", func(t *testing.T) { testRequireFunds(t, newStore(t)) })
	t.Run("AdjustBalance", func(t *testing.T) { testAdjustBalance(t, newStore(t)) })
	t.Run("ListPaymentsOrder", func(t *testing.T) { testListPaymentsOrder(t, newStore(t)) })
	t.Run("Subscriptions", func(t *testing.T) { testSubscriptions(t, newStore(t)) })
	t.Run("ConcurrentContributions", func(t *testing.T) { testConcurrentContributions(t, newStore(t)) })
}

func member(phone, name string, balance int64) *domain.Member {
	b := decimal.NewFromInt(balance)
	return &domain.Member{
		Phone:          phone,
		Name:           name,
		Balance:        b,
		OpeningBalance: b,
		JoinDate:       base,
		Status:         domain.MemberStatusActive,
	}
}

func contribution(phone string, amount int64, at time.Time) *domain.Payment {
	a := decimal.NewFromInt(amount)
	return &domain.Payment{
		Phone:        phone,
		Amount:       a,
		Date:         at,
		Type:         domain.PaymentContribution,
		BalanceDelta: a,
	}
}

func testCreateAndGetMember(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("+254700000001", "Alice", 250)))

	got, err := s.GetMember(ctx, "+254700000001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(250)))
	assert.True(t, got.OpeningBalance.Equal(decimal.NewFromInt(250)))
	assert.True(t, got.JoinDate.Equal(base))
	assert.Nil(t, got.LastPayment)
	assert.Equal(t, domain.MemberStatusActive, got.Status)

	_, err = s.GetMember(ctx, "+254799999999")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testDuplicateMember(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("+254700000001", "Alice", 0)))

	err := s.CreateMember(ctx, member("+254700000001", "Impostor", 999))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := s.GetMember(ctx, "+254700000001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.True(t, got.Balance.IsZero())
}

func testListMembersByName(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("3", "Carol", 0)))
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 0)))
	require.NoError(t, s.CreateMember(ctx, member("2", "Bob", 0)))

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "Alice", members[0].Name)
	assert.Equal(t, "Bob", members[1].Name)
	assert.Equal(t, "Carol", members[2].Name)
}

func testRenameAndStatus(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 0)))

	require.NoError(t, s.RenameMember(ctx, "1", "Alice Wanjiru"))
	require.NoError(t, s.SetMemberStatus(ctx, "1", domain.MemberStatusInactive))

	got, err := s.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Wanjiru", got.Name)
	assert.Equal(t, domain.MemberStatusInactive, got.Status)

	assert.ErrorIs(t, s.RenameMember(ctx, "missing", "x"), repository.ErrNotFound)
	assert.ErrorIs(t, s.SetMemberStatus(ctx, "missing", "x"), repository.ErrNotFound)
}

func testDeleteCascades(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 0)))
	require.NoError(t, s.CreateMember(ctx, member("2", "Bob", 0)))
	_, err := s.RecordPayment(ctx, contribution("1", 100, base), repository.RecordOptions{})
	require.NoError(t, err)
	_, err = s.RecordPayment(ctx, contribution("2", 50, base), repository.RecordOptions{})
	require.NoError(t, err)
	require.NoError(t, s.UpsertSubscription(ctx, &domain.Subscription{
		Phone: "1", Plan: domain.PlanBasic, StartDate: base, Status: domain.SubscriptionActive,
	}))

	require.NoError(t, s.DeleteMember(ctx, "1"))

	_, err = s.GetMember(ctx, "1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetSubscription(ctx, "1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	payments, err := s.ListPayments(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, payments)

	others, err := s.ListPayments(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, others, 1)

	assert.ErrorIs(t, s.DeleteMember(ctx, "1"), repository.ErrNotFound)
}

func testRecordPayment(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 1000)))

	p := contribution("1", 500, base)
	balance, err := s.RecordPayment(ctx, p, repository.RecordOptions{TouchLastPayment: true})
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1500)), "balance %s", balance)
	assert.NotZero(t, p.ID)

	got, err := s.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1500)))
	require.NotNil(t, got.LastPayment)
	assert.True(t, got.LastPayment.Equal(base))

	audit := &domain.Payment{
		Phone:  "1",
		Amount: decimal.NewFromInt(100),
		Date:   base.Add(time.Hour),
		Type:   domain.PaymentSubscription,
	}
	balance, err = s.RecordPayment(ctx, audit, repository.RecordOptions{})
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1500)))
	assert.Greater(t, audit.ID, p.ID)

	got, err = s.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.True(t, got.LastPayment.Equal(base), "untouched last payment")
}

func testRecordPaymentMissingMember(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.RecordPayment(ctx, contribution("ghost", 100, base), repository.RecordOptions{})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	payments, err := s.ListPayments(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func testRequireFunds(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 50)))

	charge := &domain.Payment{
		Phone:        "1",
		Amount:       decimal.NewFromInt(100),
		Date:         base,
		Type:         domain.PaymentSubscription,
		BalanceDelta: decimal.NewFromInt(-100),
	}
	_, err := s.RecordPayment(ctx, charge, repository.RecordOptions{RequireFunds: true})
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	got, err := s.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))
	payments, err := s.ListPayments(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, payments)

	charge.BalanceDelta = decimal.NewFromInt(-50)
	balance, err := s.RecordPayment(ctx, charge, repository.RecordOptions{RequireFunds: true})
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func testAdjustBalance(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 300)))

	p, err := s.AdjustBalance(ctx, "1", decimal.NewFromInt(120), base, "correction")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentAdjustment, p.Type)
	assert.True(t, p.BalanceDelta.Equal(decimal.NewFromInt(-180)))
	assert.NotZero(t, p.ID)

	got, err := s.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(120)))

	_, err = s.AdjustBalance(ctx, "ghost", decimal.Zero, base, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testListPaymentsOrder(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 0)))
	require.NoError(t, s.CreateMember(ctx, member("2", "Bob", 0)))

	first := contribution("1", 10, base)
	second := contribution("2", 20, base.Add(time.Hour))
	sameTime := contribution("1", 30, base.Add(time.Hour))
	for _, p := range []*domain.Payment{first, second, sameTime} {
		_, err := s.RecordPayment(ctx, p, repository.RecordOptions{})
		require.NoError(t, err)
	}

	all, err := s.ListPayments(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, sameTime.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, first.ID, all[2].ID)
	assert.Equal(t, "Bob", all[1].Name)
	assert.True(t, all[1].Date.Equal(base.Add(time.Hour)))

	mine, err := s.ListPayments(ctx, "1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Alice", mine[0].Name)
	assert.True(t, mine[0].Amount.Equal(decimal.NewFromInt(30)))
}

func testSubscriptions(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 0)))
	require.NoError(t, s.CreateMember(ctx, member("2", "Bob", 0)))

	_, err := s.GetSubscription(ctx, "1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.UpsertSubscription(ctx, &domain.Subscription{
		Phone: "1", Plan: domain.PlanBasic, StartDate: base, Status: domain.SubscriptionActive,
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &domain.Subscription{
		Phone: "2", Plan: domain.PlanBasic, StartDate: base.Add(time.Hour), Status: domain.SubscriptionActive,
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &domain.Subscription{
		Phone: "1", Plan: domain.PlanPremium, StartDate: base.Add(2 * time.Hour), Status: domain.SubscriptionActive,
	}))
	// A subscription without a member is stored but not listed.
	require.NoError(t, s.UpsertSubscription(ctx, &domain.Subscription{
		Phone: "orphan", Plan: domain.PlanBasic, StartDate: base.Add(3 * time.Hour), Status: domain.SubscriptionActive,
	}))

	sub, err := s.GetSubscription(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, sub.Plan)
	assert.Nil(t, sub.EndDate)
	assert.True(t, sub.StartDate.Equal(base.Add(2*time.Hour)))

	views, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "1", views[0].Phone)
	assert.Equal(t, "Alice", views[0].Name)
	assert.Equal(t, "2", views[1].Phone)
}

func testConcurrentContributions(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, member("1", "Alice", 0)))

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordPayment(ctx, contribution("1", 10, base), repository.RecordOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetMember(ctx, "1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10*n)), "balance %s", got.Balance)
}
