// Package memory provides an in-process ledger store for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository"
	"github.com/shopspring/decimal"
)

var _ repository.Store = (*Store)(nil)

// Store keeps every record in maps guarded by a single mutex, so each
// method is trivially atomic.
type Store struct {
	mu            sync.RWMutex
	members       map[string]*domain.Member
	payments      []*domain.Payment
	subscriptions map[string]*domain.Subscription
	nextID        int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		members:       make(map[string]*domain.Member),
		subscriptions: make(map[string]*domain.Subscription),
		nextID:        1,
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateMember(ctx context.Context, m *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[m.Phone]; exists {
		return fmt.Errorf("member %s: %w", m.Phone, repository.ErrDuplicate)
	}
	s.members[m.Phone] = cloneMember(m)
	return nil
}

func (s *Store) GetMember(ctx context.Context, phone string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[phone]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	return cloneMember(m), nil
}

func (s *Store) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]*domain.Member, 0, len(s.members))
	for _, m := range s.members {
		members = append(members, cloneMember(m))
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Name == members[j].Name {
			return members[i].Phone < members[j].Phone
		}
		return members[i].Name < members[j].Name
	})
	return members, nil
}

func (s *Store) RenameMember(ctx context.Context, phone, name string) error {
	return s.updateMember(phone, func(m *domain.Member) { m.Name = name })
}

func (s *Store) SetMemberStatus(ctx context.Context, phone, status string) error {
	return s.updateMember(phone, func(m *domain.Member) { m.Status = status })
}

func (s *Store) updateMember(phone string, fn func(*domain.Member)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[phone]
	if !ok {
		return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	fn(m)
	return nil
}

func (s *Store) DeleteMember(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[phone]; !ok {
		return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	kept := s.payments[:0]
	for _, p := range s.payments {
		if p.Phone != phone {
			kept = append(kept, p)
		}
	}
	s.payments = kept
	delete(s.subscriptions, phone)
	delete(s.members, phone)
	return nil
}

func (s *Store) RecordPayment(ctx context.Context, p *domain.Payment, opts repository.RecordOptions) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[p.Phone]
	if !ok {
		return decimal.Zero, fmt.Errorf("member %s: %w", p.Phone, repository.ErrNotFound)
	}
	balance := m.Balance.Add(p.BalanceDelta)
	if opts.RequireFunds && balance.IsNegative() {
		return m.Balance, fmt.Errorf("member %s: %w", p.Phone, repository.ErrInsufficientFunds)
	}

	m.Balance = balance
	if opts.TouchLastPayment {
		at := p.Date
		m.LastPayment = &at
	}
	p.ID = s.nextID
	s.nextID++
	stored := *p
	s.payments = append(s.payments, &stored)
	return balance, nil
}

func (s *Store) AdjustBalance(ctx context.Context, phone string, target decimal.Decimal, at time.Time, description string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[phone]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	delta := target.Sub(m.Balance)
	p := &domain.Payment{
		ID:           s.nextID,
		Phone:        phone,
		Amount:       delta,
		Date:         at,
		Type:         domain.PaymentAdjustment,
		Description:  description,
		BalanceDelta: delta,
	}
	s.nextID++
	m.Balance = target
	stored := *p
	s.payments = append(s.payments, &stored)
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []*domain.PaymentView
	for _, p := range s.payments {
		if phone != "" && p.Phone != phone {
			continue
		}
		view := &domain.PaymentView{Payment: *p}
		if m, ok := s.members[p.Phone]; ok {
			view.Name = m.Name
		}
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Date.Equal(views[j].Date) {
			return views[i].ID > views[j].ID
		}
		return views[i].Date.After(views[j].Date)
	})
	return views, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sub
	s.subscriptions[sub.Phone] = &stored
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[phone]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", phone, repository.ErrNotFound)
	}
	out := *sub
	return &out, nil
}

// ListSubscriptions skips subscriptions whose member no longer exists,
// matching the inner join of the SQL stores.
func (s *Store) ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []*domain.SubscriptionView
	for phone, sub := range s.subscriptions {
		m, ok := s.members[phone]
		if !ok {
			continue
		}
		views = append(views, &domain.SubscriptionView{Subscription: *sub, Name: m.Name})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].StartDate.Equal(views[j].StartDate) {
			return views[i].Phone < views[j].Phone
		}
		return views[i].StartDate.After(views[j].StartDate)
	})
	return views, nil
}

func cloneMember(m *domain.Member) *domain.Member {
	out := *m
	if m.LastPayment != nil {
		at := *m.LastPayment
		out.LastPayment = &at
	}
	return &out
}
