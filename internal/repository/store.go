package repository

import (
	"context"
	"errors"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/shopspring/decimal"
)

// Sentinel errors every store backend returns, usually wrapped.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// MemberStore persists chama members.
type MemberStore interface {
	CreateMember(ctx context.Context, m *domain.Member) error
	GetMember(ctx context.Context, phone string) (*domain.Member, error)
	// ListMembers returns every member ordered by name.
	ListMembers(ctx context.Context) ([]*domain.Member, error)
	RenameMember(ctx context.Context, phone, name string) error
	SetMemberStatus(ctx context.Context, phone, status string) error
	// DeleteMember removes the member with its payments and subscription as
	// one transaction.
	DeleteMember(ctx context.Context, phone string) error
}

// RecordOptions controls how a payment moves the owning member's balance.
type RecordOptions struct {
	// TouchLastPayment sets the member's last payment date to the payment date.
	TouchLastPayment bool
	// RequireFunds rejects the payment with ErrInsufficientFunds when the
	// balance delta would take the balance below zero.
	RequireFunds bool
}

// PaymentStore persists the payment ledger. Balance changes only happen
// through these methods so each one is paired with its payment row.
type PaymentStore interface {
	// RecordPayment inserts p, assigns p.ID and applies p.BalanceDelta to the
	// owning member in one transaction. It returns the resulting balance.
	RecordPayment(ctx context.Context, p *domain.Payment, opts RecordOptions) (decimal.Decimal, error)
	// AdjustBalance sets the member's balance to target and records the
	// difference as an adjustment payment in one transaction.
	AdjustBalance(ctx context.Context, phone string, target decimal.Decimal, at time.Time, description string) (*domain.Payment, error)
	// ListPayments returns payments newest first, filtered by phone when set.
	ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error)
}

// SubscriptionStore persists bot subscriptions.
type SubscriptionStore interface {
	// UpsertSubscription replaces any existing subscription for the phone.
	UpsertSubscription(ctx context.Context, s *domain.Subscription) error
	GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error)
	// ListSubscriptions returns subscriptions newest first.
	ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionView, error)
}

// Store is the complete ledger store.
type Store interface {
	MemberStore
	PaymentStore
	SubscriptionStore
	Ping(ctx context.Context) error
	Close() error
}

// Backupper is implemented by stores that can write a consistent copy of
// themselves to a file.
type Backupper interface {
	Backup(ctx context.Context, path string) error
}
