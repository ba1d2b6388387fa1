package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultStoreTimeout bounds every store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// LedgerService owns every balance-affecting mutation. Each balance change
// goes through a store method that writes the paired payment row in the same
// transaction, and mutations on one phone are serialized in-process.
type LedgerService struct {
	store    repository.Store
	locks    *keyedMutex
	timeout  time.Duration
	events   domain.EventSink
	now      func() time.Time
	validate *validator.Validate
}

// NewLedgerService creates a LedgerService. events may be nil.
func NewLedgerService(store repository.Store, timeout time.Duration, events domain.EventSink) *LedgerService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &LedgerService{
		store:    store,
		locks:    newKeyedMutex(),
		timeout:  timeout,
		events:   events,
		now:      time.Now,
		validate: validator.New(),
	}
}

// WithClock replaces the clock used for join, payment and summary dates.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Now returns the service clock.
func (s *LedgerService) Now() time.Time {
	return s.now()
}

func (s *LedgerService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *LedgerService) publish(eventType, phone string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.Event{Type: eventType, Phone: phone, Payload: payload, At: s.now()})
}

const errAmountRange = "amount out of range"

// --- Members ---

// CreateMember registers a member with an opening balance.
func (s *LedgerService) CreateMember(ctx context.Context, phone, name string, initialBalance decimal.Decimal) (*domain.Member, error) {
	phone = strings.TrimSpace(phone)
	name = strings.TrimSpace(name)
	if phone == "" {
		return nil, domain.ErrValidation("phone is required")
	}
	if name == "" {
		return nil, domain.ErrValidation("name is required")
	}
	if !domain.AmountInRange(initialBalance) {
		return nil, domain.ErrValidation(errAmountRange)
	}

	m := &domain.Member{
		Phone:          phone,
		Name:           name,
		Balance:        initialBalance,
		OpeningBalance: initialBalance,
		JoinDate:       s.now(),
		Status:         domain.MemberStatusActive,
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateMember(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrAlreadyExists("member already registered")
		}
		return nil, domain.ErrWriteFailure("failed to create member", err)
	}

	s.publish(domain.EventMemberRegistered, phone, m)
	return m, nil
}

// CreateMemberFromRequest validates and registers a member from API input.
func (s *LedgerService) CreateMemberFromRequest(ctx context.Context, req *domain.CreateMemberRequest) (*domain.Member, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	return s.CreateMember(ctx, req.Phone, req.Name, req.Balance)
}

func (s *LedgerService) GetMember(ctx context.Context, phone string) (*domain.Member, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	m, err := s.store.GetMember(ctx, phone)
	if err != nil {
		return nil, readError("member not found", "failed to get member", err)
	}
	return m, nil
}

// ListMembers returns every member ordered by name.
func (s *LedgerService) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list members", err)
	}
	return members, nil
}

func (s *LedgerService) RenameMember(ctx context.Context, phone, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrValidation("name is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.store.RenameMember(ctx, phone, name); err != nil {
		return writeError("failed to rename member", err)
	}
	return nil
}

func (s *LedgerService) SetMemberStatus(ctx context.Context, phone, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return domain.ErrValidation("status is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.store.SetMemberStatus(ctx, phone, status); err != nil {
		return writeError("failed to update member status", err)
	}
	return nil
}

// SetBalance overwrites the balance and records the signed difference as an
// adjustment payment.
func (s *LedgerService) SetBalance(ctx context.Context, phone string, balance decimal.Decimal, description string) (*domain.Payment, error) {
	if !domain.AmountInRange(balance) {
		return nil, domain.ErrValidation(errAmountRange)
	}
	unlock := s.locks.Lock(phone)
	defer unlock()

	if description == "" {
		description = "Balance adjustment"
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	p, err := s.store.AdjustBalance(ctx, phone, balance, s.now(), description)
	if err != nil {
		return nil, writeError("failed to set balance", err)
	}
	s.publish(domain.EventPaymentRecorded, phone, p)
	return p, nil
}

// UpdateMember applies the closed set of admin-editable fields in order:
// name, status, balance.
func (s *LedgerService) UpdateMember(ctx context.Context, phone string, req *domain.UpdateMemberRequest) (*domain.Member, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	if req.Name != nil {
		if err := s.RenameMember(ctx, phone, *req.Name); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if err := s.SetMemberStatus(ctx, phone, *req.Status); err != nil {
			return nil, err
		}
	}
	if req.Balance != nil {
		if _, err := s.SetBalance(ctx, phone, *req.Balance, ""); err != nil {
			return nil, err
		}
	}
	return s.GetMember(ctx, phone)
}

// DeleteMember removes the member together with its payments and
// subscription.
func (s *LedgerService) DeleteMember(ctx context.Context, phone string) error {
	unlock := s.locks.Lock(phone)
	defer unlock()

	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.DeleteMember(ctx, phone); err != nil {
		return writeError("failed to delete member", err)
	}
	s.publish(domain.EventMemberDeleted, phone, nil)
	return nil
}

// VerifyBalance folds the member's payment history onto its opening balance
// and compares the result with the stored balance.
func (s *LedgerService) VerifyBalance(ctx context.Context, phone string) (*domain.BalanceCheck, error) {
	m, err := s.GetMember(ctx, phone)
	if err != nil {
		return nil, err
	}
	payments, err := s.ListPayments(ctx, phone)
	if err != nil {
		return nil, err
	}

	derived := m.OpeningBalance
	for _, p := range payments {
		derived = derived.Add(p.BalanceDelta)
	}
	return &domain.BalanceCheck{
		Phone:   phone,
		Stored:  m.Balance,
		Derived: derived,
		Drift:   m.Balance.Sub(derived),
	}, nil
}

// --- Payments ---

// AddPayment records a payment. Contributions credit the member balance and
// set the last payment date; other types are recorded for audit only. The
// amount sign is not checked here.
func (s *LedgerService) AddPayment(ctx context.Context, phone string, amount decimal.Decimal, paymentType, description string) (*domain.Payment, decimal.Decimal, error) {
	if !domain.AmountInRange(amount) {
		return nil, decimal.Zero, domain.ErrValidation(errAmountRange)
	}
	if paymentType == "" {
		paymentType = domain.PaymentContribution
	}
	p := &domain.Payment{
		Phone:       phone,
		Amount:      amount,
		Date:        s.now(),
		Type:        paymentType,
		Description: description,
	}
	opts := repository.RecordOptions{}
	if paymentType == domain.PaymentContribution {
		p.BalanceDelta = amount
		opts.TouchLastPayment = true
	}
	return s.record(ctx, p, opts, "failed to record payment")
}

// AddPaymentFromRequest validates and records a payment from API input.
func (s *LedgerService) AddPaymentFromRequest(ctx context.Context, req *domain.CreatePaymentRequest) (*domain.Payment, decimal.Decimal, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, decimal.Zero, domain.ErrValidation(formatValidationErrors(err))
	}
	return s.AddPayment(ctx, req.Phone, req.Amount, req.Type, req.Description)
}

// ChargeSubscription debits the plan price from the member and records a
// subscription payment carrying the debit. It fails with insufficient_funds
// and changes nothing when the balance does not cover the price.
func (s *LedgerService) ChargeSubscription(ctx context.Context, phone, plan string) (*domain.Payment, decimal.Decimal, error) {
	price := domain.PlanPrice(plan)
	p := &domain.Payment{
		Phone:        phone,
		Amount:       price,
		Date:         s.now(),
		Type:         domain.PaymentSubscription,
		Description:  fmt.Sprintf("Monthly %s subscription", plan),
		BalanceDelta: price.Neg(),
	}
	return s.record(ctx, p, repository.RecordOptions{RequireFunds: true}, "failed to charge subscription")
}

func (s *LedgerService) record(ctx context.Context, p *domain.Payment, opts repository.RecordOptions, failMsg string) (*domain.Payment, decimal.Decimal, error) {
	unlock := s.locks.Lock(p.Phone)
	defer unlock()

	ctx, cancel := s.bound(ctx)
	defer cancel()

	balance, err := s.store.RecordPayment(ctx, p, opts)
	if err != nil {
		return nil, decimal.Zero, writeError(failMsg, err)
	}
	s.publish(domain.EventPaymentRecorded, p.Phone, p)
	return p, balance, nil
}

// ListPayments returns payments newest first, filtered by phone when set.
func (s *LedgerService) ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	payments, err := s.store.ListPayments(ctx, phone)
	if err != nil {
		return nil, domain.ErrInternal("failed to list payments", err)
	}
	return payments, nil
}

// PaymentSummary aggregates contributions. The month is the calendar month
// of the service clock at call time.
func (s *LedgerService) PaymentSummary(ctx context.Context) (*domain.PaymentSummary, error) {
	payments, err := s.ListPayments(ctx, "")
	if err != nil {
		return nil, err
	}
	return summarize(payments, s.now()), nil
}

func summarize(payments []*domain.PaymentView, now time.Time) *domain.PaymentSummary {
	summary := &domain.PaymentSummary{
		TotalContributions:   decimal.Zero,
		MonthlyContributions: decimal.Zero,
	}
	year, month, _ := now.Date()
	for _, p := range payments {
		if p.Type != domain.PaymentContribution {
			continue
		}
		summary.TotalContributions = summary.TotalContributions.Add(p.Amount)
		summary.PaymentCount++
		py, pm, _ := p.Date.In(now.Location()).Date()
		if py == year && pm == month {
			summary.MonthlyContributions = summary.MonthlyContributions.Add(p.Amount)
		}
	}
	return summary
}

// DashboardStats returns the admin landing summary.
func (s *LedgerService) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.ListPayments(ctx, "")
	if err != nil {
		return nil, err
	}

	summary := summarize(payments, s.now())
	stats := &domain.DashboardStats{
		TotalMembers:         len(members),
		TotalBalance:         decimal.Zero,
		MonthlyContributions: summary.MonthlyContributions,
		TotalContributions:   summary.TotalContributions,
	}
	for _, m := range members {
		stats.TotalBalance = stats.TotalBalance.Add(m.Balance)
	}
	recent := payments
	if len(recent) > 5 {
		recent = recent[:5]
	}
	stats.RecentPayments = recent
	return stats, nil
}

// --- Subscriptions ---

// CreateSubscription replaces the member's subscription with an active one
// starting now.
func (s *LedgerService) CreateSubscription(ctx context.Context, phone, plan string) (*domain.Subscription, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, domain.ErrValidation("phone is required")
	}
	if _, ok := domain.GetPlan(plan); !ok {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown plan %q", plan))
	}

	sub := &domain.Subscription{
		Phone:     phone,
		Plan:      plan,
		StartDate: s.now(),
		Status:    domain.SubscriptionActive,
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return nil, domain.ErrWriteFailure("failed to create subscription", err)
	}

	log.Printf("[Ledger] Subscription %s set to %s", phone, plan)
	s.publish(domain.EventSubscriptionChanged, phone, sub)
	return sub, nil
}

func (s *LedgerService) GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sub, err := s.store.GetSubscription(ctx, phone)
	if err != nil {
		return nil, readError("subscription not found", "failed to get subscription", err)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions joined with member names, newest
// first.
func (s *LedgerService) ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionView, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}
	return subs, nil
}

// Ping checks the store.
func (s *LedgerService) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

// --- error mapping ---

func readError(notFoundMsg, failMsg string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrNotFound(notFoundMsg)
	}
	return domain.ErrInternal(failMsg, err)
}

func writeError(failMsg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNotFound("member not found")
	case errors.Is(err, repository.ErrDuplicate):
		return domain.ErrAlreadyExists("member already registered")
	case errors.Is(err, repository.ErrInsufficientFunds):
		return domain.ErrInsufficientFunds("insufficient balance")
	}
	return domain.ErrWriteFailure(failMsg, err)
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
