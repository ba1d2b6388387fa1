package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for duplicate keys.
const uniqueViolation = "23505"

var _ repository.Store = (*Store)(nil)

// Store is the PostgreSQL ledger store. Numerics travel as text so amounts
// keep their exact decimal value.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

const memberColumns = `phone, name, balance::text, opening_balance::text, last_payment, join_date, status`

func (s *Store) CreateMember(ctx context.Context, m *domain.Member) error {
	query := `
		INSERT INTO members (phone, name, balance, opening_balance, join_date, status)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		m.Phone, m.Name, m.Balance.String(), m.OpeningBalance.String(), m.JoinDate, m.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %s: %w", m.Phone, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, phone string) (*domain.Member, error) {
	row := s.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = $1`, phone)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	rows, err := s.db.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name, phone`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) RenameMember(ctx context.Context, phone, name string) error {
	return s.execMember(ctx, `UPDATE members SET name = $1 WHERE phone = $2`, name, phone)
}

func (s *Store) SetMemberStatus(ctx context.Context, phone, status string) error {
	return s.execMember(ctx, `UPDATE members SET status = $1 WHERE phone = $2`, status, phone)
}

func (s *Store) execMember(ctx context.Context, query, value, phone string) error {
	tag, err := s.db.Exec(ctx, query, value, phone)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteMember(ctx context.Context, phone string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM subscriptions WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM members WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	return tx.Commit(ctx)
}

func (s *Store) RecordPayment(ctx context.Context, p *domain.Payment, opts repository.RecordOptions) (decimal.Decimal, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin payment: %w", err)
	}
	defer tx.Rollback(ctx)

	// Arithmetic stays in the statement so concurrent writers cannot lose
	// an update.
	update := `
		UPDATE members
		SET balance = balance + $1::numeric,
		    last_payment = CASE WHEN $3::boolean THEN $4::timestamptz ELSE last_payment END
		WHERE phone = $2 AND (NOT $5::boolean OR balance + $1::numeric >= 0)
		RETURNING balance::text
	`
	var raw string
	err = tx.QueryRow(ctx, update,
		p.BalanceDelta.String(), p.Phone, opts.TouchLastPayment, p.Date, opts.RequireFunds,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, s.missingOrShort(ctx, tx, p.Phone)
		}
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}

	insert := `
		INSERT INTO payments (phone, amount, payment_date, payment_type, description, balance_delta)
		VALUES ($1, $2::numeric, $3, $4, $5, $6::numeric)
		RETURNING id
	`
	err = tx.QueryRow(ctx, insert,
		p.Phone, p.Amount.String(), p.Date, p.Type, p.Description, p.BalanceDelta.String(),
	).Scan(&p.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit payment: %w", err)
	}
	return decimal.NewFromString(raw)
}

// missingOrShort explains why the guarded balance update matched no row.
func (s *Store) missingOrShort(ctx context.Context, tx pgx.Tx, phone string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE phone = $1)`, phone).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check member existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	return fmt.Errorf("member %s: %w", phone, repository.ErrInsufficientFunds)
}

func (s *Store) AdjustBalance(ctx context.Context, phone string, target decimal.Decimal, at time.Time, description string) (*domain.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin adjustment: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw string
	err = tx.QueryRow(ctx, `SELECT balance::text FROM members WHERE phone = $1 FOR UPDATE`, phone).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock member: %w", err)
	}
	current, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}

	delta := target.Sub(current)
	p := &domain.Payment{
		Phone:        phone,
		Amount:       delta,
		Date:         at,
		Type:         domain.PaymentAdjustment,
		Description:  description,
		BalanceDelta: delta,
	}
	if _, err := tx.Exec(ctx, `UPDATE members SET balance = $1::numeric WHERE phone = $2`, target.String(), phone); err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	insert := `
		INSERT INTO payments (phone, amount, payment_date, payment_type, description, balance_delta)
		VALUES ($1, $2::numeric, $3, $4, $5, $6::numeric)
		RETURNING id
	`
	if err := tx.QueryRow(ctx, insert, p.Phone, p.Amount.String(), p.Date, p.Type, p.Description, p.BalanceDelta.String()).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("failed to insert adjustment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error) {
	query := `
		SELECT p.id, p.phone, COALESCE(m.name, ''), p.amount::text, p.payment_date,
		       p.payment_type, p.description, p.balance_delta::text
		FROM payments p
		LEFT JOIN members m ON p.phone = m.phone
		WHERE $1 = '' OR p.phone = $1
		ORDER BY p.payment_date DESC, p.id DESC
	`
	rows, err := s.db.Query(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var views []*domain.PaymentView
	for rows.Next() {
		var v domain.PaymentView
		var amount, delta string
		if err := rows.Scan(&v.ID, &v.Phone, &v.Name, &amount, &v.Date, &v.Type, &v.Description, &delta); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if v.BalanceDelta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("failed to parse balance delta: %w", err)
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (phone, plan, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone) DO UPDATE
		SET plan = EXCLUDED.plan, start_date = EXCLUDED.start_date,
		    end_date = EXCLUDED.end_date, status = EXCLUDED.status
	`
	_, err := s.db.Exec(ctx, query, sub.Phone, sub.Plan, sub.StartDate, sub.EndDate, sub.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error) {
	query := `SELECT phone, plan, start_date, end_date, status FROM subscriptions WHERE phone = $1`
	var sub domain.Subscription
	err := s.db.QueryRow(ctx, query, phone).Scan(&sub.Phone, &sub.Plan, &sub.StartDate, &sub.EndDate, &sub.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s: %w", phone, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &sub, nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionView, error) {
	query := `
		SELECT s.phone, m.name, s.plan, s.start_date, s.end_date, s.status
		FROM subscriptions s
		JOIN members m ON s.phone = m.phone
		ORDER BY s.start_date DESC, s.phone
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var views []*domain.SubscriptionView
	for rows.Next() {
		var v domain.SubscriptionView
		if err := rows.Scan(&v.Phone, &v.Name, &v.Plan, &v.StartDate, &v.EndDate, &v.Status); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	var m domain.Member
	var balance, opening string
	if err := row.Scan(&m.Phone, &m.Name, &balance, &opening, &m.LastPayment, &m.JoinDate, &m.Status); err != nil {
		return nil, err
	}
	var err error
	if m.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	if m.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("failed to parse opening balance: %w", err)
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
