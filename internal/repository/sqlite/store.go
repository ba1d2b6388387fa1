package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository"
	"github.com/shopspring/decimal"
)

// timeLayout is fixed width so TEXT ordering matches chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

var (
	_ repository.Store     = (*Store)(nil)
	_ repository.Backupper = (*Store)(nil)
)

// Store is the SQLite ledger store. Decimals are kept as TEXT and all
// arithmetic happens in Go inside an immediate transaction.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Backup writes a consistent copy of the database to path.
func (s *Store) Backup(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const memberColumns = `phone, name, balance, opening_balance, last_payment, join_date, status`

func (s *Store) CreateMember(ctx context.Context, m *domain.Member) error {
	query := `
		INSERT INTO members (phone, name, balance, opening_balance, join_date, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		m.Phone, m.Name, m.Balance.String(), m.OpeningBalance.String(), formatTime(m.JoinDate), m.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s: %w", m.Phone, repository.ErrDuplicate)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, phone string) (*domain.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = ?`, phone)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name, phone`)
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
	return s.execMember(ctx, `UPDATE members SET name = ? WHERE phone = ?`, name, phone)
}

func (s *Store) SetMemberStatus(ctx context.Context, phone, status string) error {
	return s.execMember(ctx, `UPDATE members SET status = ? WHERE phone = ?`, status, phone)
}

func (s *Store) execMember(ctx context.Context, query, value, phone string) error {
	res, err := s.db.ExecContext(ctx, query, value, phone)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	} else if n == 0 {
		return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteMember(ctx context.Context, phone string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE phone = ?`, phone); err != nil {
			return fmt.Errorf("failed to delete payments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE phone = ?`, phone); err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE phone = ?`, phone)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) RecordPayment(ctx context.Context, p *domain.Payment, opts repository.RecordOptions) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockedBalance(ctx, tx, p.Phone)
		if err != nil {
			return err
		}
		balance = current.Add(p.BalanceDelta)
		if opts.RequireFunds && balance.IsNegative() {
			return fmt.Errorf("member %s: %w", p.Phone, repository.ErrInsufficientFunds)
		}

		if opts.TouchLastPayment {
			_, err = tx.ExecContext(ctx, `UPDATE members SET balance = ?, last_payment = ? WHERE phone = ?`,
				balance.String(), formatTime(p.Date), p.Phone)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE members SET balance = ? WHERE phone = ?`, balance.String(), p.Phone)
		}
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		return insertPayment(ctx, tx, p)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Store) AdjustBalance(ctx context.Context, phone string, target decimal.Decimal, at time.Time, description string) (*domain.Payment, error) {
	var p *domain.Payment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockedBalance(ctx, tx, phone)
		if err != nil {
			return err
		}
		delta := target.Sub(current)
		p = &domain.Payment{
			Phone:        phone,
			Amount:       delta,
			Date:         at,
			Type:         domain.PaymentAdjustment,
			Description:  description,
			BalanceDelta: delta,
		}
		if _, err := tx.ExecContext(ctx, `UPDATE members SET balance = ? WHERE phone = ?`, target.String(), phone); err != nil {
			return fmt.Errorf("failed to set balance: %w", err)
		}
		return insertPayment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func lockedBalance(ctx context.Context, tx *sql.Tx, phone string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM members WHERE phone = ?`, phone).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("member %s: %w", phone, repository.ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func insertPayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	query := `
		INSERT INTO payments (phone, amount, payment_date, payment_type, description, balance_delta)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := tx.ExecContext(ctx, query,
		p.Phone, p.Amount.String(), formatTime(p.Date), p.Type, p.Description, p.BalanceDelta.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read payment id: %w", err)
	}
	p.ID = id
	return nil
}

func (s *Store) ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error) {
	query := `
		SELECT p.id, p.phone, COALESCE(m.name, ''), p.amount, p.payment_date,
		       p.payment_type, p.description, p.balance_delta
		FROM payments p
		LEFT JOIN members m ON p.phone = m.phone
		WHERE ? = '' OR p.phone = ?
		ORDER BY p.payment_date DESC, p.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, phone, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var views []*domain.PaymentView
	for rows.Next() {
		var v domain.PaymentView
		var date string
		if err := rows.Scan(&v.ID, &v.Phone, &v.Name, &v.Amount, &date, &v.Type, &v.Description, &v.BalanceDelta); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if v.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (phone, plan, start_date, end_date, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE
		SET plan = excluded.plan, start_date = excluded.start_date,
		    end_date = excluded.end_date, status = excluded.status
	`
	_, err := s.db.ExecContext(ctx, query,
		sub.Phone, sub.Plan, formatTime(sub.StartDate), formatNullTime(sub.EndDate), sub.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error) {
	query := `SELECT phone, plan, start_date, end_date, status FROM subscriptions WHERE phone = ?`
	var sub domain.Subscription
	var start string
	var end sql.NullString
	err := s.db.QueryRowContext(ctx, query, phone).Scan(&sub.Phone, &sub.Plan, &start, &end, &sub.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s: %w", phone, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	if sub.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if sub.EndDate, err = parseNullTime(end); err != nil {
		return nil, err
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
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var views []*domain.SubscriptionView
	for rows.Next() {
		var v domain.SubscriptionView
		var start string
		var end sql.NullString
		if err := rows.Scan(&v.Phone, &v.Name, &v.Plan, &start, &end, &v.Status); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		if v.StartDate, err = parseTime(start); err != nil {
			return nil, err
		}
		if v.EndDate, err = parseNullTime(end); err != nil {
			return nil, err
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*domain.Member, error) {
	var m domain.Member
	var lastPayment sql.NullString
	var joinDate string
	if err := row.Scan(&m.Phone, &m.Name, &m.Balance, &m.OpeningBalance, &lastPayment, &joinDate, &m.Status); err != nil {
		return nil, err
	}
	var err error
	if m.JoinDate, err = parseTime(joinDate); err != nil {
		return nil, err
	}
	if m.LastPayment, err = parseNullTime(lastPayment); err != nil {
		return nil, err
	}
	return &m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
