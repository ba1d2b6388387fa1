package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/report"
	"github.com/chamahub/backend/internal/repository"
	"github.com/chamahub/backend/pkg/crypto"
	"github.com/chamahub/backend/pkg/messaging"
	"github.com/google/uuid"
)

// Job names understood by the scheduler and the jobs API.
const (
	JobReminders = "reminder_sweep"
	JobBilling   = "billing_sweep"
	JobBackup    = "daily_backup"
	JobReports   = "weekly_reports"
)

const backupPrefix = "chama_backup_"

// StatementGenerator produces a member statement and returns its path.
type StatementGenerator interface {
	MemberStatement(ctx context.Context, phone string) (string, error)
}

// SweepRecorder observes finished sweeps. Implemented by the metrics package.
type SweepRecorder interface {
	ObserveSweep(job string, count int, duration time.Duration, err error)
}

// BackupConfig controls the backup sweep.
type BackupConfig struct {
	Dir           string
	RetentionDays int
	Sealer        *crypto.Sealer // nil leaves backups unencrypted
}

// SweepService runs the periodic ledger sweeps. Every sweep iterates the
// full member or subscription list once and isolates per-member failures.
type SweepService struct {
	ledger    *LedgerService
	store     repository.Store
	transport messaging.Transport
	reports   StatementGenerator
	backup    BackupConfig
	recorder  SweepRecorder
}

// NewSweepService creates a SweepService. reports may be nil, which makes
// the weekly report sweep a no-op.
func NewSweepService(ledger *LedgerService, store repository.Store, transport messaging.Transport, reports StatementGenerator, backup BackupConfig) *SweepService {
	if backup.Dir == "" {
		backup.Dir = "backups"
	}
	if backup.RetentionDays <= 0 {
		backup.RetentionDays = 7
	}
	return &SweepService{
		ledger:    ledger,
		store:     store,
		transport: transport,
		reports:   reports,
		backup:    backup,
	}
}

// WithRecorder attaches a sweep observer.
func (s *SweepService) WithRecorder(r SweepRecorder) *SweepService {
	s.recorder = r
	return s
}

// Jobs returns the named sweeps for the scheduler.
func (s *SweepService) Jobs() map[string]func(context.Context) (int, error) {
	return map[string]func(context.Context) (int, error){
		JobReminders: s.ReminderSweep,
		JobBilling:   s.BillingSweep,
		JobBackup:    s.BackupSweep,
		JobReports:   s.WeeklyReportSweep,
	}
}

// run detaches the sweep from the trigger's cancellation so it runs to
// completion once started.
func (s *SweepService) run(ctx context.Context, job string, fn func(ctx context.Context, runID string) (int, error)) (int, error) {
	runID := uuid.NewString()
	start := time.Now()
	log.Printf("[Sweep] %s started (run=%s)", job, runID)

	count, err := fn(context.WithoutCancel(ctx), runID)

	duration := time.Since(start)
	if err != nil {
		log.Printf("[Sweep] %s failed after %s (run=%s): %v", job, duration.Round(time.Millisecond), runID, err)
	} else {
		log.Printf("[Sweep] %s finished: %d in %s (run=%s)", job, count, duration.Round(time.Millisecond), runID)
	}
	if s.recorder != nil {
		s.recorder.ObserveSweep(job, count, duration, err)
	}
	s.ledger.publish(domain.EventSweepFinished, "", map[string]interface{}{
		"job":   job,
		"runId": runID,
		"count": count,
		"ok":    err == nil,
	})
	return count, err
}

// isolate runs one member's step of a sweep. A panic is logged and counted
// as a failure for that member only.
func isolate(component, runID, phone string, step func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] Panic while processing %s (run=%s): %v", component, phone, runID, r)
			ok = false
		}
	}()
	return step()
}

func (s *SweepService) send(ctx context.Context, runID, phone, body string) bool {
	if err := s.transport.Send(ctx, phone, body); err != nil {
		log.Printf("[Sweep] Send to %s failed (run=%s): %v", phone, runID, err)
		return false
	}
	return true
}

// ReminderSweep sends the weekly balance reminder to every active member
// with an active subscription and returns the number of successful sends.
func (s *SweepService) ReminderSweep(ctx context.Context) (int, error) {
	return s.run(ctx, JobReminders, func(ctx context.Context, runID string) (int, error) {
		members, err := s.ledger.ListMembers(ctx)
		if err != nil {
			return 0, err
		}

		sent := 0
		for _, m := range members {
			if !m.IsActive() {
				continue
			}
			if isolate("Reminder", runID, m.Phone, func() bool { return s.remindOne(ctx, runID, m) }) {
				sent++
			}
		}
		return sent, nil
	})
}

func (s *SweepService) remindOne(ctx context.Context, runID string, m *domain.Member) bool {
	sub, err := s.ledger.GetSubscription(ctx, m.Phone)
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			log.Printf("[Sweep] Subscription lookup for %s failed (run=%s): %v", m.Phone, runID, err)
		}
		return false
	}
	if !sub.IsActive() {
		return false
	}
	return s.send(ctx, runID, m.Phone, ReminderMessage(m))
}

// BillingSweep charges every active subscription its plan price. Members
// who cannot cover the price get a warning and no ledger change. It returns
// the number of members charged.
func (s *SweepService) BillingSweep(ctx context.Context) (int, error) {
	return s.run(ctx, JobBilling, func(ctx context.Context, runID string) (int, error) {
		subs, err := s.ledger.ListSubscriptions(ctx)
		if err != nil {
			return 0, err
		}

		charged := 0
		for _, sub := range subs {
			if !sub.IsActive() {
				continue
			}
			if isolate("Billing", runID, sub.Phone, func() bool { return s.billOne(ctx, runID, &sub.Subscription) }) {
				charged++
			}
		}
		return charged, nil
	})
}

func (s *SweepService) billOne(ctx context.Context, runID string, sub *domain.Subscription) bool {
	m, err := s.ledger.GetMember(ctx, sub.Phone)
	if err != nil {
		log.Printf("[Billing] Member lookup for %s failed (run=%s): %v", sub.Phone, runID, err)
		return false
	}

	fee := domain.PlanPrice(sub.Plan)
	_, balance, err := s.ledger.ChargeSubscription(ctx, sub.Phone, sub.Plan)
	switch {
	case err == nil:
		log.Printf("[Billing] Charged %s KES %s (run=%s)", sub.Phone, fee, runID)
		s.send(ctx, runID, sub.Phone, BillingConfirmation(m.Name, sub.Plan, fee, balance))
		return true
	case domain.IsKind(err, domain.KindInsufficientFunds):
		current := m.Balance
		if fresh, err := s.ledger.GetMember(ctx, sub.Phone); err == nil {
			current = fresh.Balance
		}
		s.send(ctx, runID, sub.Phone, BillingWarning(m.Name, sub.Plan, fee, current))
		return false
	default:
		log.Printf("[Billing] Charge for %s failed (run=%s): %v", sub.Phone, runID, err)
		return false
	}
}

// WeeklyReportSweep generates a statement for every active premium
// subscriber and notifies them. It returns the number of statements
// generated.
func (s *SweepService) WeeklyReportSweep(ctx context.Context) (int, error) {
	return s.run(ctx, JobReports, func(ctx context.Context, runID string) (int, error) {
		if s.reports == nil {
			log.Printf("[Sweep] No report generator configured, skipping (run=%s)", runID)
			return 0, nil
		}
		subs, err := s.ledger.ListSubscriptions(ctx)
		if err != nil {
			return 0, err
		}

		generated := 0
		for _, sub := range subs {
			if !sub.IsActive() || !sub.IsPremium() {
				continue
			}
			if isolate("Reports", runID, sub.Phone, func() bool { return s.reportOne(ctx, runID, sub.Phone) }) {
				generated++
			}
		}
		return generated, nil
	})
}

func (s *SweepService) reportOne(ctx context.Context, runID, phone string) bool {
	m, err := s.ledger.GetMember(ctx, phone)
	if err != nil {
		log.Printf("[Sweep] Member lookup for %s failed (run=%s): %v", phone, runID, err)
		return false
	}
	if _, err := s.reports.MemberStatement(ctx, phone); err != nil {
		log.Printf("[Sweep] Statement for %s failed (run=%s): %v", phone, runID, err)
		return false
	}
	s.send(ctx, runID, phone, WeeklyReportMessage(m, s.ledger.Now()))
	return true
}

// BackupSweep writes a snapshot of the store to the backup directory and
// prunes snapshots older than the retention window. It returns the number
// of files written.
func (s *SweepService) BackupSweep(ctx context.Context) (int, error) {
	return s.run(ctx, JobBackup, func(ctx context.Context, runID string) (int, error) {
		if err := os.MkdirAll(s.backup.Dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create backup directory: %w", err)
		}
		stamp := s.ledger.Now().Format("20060102_150405")

		paths, err := s.writeBackup(ctx, stamp)
		if err != nil {
			return 0, err
		}
		if s.backup.Sealer != nil {
			for i, p := range paths {
				sealed, err := s.backup.Sealer.SealFile(p)
				if err != nil {
					return 0, err
				}
				paths[i] = sealed
			}
		}
		for _, p := range paths {
			log.Printf("[Backup] Wrote %s (run=%s)", p, runID)
		}

		removed := s.pruneBackups(time.Duration(s.backup.RetentionDays) * 24 * time.Hour)
		if removed > 0 {
			log.Printf("[Backup] Removed %d old backups (run=%s)", removed, runID)
		}
		return len(paths), nil
	})
}

type backupTable struct {
	name   string
	header []string
	rows   [][]string
}

func (s *SweepService) writeBackup(ctx context.Context, stamp string) ([]string, error) {
	if b, ok := s.store.(repository.Backupper); ok {
		path := filepath.Join(s.backup.Dir, backupPrefix+stamp+".db")
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := b.Backup(ctx, path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	// Stores without a native snapshot are exported table by table.
	members, err := s.ledger.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.ledger.ListPayments(ctx, "")
	if err != nil {
		return nil, err
	}
	subs, err := s.ledger.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	mh, mr := report.MemberRows(members)
	ph, pr := report.PaymentRows(payments)
	sh, sr := report.SubscriptionRows(subs)
	tables := []backupTable{
		{report.ExportMembers, mh, mr},
		{report.ExportPayments, ph, pr},
		{report.ExportSubscriptions, sh, sr},
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(s.backup.Dir, fmt.Sprintf("%s%s_%s.csv", backupPrefix, stamp, t.name))
		if err := report.WriteCSV(path, t.header, t.rows); err != nil {
			return nil, fmt.Errorf("failed to write %s backup: %w", t.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *SweepService) pruneBackups(retention time.Duration) int {
	entries, err := os.ReadDir(s.backup.Dir)
	if err != nil {
		log.Printf("[Backup] Failed to list backups: %v", err)
		return 0
	}
	cutoff := s.ledger.Now().Add(-retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.backup.Dir, e.Name())); err != nil {
			log.Printf("[Backup] Failed to remove %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed
}

// Broadcast sends a custom admin message to one member, or to every active
// member when phone is empty.
func (s *SweepService) Broadcast(ctx context.Context, phone, message string) (*domain.BroadcastResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrValidation("message is required")
	}

	var recipients []string
	if phone != "" {
		m, err := s.ledger.GetMember(ctx, phone)
		if err != nil {
			return nil, err
		}
		recipients = []string{m.Phone}
	} else {
		members, err := s.ledger.ListMembers(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.IsActive() {
				recipients = append(recipients, m.Phone)
			}
		}
	}

	resp := &domain.BroadcastResponse{}
	for _, to := range recipients {
		if err := s.transport.Send(ctx, to, message); err != nil {
			log.Printf("[Broadcast] Send to %s failed: %v", to, err)
			resp.Failed++
			continue
		}
		resp.Sent++
	}
	log.Printf("[Broadcast] Sent %d, failed %d", resp.Sent, resp.Failed)
	if phone != "" && resp.Failed > 0 {
		return resp, domain.ErrTransportFailure("failed to send message", nil)
	}
	return resp, nil
}
