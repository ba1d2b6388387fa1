package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/chamahub/backend/internal/domain"
)

// CSV export kinds.
const (
	ExportMembers       = "members"
	ExportPayments      = "payments"
	ExportSubscriptions = "subscriptions"
)

// ExportKinds lists the accepted ExportCSV kinds.
var ExportKinds = []string{ExportMembers, ExportPayments, ExportSubscriptions}

// ExportCSV writes <kind>_export_<YYYYMMDD_HHMMSS>.csv.
func (g *Generator) ExportCSV(ctx context.Context, kind string) (string, error) {
	header, rows, err := g.Rows(ctx, kind)
	if err != nil {
		return "", err
	}

	path, err := g.path(fmt.Sprintf("%s_export_%s.csv", kind, g.now().Format("20060102_150405")))
	if err != nil {
		return "", err
	}
	if err := WriteCSV(path, header, rows); err != nil {
		return "", domain.ErrInternal("failed to write export", err)
	}
	log.Printf("[Report] Exported %d %s to %s", len(rows), kind, path)
	return path, nil
}

// Rows returns the header and rows of a CSV export kind.
func (g *Generator) Rows(ctx context.Context, kind string) ([]string, [][]string, error) {
	switch kind {
	case ExportMembers:
		members, err := g.src.ListMembers(ctx)
		if err != nil {
			return nil, nil, err
		}
		header, rows := MemberRows(members)
		return header, rows, nil
	case ExportPayments:
		payments, err := g.src.ListPayments(ctx, "")
		if err != nil {
			return nil, nil, err
		}
		header, rows := PaymentRows(payments)
		return header, rows, nil
	case ExportSubscriptions:
		subs, err := g.src.ListSubscriptions(ctx)
		if err != nil {
			return nil, nil, err
		}
		header, rows := SubscriptionRows(subs)
		return header, rows, nil
	}
	return nil, nil, domain.ErrValidation("invalid data type, choose from: members, payments, subscriptions")
}

func MemberRows(members []*domain.Member) ([]string, [][]string) {
	header := []string{"phone", "name", "balance", "opening_balance", "last_payment", "join_date", "status"}
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			m.Phone, m.Name, m.Balance.String(), m.OpeningBalance.String(),
			formatOptional(m.LastPayment), m.JoinDate.Format(time.RFC3339), m.Status,
		})
	}
	return header, rows
}

func PaymentRows(payments []*domain.PaymentView) ([]string, [][]string) {
	header := []string{"id", "phone", "name", "amount", "payment_date", "payment_type", "description", "balance_delta"}
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10), p.Phone, p.Name, p.Amount.String(),
			p.Date.Format(time.RFC3339), p.Type, p.Description, p.BalanceDelta.String(),
		})
	}
	return header, rows
}

func SubscriptionRows(subs []*domain.SubscriptionView) ([]string, [][]string) {
	header := []string{"phone", "name", "plan", "start_date", "end_date", "status"}
	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{
			s.Phone, s.Name, s.Plan, s.StartDate.Format(time.RFC3339), formatOptional(s.EndDate), s.Status,
		})
	}
	return header, rows
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteCSV writes header and rows to path.
func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
