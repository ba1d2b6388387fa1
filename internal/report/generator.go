// Package report renders ledger statements and summaries as PDF and CSV
// artifacts under a reports directory.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chamahub/backend/internal/domain"
)

// DefaultDir is used when no REPORTS_DIR is configured.
const DefaultDir = "reports"

// Source is the read side of the ledger a Generator needs.
type Source interface {
	GetMember(ctx context.Context, phone string) (*domain.Member, error)
	GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error)
	ListMembers(ctx context.Context) ([]*domain.Member, error)
	ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error)
	ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionView, error)
}

// Generator writes report artifacts. Every method returns the artifact path.
type Generator struct {
	src Source
	dir string
	now func() time.Time
}

// NewGenerator creates a Generator writing into dir.
func NewGenerator(src Source, dir string) *Generator {
	if dir == "" {
		dir = DefaultDir
	}
	return &Generator{src: src, dir: dir, now: time.Now}
}

// WithClock replaces the clock used for filenames and default periods.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Dir returns the output directory.
func (g *Generator) Dir() string {
	return g.dir
}

func (g *Generator) path(name string) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", domain.ErrInternal("failed to create reports directory", err)
	}
	return filepath.Join(g.dir, name), nil
}

// Open resolves a previously generated artifact by file name. Names with a
// directory component are rejected.
func (g *Generator) Open(name string) (*os.File, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return nil, domain.ErrBadRequest("invalid report name")
	}
	f, err := os.Open(filepath.Join(g.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("report not found")
		}
		return nil, domain.ErrInternal("failed to open report", err)
	}
	return f, nil
}

// Generate dispatches an API report request.
func (g *Generator) Generate(ctx context.Context, req *domain.GenerateReportRequest) (string, error) {
	switch req.Type {
	case domain.ReportMemberStatement:
		return g.MemberStatement(ctx, req.Phone)
	case domain.ReportMonthly:
		return g.MonthlyReport(ctx, req.Year, req.Month)
	case domain.ReportFinancialOverview:
		return g.FinancialOverview(ctx)
	case domain.ReportCSV:
		return g.ExportCSV(ctx, req.Data)
	}
	return "", domain.ErrValidation(fmt.Sprintf("unknown report type %q", req.Type))
}
