package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

type fakeSource struct {
	members  []*domain.Member
	payments []*domain.PaymentView
	subs     []*domain.SubscriptionView
}

func (f *fakeSource) GetMember(ctx context.Context, phone string) (*domain.Member, error) {
	for _, m := range f.members {
		if m.Phone == phone {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound("member not found")
}

func (f *fakeSource) GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error) {
	for _, s := range f.subs {
		if s.Phone == phone {
			return &s.Subscription, nil
		}
	}
	return nil, domain.ErrNotFound("subscription not found")
}

func (f *fakeSource) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	return f.members, nil
}

func (f *fakeSource) ListPayments(ctx context.Context, phone string) ([]*domain.PaymentView, error) {
	var out []*domain.PaymentView
	for _, p := range f.payments {
		if phone == "" || p.Phone == phone {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionView, error) {
	return f.subs, nil
}

func kes(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func pay(id int64, phone, name string, amount int64, at time.Time, kind string) *domain.PaymentView {
	return &domain.PaymentView{
		Payment: domain.Payment{ID: id, Phone: phone, Amount: kes(amount), Date: at, Type: kind},
		Name:    name,
	}
}

func sampleSource() *fakeSource {
	return &fakeSource{
		members: []*domain.Member{
			{Phone: "1", Name: "Alice", Balance: kes(1500), JoinDate: now.AddDate(-1, 0, 0), Status: domain.MemberStatusActive},
			{Phone: "2", Name: "Bob", Balance: kes(500), JoinDate: now.AddDate(0, -2, 0), Status: "inactive"},
		},
		payments: []*domain.PaymentView{
			pay(5, "1", "Alice", 500, now.AddDate(0, 0, -1), domain.PaymentContribution),
			pay(4, "2", "Bob", 300, now.AddDate(0, 0, -2), domain.PaymentContribution),
			pay(3, "1", "Alice", 100, now.AddDate(0, 0, -3), domain.PaymentSubscription),
			pay(2, "ghost", "", 900, now.AddDate(0, 0, -4), domain.PaymentContribution),
			pay(1, "1", "Alice", 1000, now.AddDate(0, -2, 0), domain.PaymentContribution),
		},
		subs: []*domain.SubscriptionView{
			{Subscription: domain.Subscription{Phone: "1", Plan: domain.PlanPremium, StartDate: now, Status: domain.SubscriptionActive}, Name: "Alice"},
		},
	}
}

func TestMonthly(t *testing.T) {
	src := sampleSource()
	stats := Monthly(src.members, src.payments, 2025, time.June, time.UTC)

	assert.Equal(t, 2, stats.TotalMembers)
	assert.Equal(t, 1, stats.ActiveMembers)
	assert.True(t, stats.TotalBalance.Equal(kes(2000)))
	assert.True(t, stats.MonthlyContributions.Equal(kes(1700)), stats.MonthlyContributions.String())
	assert.Equal(t, 3, stats.ContributionCount)
	assert.Equal(t, "566.67", stats.AverageContribution.StringFixed(2))

	require.Len(t, stats.TopContributors, 2, "payments without a member are not ranked")
	assert.Equal(t, "Alice", stats.TopContributors[0].Name)
	assert.Equal(t, "Bob", stats.TopContributors[1].Name)
}

func TestMonthlyTopContributorLimit(t *testing.T) {
	var members []*domain.Member
	var payments []*domain.PaymentView
	for i := int64(1); i <= 7; i++ {
		phone := string(rune('a' + i))
		members = append(members, &domain.Member{Phone: phone, Name: phone, Status: domain.MemberStatusActive})
		payments = append(payments, pay(i, phone, phone, i*100, now, domain.PaymentContribution))
	}

	stats := Monthly(members, payments, 2025, time.June, time.UTC)
	require.Len(t, stats.TopContributors, 5)
	assert.True(t, stats.TopContributors[0].Amount.Equal(kes(700)))
	assert.True(t, stats.TopContributors[4].Amount.Equal(kes(300)))
}

func TestMonthlyEmpty(t *testing.T) {
	stats := Monthly(nil, nil, 2025, time.June, time.UTC)
	assert.True(t, stats.AverageContribution.IsZero())
	assert.Empty(t, stats.TopContributors)
}

func TestOverall(t *testing.T) {
	src := sampleSource()
	stats := Overall(src.members, src.payments)
	assert.Equal(t, 2, stats.TotalMembers)
	assert.True(t, stats.TotalContributions.Equal(kes(2700)))
	assert.True(t, stats.AverageBalance.Equal(kes(1000)))
	assert.Equal(t, 4, stats.TotalPayments)
}

func TestTrends(t *testing.T) {
	src := sampleSource()
	src.payments = append(src.payments, pay(0, "1", "Alice", 50, now.AddDate(0, -7, 0), domain.PaymentContribution))

	trends := Trends(src.payments, now)
	require.Len(t, trends, 2)
	assert.Equal(t, "2025-06", trends[0].Month)
	assert.True(t, trends[0].Amount.Equal(kes(1700)))
	assert.Equal(t, 3, trends[0].Count)
	assert.Equal(t, "2025-04", trends[1].Month)
}

func newTestGenerator(t *testing.T, src Source) *Generator {
	return NewGenerator(src, t.TempDir()).WithClock(func() time.Time { return now })
}

func assertPDF(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestMemberStatement(t *testing.T) {
	g := newTestGenerator(t, sampleSource())

	path, err := g.MemberStatement(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "member_statement_1_20250615.pdf", filepath.Base(path))
	assertPDF(t, path)

	// Members without a subscription or payments still get a statement.
	path, err = g.MemberStatement(context.Background(), "2")
	require.NoError(t, err)
	assertPDF(t, path)

	_, err = g.MemberStatement(context.Background(), "missing")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestMonthlyReport(t *testing.T) {
	g := newTestGenerator(t, sampleSource())

	path, err := g.MonthlyReport(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "monthly_report_2025_06.pdf", filepath.Base(path))
	assertPDF(t, path)

	path, err = g.MonthlyReport(context.Background(), 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "monthly_report_2024_03.pdf", filepath.Base(path))

	_, err = g.MonthlyReport(context.Background(), 2024, 13)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestFinancialOverview(t *testing.T) {
	g := newTestGenerator(t, sampleSource())

	path, err := g.FinancialOverview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "financial_overview_20250615.pdf", filepath.Base(path))
	assertPDF(t, path)

	empty := newTestGenerator(t, &fakeSource{})
	path, err = empty.FinancialOverview(context.Background())
	require.NoError(t, err)
	assertPDF(t, path)
}

func TestExportCSV(t *testing.T) {
	g := newTestGenerator(t, sampleSource())

	path, err := g.ExportCSV(context.Background(), ExportPayments)
	require.NoError(t, err)
	assert.Equal(t, "payments_export_20250615_103000.csv", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "Alice", records[1][2])

	for _, kind := range []string{ExportMembers, ExportSubscriptions} {
		_, err := g.ExportCSV(context.Background(), kind)
		assert.NoError(t, err, kind)
	}

	_, err = g.ExportCSV(context.Background(), "loans")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestOpen(t *testing.T) {
	g := newTestGenerator(t, sampleSource())
	path, err := g.ExportCSV(context.Background(), ExportMembers)
	require.NoError(t, err)

	f, err := g.Open(filepath.Base(path))
	require.NoError(t, err)
	f.Close()

	_, err = g.Open("../secrets.env")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	_, err = g.Open("nope.pdf")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestGenerateDispatch(t *testing.T) {
	g := newTestGenerator(t, sampleSource())
	path, err := g.Generate(context.Background(), &domain.GenerateReportRequest{Type: domain.ReportCSV, Data: ExportMembers})
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "members_export_")

	_, err = g.Generate(context.Background(), &domain.GenerateReportRequest{Type: "poster"})
	assert.Error(t, err)
}
