package report

import (
	"sort"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	topContributorLimit = 5
	trendMonths         = 6
)

// Contributor is one row of the top contributors table.
type Contributor struct {
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyStats summarizes one calendar month.
type MonthlyStats struct {
	Year                 int             `json:"year"`
	Month                time.Month      `json:"month"`
	TotalMembers         int             `json:"totalMembers"`
	ActiveMembers        int             `json:"activeMembers"`
	MonthlyContributions decimal.Decimal `json:"monthlyContributions"`
	ContributionCount    int             `json:"contributionCount"`
	TotalBalance         decimal.Decimal `json:"totalBalance"`
	AverageContribution  decimal.Decimal `json:"averageContribution"`
	TopContributors      []Contributor   `json:"topContributors"`
}

// OverallStats summarizes the whole ledger.
type OverallStats struct {
	TotalMembers       int             `json:"totalMembers"`
	TotalContributions decimal.Decimal `json:"totalContributions"`
	TotalBalance       decimal.Decimal `json:"totalBalance"`
	AverageBalance     decimal.Decimal `json:"averageBalance"`
	TotalPayments      int             `json:"totalPayments"`
}

// MonthTrend is the contribution total of one month, keyed "YYYY-MM".
type MonthTrend struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

func inMonth(t time.Time, year int, month time.Month, loc *time.Location) bool {
	y, m, _ := t.In(loc).Date()
	return y == year && m == month
}

// Monthly computes the monthly report figures. Top contributors only include
// payments whose member still exists.
func Monthly(members []*domain.Member, payments []*domain.PaymentView, year int, month time.Month, loc *time.Location) *MonthlyStats {
	stats := &MonthlyStats{
		Year:                 year,
		Month:                month,
		TotalMembers:         len(members),
		MonthlyContributions: decimal.Zero,
		TotalBalance:         decimal.Zero,
		AverageContribution:  decimal.Zero,
	}

	known := make(map[string]string, len(members))
	for _, m := range members {
		known[m.Phone] = m.Name
		if m.IsActive() {
			stats.ActiveMembers++
		}
		stats.TotalBalance = stats.TotalBalance.Add(m.Balance)
	}

	byPhone := make(map[string]decimal.Decimal)
	for _, p := range payments {
		if p.Type != domain.PaymentContribution || !inMonth(p.Date, year, month, loc) {
			continue
		}
		stats.MonthlyContributions = stats.MonthlyContributions.Add(p.Amount)
		stats.ContributionCount++
		if _, ok := known[p.Phone]; ok {
			byPhone[p.Phone] = byPhone[p.Phone].Add(p.Amount)
		}
	}
	if stats.ContributionCount > 0 {
		stats.AverageContribution = stats.MonthlyContributions.Div(decimal.NewFromInt(int64(stats.ContributionCount)))
	}

	for phone, amount := range byPhone {
		stats.TopContributors = append(stats.TopContributors, Contributor{Name: known[phone], Phone: phone, Amount: amount})
	}
	sort.Slice(stats.TopContributors, func(i, j int) bool {
		a, b := stats.TopContributors[i], stats.TopContributors[j]
		if cmp := a.Amount.Cmp(b.Amount); cmp != 0 {
			return cmp > 0
		}
		return a.Phone < b.Phone
	})
	if len(stats.TopContributors) > topContributorLimit {
		stats.TopContributors = stats.TopContributors[:topContributorLimit]
	}
	return stats
}

// Overall computes the financial overview figures.
func Overall(members []*domain.Member, payments []*domain.PaymentView) *OverallStats {
	stats := &OverallStats{
		TotalMembers:       len(members),
		TotalContributions: decimal.Zero,
		TotalBalance:       decimal.Zero,
		AverageBalance:     decimal.Zero,
	}
	for _, m := range members {
		stats.TotalBalance = stats.TotalBalance.Add(m.Balance)
	}
	if len(members) > 0 {
		stats.AverageBalance = stats.TotalBalance.Div(decimal.NewFromInt(int64(len(members))))
	}
	for _, p := range payments {
		if p.Type == domain.PaymentContribution {
			stats.TotalContributions = stats.TotalContributions.Add(p.Amount)
			stats.TotalPayments++
		}
	}
	return stats
}

// Trends groups contributions of the last six months by month, newest first.
func Trends(payments []*domain.PaymentView, now time.Time) []MonthTrend {
	cutoff := now.AddDate(0, -trendMonths, 0)
	groups := make(map[string]*MonthTrend)
	for _, p := range payments {
		if p.Type != domain.PaymentContribution || p.Date.Before(cutoff) {
			continue
		}
		key := p.Date.In(now.Location()).Format("2006-01")
		g, ok := groups[key]
		if !ok {
			g = &MonthTrend{Month: key, Amount: decimal.Zero}
			groups[key] = g
		}
		g.Amount = g.Amount.Add(p.Amount)
		g.Count++
	}

	trends := make([]MonthTrend, 0, len(groups))
	for _, g := range groups {
		trends = append(trends, *g)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Month > trends[j].Month })
	return trends
}
