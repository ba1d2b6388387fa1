package report

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// title upper-cases the first letter of each word. Casers are stateful, so
// each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// document wraps fpdf with the table styles every report shares.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(name string, generatedAt time.Time) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(name, true)
	pdf.SetCreator("chamahub", true)
	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, "Generated on "+generatedAt.Format(dateTimeLayout), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, d.tr(name), "", 1, "C", false, 0, "")
	pdf.Ln(8)
	return d
}

func (d *document) heading(text string) {
	d.pdf.Ln(6)
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 10, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(2)
}

func (d *document) paragraph(text string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 8, d.tr(text), "", 1, "L", false, 0, "")
}

// keyValues draws a two column table with shaded labels.
func (d *document) keyValues(rows [][2]string, widths [2]float64) {
	d.pdf.SetFont("Helvetica", "", 11)
	d.pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		d.pdf.SetFillColor(211, 211, 211)
		d.pdf.CellFormat(widths[0], 9, d.tr(row[0]), "1", 0, "L", true, 0, "")
		d.pdf.SetFillColor(245, 245, 220)
		d.pdf.CellFormat(widths[1], 9, d.tr(row[1]), "1", 1, "L", true, 0, "")
	}
}

// grid draws a table with a dark header row.
func (d *document) grid(header []string, rows [][]string, widths []float64) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.SetFillColor(128, 128, 128)
	d.pdf.SetTextColor(245, 245, 245)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], 9, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.SetFillColor(245, 245, 220)
	d.pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		for i, cell := range row {
			d.pdf.CellFormat(widths[i], 8, d.tr(cell), "1", 0, "C", true, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) image(name string, png []byte, width float64) {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	d.pdf.ImageOptions(name, d.pdf.GetX(), d.pdf.GetY(), width, 0, true, opts, 0, "")
}

func (d *document) save(path string) error {
	if err := d.pdf.OutputFileAndClose(path); err != nil {
		return domain.ErrInternal("failed to write report", err)
	}
	return nil
}

// MemberStatement writes member_statement_<phone>_<YYYYMMDD>.pdf.
func (g *Generator) MemberStatement(ctx context.Context, phone string) (string, error) {
	m, err := g.src.GetMember(ctx, phone)
	if err != nil {
		return "", err
	}
	payments, err := g.src.ListPayments(ctx, phone)
	if err != nil {
		return "", err
	}
	plan := "None"
	sub, err := g.src.GetSubscription(ctx, phone)
	switch {
	case err == nil:
		plan = title(sub.Plan)
	case !domain.IsKind(err, domain.KindNotFound):
		return "", err
	}

	now := g.now()
	path, err := g.path(fmt.Sprintf("member_statement_%s_%s.pdf", phone, now.Format("20060102")))
	if err != nil {
		return "", err
	}

	lastPayment := "No payments yet"
	if m.LastPayment != nil {
		lastPayment = m.LastPayment.Format(dateTimeLayout)
	}

	doc := newDocument("CHAMA MEMBER STATEMENT", now)
	doc.keyValues([][2]string{
		{"Member Name:", m.Name},
		{"Phone Number:", m.Phone},
		{"Join Date:", m.JoinDate.Format(dateLayout)},
		{"Current Balance:", "KES " + domain.Cents(m.Balance)},
		{"Last Payment:", lastPayment},
		{"Subscription Plan:", plan},
	}, [2]float64{50, 80})

	doc.heading("PAYMENT HISTORY")
	if len(payments) == 0 {
		doc.paragraph("No payment history available.")
	} else {
		rows := make([][]string, 0, len(payments))
		for _, p := range payments {
			desc := p.Description
			if desc == "" {
				desc = "-"
			}
			rows = append(rows, []string{p.Date.Format(dateTimeLayout), domain.Cents(p.Amount), title(p.Type), desc})
		}
		doc.grid([]string{"Date", "Amount (KES)", "Type", "Description"}, rows, []float64{45, 35, 35, 65})
	}

	if err := doc.save(path); err != nil {
		return "", err
	}
	log.Printf("[Report] Member statement for %s written to %s", phone, path)
	return path, nil
}

// MonthlyReport writes monthly_report_<YYYY>_<MM>.pdf. Zero year or month
// default to the current one.
func (g *Generator) MonthlyReport(ctx context.Context, year, month int) (string, error) {
	now := g.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return "", domain.ErrValidation("month must be between 1 and 12")
	}

	members, err := g.src.ListMembers(ctx)
	if err != nil {
		return "", err
	}
	payments, err := g.src.ListPayments(ctx, "")
	if err != nil {
		return "", err
	}
	stats := Monthly(members, payments, year, time.Month(month), now.Location())

	path, err := g.path(fmt.Sprintf("monthly_report_%d_%02d.pdf", year, month))
	if err != nil {
		return "", err
	}

	period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location()).Format("January 2006")
	doc := newDocument("MONTHLY CHAMA REPORT - "+period, now)
	doc.keyValues([][2]string{
		{"Total Members:", strconv.Itoa(stats.TotalMembers)},
		{"Active Members:", strconv.Itoa(stats.ActiveMembers)},
		{"Monthly Contributions:", "KES " + domain.Cents(stats.MonthlyContributions)},
		{"Total Balance:", "KES " + domain.Cents(stats.TotalBalance)},
		{"Average Contribution:", "KES " + domain.Cents(stats.AverageContribution)},
	}, [2]float64{65, 65})

	doc.heading("TOP CONTRIBUTORS")
	if len(stats.TopContributors) == 0 {
		doc.paragraph("No contributions this month.")
	} else {
		rows := make([][]string, 0, len(stats.TopContributors))
		for i, c := range stats.TopContributors {
			rows = append(rows, []string{strconv.Itoa(i + 1), c.Name, c.Phone, domain.Cents(c.Amount)})
		}
		doc.grid([]string{"Rank", "Name", "Phone", "Amount (KES)"}, rows, []float64{20, 55, 45, 40})
	}

	if err := doc.save(path); err != nil {
		return "", err
	}
	log.Printf("[Report] Monthly report %d-%02d written to %s", year, month, path)
	return path, nil
}

// FinancialOverview writes financial_overview_<YYYYMMDD>.pdf with the
// overall figures and the six month contribution trend.
func (g *Generator) FinancialOverview(ctx context.Context) (string, error) {
	members, err := g.src.ListMembers(ctx)
	if err != nil {
		return "", err
	}
	payments, err := g.src.ListPayments(ctx, "")
	if err != nil {
		return "", err
	}

	now := g.now()
	stats := Overall(members, payments)
	trends := Trends(payments, now)

	path, err := g.path(fmt.Sprintf("financial_overview_%s.pdf", now.Format("20060102")))
	if err != nil {
		return "", err
	}

	doc := newDocument("CHAMA FINANCIAL OVERVIEW", now)
	doc.keyValues([][2]string{
		{"Total Members:", strconv.Itoa(stats.TotalMembers)},
		{"Total Contributions:", "KES " + domain.Cents(stats.TotalContributions)},
		{"Total Balance:", "KES " + domain.Cents(stats.TotalBalance)},
		{"Average Member Balance:", "KES " + domain.Cents(stats.AverageBalance)},
		{"Total Payments:", strconv.Itoa(stats.TotalPayments)},
	}, [2]float64{65, 65})

	doc.heading("MONTHLY CONTRIBUTION TRENDS")
	if len(trends) == 0 {
		doc.paragraph("No contributions in the last six months.")
	} else {
		rows := make([][]string, 0, len(trends))
		for _, t := range trends {
			rows = append(rows, []string{t.Month, domain.Cents(t.Amount), strconv.Itoa(t.Count)})
		}
		doc.grid([]string{"Month", "Contributions (KES)", "Number of Payments"}, rows, []float64{55, 60, 60})

		png, err := trendChart(trends)
		if err != nil {
			log.Printf("[Report] Skipping trend chart: %v", err)
		} else {
			doc.pdf.Ln(8)
			doc.image("trend", png, 170)
		}
	}

	if err := doc.save(path); err != nil {
		return "", err
	}
	log.Printf("[Report] Financial overview written to %s", path)
	return path, nil
}
