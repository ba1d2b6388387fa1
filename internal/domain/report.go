package domain

// Report types accepted by the report API.
const (
	ReportMemberStatement   = "member_statement"
	ReportMonthly           = "monthly"
	ReportFinancialOverview = "financial_overview"
	ReportCSV               = "csv"
)

// GenerateReportRequest is the validated input for generating a report.
type GenerateReportRequest struct {
	Type  string `json:"type" validate:"required,oneof=member_statement monthly financial_overview csv"`
	Phone string `json:"phone" validate:"required_if=Type member_statement"`
	Year  int    `json:"year" validate:"omitempty,min=2000,max=2100"`
	Month int    `json:"month" validate:"omitempty,min=1,max=12"`
	Data  string `json:"data" validate:"required_if=Type csv,omitempty,oneof=members payments subscriptions"`
}

// ReportResponse identifies a generated artifact.
type ReportResponse struct {
	Filename string `json:"filename"`
}

// BroadcastRequest is an admin message to one member or every active member.
type BroadcastRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message" validate:"required,min=1,max=1600"`
}

// BroadcastResponse reports how many sends succeeded.
type BroadcastResponse struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
