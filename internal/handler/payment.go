package handler

import (
	"net/http"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/service"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment history and summary endpoints.
type PaymentHandler struct {
	ledger *service.LedgerService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ledger *service.LedgerService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger}
}

// List handles GET /api/payments?phone=.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.ledger.ListPayments(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		Error(w, r, err)
		return
	}
	if payments == nil {
		payments = []*domain.PaymentView{}
	}
	JSON(w, http.StatusOK, payments)
}

// Create handles POST /api/payments.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	p, balance, err := h.ledger.AddPaymentFromRequest(r.Context(), &req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, struct {
		Payment *domain.Payment `json:"payment"`
		Balance decimal.Decimal `json:"balance"`
	}{p, balance})
}

// Summary handles GET /api/payments/summary.
func (h *PaymentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.PaymentSummary(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}

// Dashboard handles GET /api/dashboard.
func (h *PaymentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.DashboardStats(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	if stats.RecentPayments == nil {
		stats.RecentPayments = []*domain.PaymentView{}
	}
	JSON(w, http.StatusOK, stats)
}
