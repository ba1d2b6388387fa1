package handler

import (
	"net/http"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/service"
	"github.com/go-playground/validator/v10"
)

// SubscriptionHandler handles subscription endpoints.
type SubscriptionHandler struct {
	ledger   *service.LedgerService
	validate *validator.Validate
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(ledger *service.LedgerService) *SubscriptionHandler {
	return &SubscriptionHandler{ledger: ledger, validate: validator.New()}
}

// List handles GET /api/subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.ledger.ListSubscriptions(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	if subs == nil {
		subs = []*domain.SubscriptionView{}
	}
	JSON(w, http.StatusOK, subs)
}

// Create handles POST /api/subscriptions. It replaces any existing
// subscription for the phone.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriptionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, r, domain.ErrValidation("phone and plan (basic or premium) are required"))
		return
	}

	sub, err := h.ledger.CreateSubscription(r.Context(), req.Phone, req.Plan)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, sub)
}

// Get handles GET /api/subscriptions/{phone}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.ledger.GetSubscription(r.Context(), phoneParam(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}
