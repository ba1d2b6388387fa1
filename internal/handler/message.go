package handler

import (
	"net/http"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/service"
	"github.com/go-playground/validator/v10"
)

// MessageHandler sends admin messages to members.
type MessageHandler struct {
	sweeps   *service.SweepService
	validate *validator.Validate
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(sweeps *service.SweepService) *MessageHandler {
	return &MessageHandler{sweeps: sweeps, validate: validator.New()}
}

// Broadcast handles POST /api/messages/broadcast.
func (h *MessageHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, r, domain.ErrValidation("message must be between 1 and 1600 characters"))
		return
	}

	resp, err := h.sweeps.Broadcast(r.Context(), req.Phone, req.Message)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}
