package handler

import (
	"net/http"
	"net/url"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// MemberHandler handles the member registry endpoints.
type MemberHandler struct {
	ledger *service.LedgerService
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(ledger *service.LedgerService) *MemberHandler {
	return &MemberHandler{ledger: ledger}
}

// phoneParam returns the unescaped {phone} path segment.
func phoneParam(r *http.Request) string {
	raw := chi.URLParam(r, "phone")
	if phone, err := url.PathUnescape(raw); err == nil {
		return phone
	}
	return raw
}

// List handles GET /api/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.ledger.ListMembers(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	if members == nil {
		members = []*domain.Member{}
	}
	JSON(w, http.StatusOK, members)
}

// Create handles POST /api/members.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMemberRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	m, err := h.ledger.CreateMemberFromRequest(r.Context(), &req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, m)
}

// Get handles GET /api/members/{phone}.
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.ledger.GetMember(r.Context(), phoneParam(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, m)
}

// Update handles PATCH /api/members/{phone}. Only name, status and balance
// are accepted; unknown fields are rejected by the decoder.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateMemberRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	m, err := h.ledger.UpdateMember(r.Context(), phoneParam(r), &req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, m)
}

// Delete handles DELETE /api/members/{phone}.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteMember(r.Context(), phoneParam(r)); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify handles GET /api/members/{phone}/verify.
func (h *MemberHandler) Verify(w http.ResponseWriter, r *http.Request) {
	check, err := h.ledger.VerifyBalance(r.Context(), phoneParam(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"check":      check,
		"consistent": check.Consistent(),
	})
}
