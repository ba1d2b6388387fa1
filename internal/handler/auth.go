package handler

import (
	"net/http"

	"github.com/chamahub/backend/internal/contextkeys"
	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/service"
	"github.com/go-playground/validator/v10"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth, validate: validator.New()}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, r, domain.ErrValidation("email and password are required"))
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sub, _ := r.Context().Value(contextkeys.Subject).(string)
	role, _ := r.Context().Value(contextkeys.Role).(string)
	JSON(w, http.StatusOK, domain.JWTClaims{Sub: sub, Role: role})
}
