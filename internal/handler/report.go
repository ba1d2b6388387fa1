package handler

import (
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ReportHandler generates and serves report artifacts.
type ReportHandler struct {
	reports  *report.Generator
	validate *validator.Validate
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *report.Generator) *ReportHandler {
	return &ReportHandler{reports: reports, validate: validator.New()}
}

// Generate handles POST /api/reports.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateReportRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, r, domain.ErrValidation("invalid report request: "+err.Error()))
		return
	}

	path, err := h.reports.Generate(r.Context(), &req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, domain.ReportResponse{Filename: filepath.Base(path)})
}

// Download handles GET /api/reports/{filename}.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := h.reports.Open(name)
	if err != nil {
		Error(w, r, err)
		return
	}
	defer f.Close()

	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("[HTTP] Failed to stream report %s: %v", name, err)
	}
}
