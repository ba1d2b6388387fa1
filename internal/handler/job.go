package handler

import (
	"context"
	"net/http"

	"github.com/chamahub/backend/internal/domain"
	"github.com/go-chi/chi/v5"
)

// JobRunner lists and triggers scheduled sweeps.
type JobRunner interface {
	Jobs() []domain.JobStatus
	Run(ctx context.Context, name string) (int, error)
}

// JobHandler exposes the scheduler to admins.
type JobHandler struct {
	jobs JobRunner
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs JobRunner) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// List handles GET /api/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.jobs.Jobs())
}

// Run handles POST /api/jobs/{name}/run. The sweep runs to completion even
// if the client goes away.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	count, err := h.jobs.Run(context.WithoutCancel(r.Context()), name)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, domain.JobRunResponse{Name: name, Count: count})
}
