package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce/internal/jobs"
	"github.com/hanko-field/commerce/internal/platform/httpx"
)

// JobRunner triggers a registered job on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// InternalHandlers exposes maintenance endpoints for Cloud Scheduler, guarded by OIDC.
type InternalHandlers struct {
	runner JobRunner
}

// NewInternalHandlers constructs the internal handlers.
func NewInternalHandlers(runner JobRunner) *InternalHandlers {
	return &InternalHandlers{runner: runner}
}

// Routes registers /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/carts/purge", h.runJob(jobs.CartPurgeJobName))
}

func (h *InternalHandlers) runJob(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.runner == nil {
			serviceUnavailable(ctx, w, "jobs")
			return
		}
		if err := h.runner.RunNow(ctx, name); err != nil {
			if errors.Is(err, jobs.ErrUnknownJob) {
				httpx.WriteError(ctx, w, httpx.NewError("job_not_registered", err.Error(), http.StatusNotFound))
				return
			}
			httpx.WriteError(ctx, w, httpx.NewError("job_failed", err.Error(), http.StatusInternalServerError))
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
	}
}
