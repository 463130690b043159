package handlers

import (
	"net/http"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/workers"
)

type JobsHandler struct {
	scheduler *workers.Scheduler
}

func NewJobsHandler(scheduler *workers.Scheduler) *JobsHandler {
	return &JobsHandler{scheduler: scheduler}
}

type RunJobResponse struct {
	Job        string `json:"job"`
	DurationMS int64  `json:"duration_ms"`
}

// Run triggers one job synchronously. The scheduler's guard still
// applies, so a manual run cannot overlap a ticking one.
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "job_name")

	started := time.Now()
	err := h.scheduler.RunNow(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, RunJobResponse{
			Job:        name,
			DurationMS: time.Since(started).Milliseconds(),
		})
	case errors.Is(err, workers.ErrUnknownJob):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown job", map[string]interface{}{
			"known": h.scheduler.Names(),
		})
	case errors.Is(err, workers.ErrAlreadyRunning):
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Job is already running", nil)
	default:
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
	}
}
