package handlers

import (
	"net/http"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
)

// defaultRangeDays is the execution history window when the caller
// does not pass from/to.
const defaultRangeDays = 30

type ExecutionHandler struct {
	executionRepo *repositories.ExecutionRepository
	workflowRepo  *repositories.WorkflowRepository
}

func NewExecutionHandler(executionRepo *repositories.ExecutionRepository, workflowRepo *repositories.WorkflowRepository) *ExecutionHandler {
	return &ExecutionHandler{
		executionRepo: executionRepo,
		workflowRepo:  workflowRepo,
	}
}

// resolveRange validates workflow_id, pins it to the caller's scope and
// parses the from/to query dates. Reported errors are already written.
func (h *ExecutionHandler) resolveRange(w http.ResponseWriter, r *http.Request) (workflowID string, from, to time.Time, ok bool) {
	workflowID = r.URL.Query().Get("workflow_id")
	if workflowID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "workflow_id is required", nil)
		return "", time.Time{}, time.Time{}, false
	}

	wf, err := h.workflowRepo.GetByID(workflowID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return "", time.Time{}, time.Time{}, false
	}
	if wf == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workflow not found", nil)
		return "", time.Time{}, time.Time{}, false
	}
	if _, scoped := scopeClientID(w, r, wf.ClientID); !scoped {
		return "", time.Time{}, time.Time{}, false
	}

	to = time.Now().UTC().Truncate(24 * time.Hour)
	from = to.AddDate(0, 0, -(defaultRangeDays - 1))
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse(time.DateOnly, v)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "from must be YYYY-MM-DD", nil)
			return "", time.Time{}, time.Time{}, false
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse(time.DateOnly, v)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "to must be YYYY-MM-DD", nil)
			return "", time.Time{}, time.Time{}, false
		}
	}
	if to.Before(from) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "to must not be before from", nil)
		return "", time.Time{}, time.Time{}, false
	}

	return workflowID, from, to, true
}

func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	workflowID, from, to, ok := h.resolveRange(w, r)
	if !ok {
		return
	}

	executions, err := h.executionRepo.ListRange(workflowID, from, to)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list executions", nil)
		return
	}
	if executions == nil {
		executions = []*models.Execution{}
	}
	writeJSON(w, http.StatusOK, executions)
}

type ExecutionStatsResponse struct {
	WorkflowID  string  `json:"workflow_id"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Errored     int     `json:"errored"`
	SuccessRate float64 `json:"success_rate"`
}

func (h *ExecutionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	workflowID, from, to, ok := h.resolveRange(w, r)
	if !ok {
		return
	}

	total, success, errored, err := h.executionRepo.SumRange(workflowID, from, to)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to aggregate executions", nil)
		return
	}

	// No runs means no evidence either way; report a full rate rather
	// than a zero that reads as total failure.
	rate := 1.0
	if total > 0 {
		rate = float64(success) / float64(total)
	}

	writeJSON(w, http.StatusOK, ExecutionStatsResponse{
		WorkflowID:  workflowID,
		From:        from.Format(time.DateOnly),
		To:          to.Format(time.DateOnly),
		Total:       total,
		Success:     success,
		Errored:     errored,
		SuccessRate: rate,
	})
}
