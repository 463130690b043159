package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/n8n"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/rs/zerolog/log"
)

type WorkflowHandler struct {
	workflowRepo *repositories.WorkflowRepository
	clientRepo   *repositories.ClientRepository
	engines      *n8n.Factory
	trail        *audit.Trail
}

func NewWorkflowHandler(workflowRepo *repositories.WorkflowRepository, clientRepo *repositories.ClientRepository, engines *n8n.Factory, trail *audit.Trail) *WorkflowHandler {
	return &WorkflowHandler{
		workflowRepo: workflowRepo,
		clientRepo:   clientRepo,
		engines:      engines,
		trail:        trail,
	}
}

type CreateWorkflowRequest struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	ExternalID  string `json:"external_id"`
	ExternalURL string `json:"external_url"`
	Description string `json:"description"`
}

func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.ClientID == "" || req.Name == "" || req.ExternalID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "client_id, name and external_id are required", nil)
		return
	}

	client, err := h.clientRepo.GetByID(req.ClientID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if client == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Client not found", nil)
		return
	}

	existing, err := h.workflowRepo.GetByExternalID(req.ExternalID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "A workflow with this external_id is already tracked", nil)
		return
	}

	wf := &models.Workflow{
		ClientID:    req.ClientID,
		Name:        req.Name,
		ExternalID:  req.ExternalID,
		ExternalURL: req.ExternalURL,
		Description: req.Description,
	}
	if err := h.workflowRepo.Create(wf); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "A workflow with this external_id is already tracked", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create workflow", nil)
		return
	}

	writeJSON(w, http.StatusCreated, wf)
}

func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := scopeClientID(w, r, r.URL.Query().Get("client_id"))
	if !ok {
		return
	}

	var (
		workflows []*models.Workflow
		err       error
	)
	if clientID == "" {
		workflows, err = h.workflowRepo.ListByStatuses(models.WorkflowActive, models.WorkflowPaused, models.WorkflowError)
	} else {
		workflows, err = h.workflowRepo.ListByClient(clientID)
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list workflows", nil)
		return
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

// getScoped loads a workflow and rejects client users reaching for
// another client's workflow. Admins see everything.
func (h *WorkflowHandler) getScoped(w http.ResponseWriter, r *http.Request) *models.Workflow {
	wf, err := h.workflowRepo.GetByID(pathParam(r, "workflow_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return nil
	}
	if wf == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workflow not found", nil)
		return nil
	}
	if _, ok := scopeClientID(w, r, wf.ClientID); !ok {
		return nil
	}
	return wf
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	wf := h.getScoped(w, r)
	if wf == nil {
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (h *WorkflowHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *WorkflowHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// setActive flips the workflow on the engine first and only then
// locally. If the engine call fails the local status is left alone, so
// the tracker never claims a state the engine does not have.
func (h *WorkflowHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	wf, err := h.workflowRepo.GetByID(pathParam(r, "workflow_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if wf == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workflow not found", nil)
		return
	}

	next := models.WorkflowPaused
	if active {
		next = models.WorkflowActive
	}
	if err := wf.Status.TransitionTo(next); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeInvalidTransition, err.Error(), nil)
		return
	}

	engine, err := h.engines.ForClient(wf.ClientID)
	if err != nil {
		errors.WriteError(w, http.StatusBadGateway, errors.ErrCodeUpstream, "No engine credential for this client", nil)
		return
	}
	if err := engine.SetActive(r.Context(), wf.ExternalID, active); err != nil {
		log.Warn().Err(err).Str("workflow_id", wf.ID).Bool("active", active).Msg("engine activation call failed")
		if n8n.IsNotFound(err) {
			errors.WriteError(w, http.StatusBadGateway, errors.ErrCodeUpstream, "Workflow does not exist on the engine", nil)
			return
		}
		errors.WriteError(w, http.StatusBadGateway, errors.ErrCodeUpstream, "Engine rejected the activation call", nil)
		return
	}

	if err := h.workflowRepo.SetStatus(wf.ID, next); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update status", nil)
		return
	}

	actor := "api"
	if claims := requestClaims(r); claims != nil {
		actor = claims.UserID
	}
	h.trail.RecordTransition("workflow", wf.ID, string(wf.Status), string(next), actor, "")

	wf.Status = next
	writeJSON(w, http.StatusOK, wf)
}
