package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apiContext "github.com/AMvdBM19/monoliet-portal/internal/api/context"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/validator"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/shopspring/decimal"
)

type ClientHandler struct {
	clientRepo *repositories.ClientRepository
	trail      *audit.Trail
}

func NewClientHandler(clientRepo *repositories.ClientRepository, trail *audit.Trail) *ClientHandler {
	return &ClientHandler{
		clientRepo: clientRepo,
		trail:      trail,
	}
}

type CreateClientRequest struct {
	CompanyName     string          `json:"company_name"`
	ContactName     string          `json:"contact_name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	PlanTier        string          `json:"plan_tier"`
	SetupFee        decimal.Decimal `json:"setup_fee"`
	MonthlyFee      decimal.Decimal `json:"monthly_fee"`
	BillingCycle    string          `json:"billing_cycle"`
	NextBillingDate string          `json:"next_billing_date"`
	Notes           string          `json:"notes"`
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.CompanyName == "" || req.Email == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "company_name and email are required", nil)
		return
	}
	if err := validator.IsValidEmail(req.Email); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if req.BillingCycle == "" {
		req.BillingCycle = "monthly"
	}
	if req.BillingCycle != "monthly" && req.BillingCycle != "yearly" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "billing_cycle must be monthly or yearly", nil)
		return
	}

	client := &models.Client{
		CompanyName:  req.CompanyName,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		PlanTier:     req.PlanTier,
		SetupFee:     req.SetupFee,
		MonthlyFee:   req.MonthlyFee,
		BillingCycle: req.BillingCycle,
		Notes:        req.Notes,
	}
	if req.NextBillingDate != "" {
		d, err := time.Parse(time.DateOnly, req.NextBillingDate)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "next_billing_date must be YYYY-MM-DD", nil)
			return
		}
		client.NextBillingDate = &d
	}

	if err := h.clientRepo.Create(client); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "A client with this email already exists", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create client", nil)
		return
	}

	writeJSON(w, http.StatusCreated, client)
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientRepo.List()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list clients", nil)
		return
	}
	if clients == nil {
		clients = []*models.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	// httprouter cannot register /clients/me next to /clients/:client_id,
	// so the alias is resolved here.
	requested := pathParam(r, "client_id")
	if requested == "me" {
		h.Me(w, r)
		return
	}

	clientID, ok := scopeClientID(w, r, requested)
	if !ok {
		return
	}

	client, err := h.clientRepo.GetByID(clientID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if client == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Client not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// Me returns the client record the token is bound to. The scope
// middleware already loaded and vetted it.
func (h *ClientHandler) Me(w http.ResponseWriter, r *http.Request) {
	client, ok := r.Context().Value(apiContext.Client).(*models.Client)
	if !ok {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Token is not bound to a client", nil)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

type UpdateClientRequest struct {
	CompanyName     *string          `json:"company_name"`
	ContactName     *string          `json:"contact_name"`
	Email           *string          `json:"email"`
	Phone           *string          `json:"phone"`
	PlanTier        *string          `json:"plan_tier"`
	SetupFee        *decimal.Decimal `json:"setup_fee"`
	MonthlyFee      *decimal.Decimal `json:"monthly_fee"`
	BillingCycle    *string          `json:"billing_cycle"`
	NextBillingDate *string          `json:"next_billing_date"`
	Notes           *string          `json:"notes"`
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	clientID := pathParam(r, "client_id")

	client, err := h.clientRepo.GetByID(clientID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if client == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Client not found", nil)
		return
	}

	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.CompanyName != nil {
		client.CompanyName = *req.CompanyName
	}
	if req.ContactName != nil {
		client.ContactName = *req.ContactName
	}
	if req.Email != nil {
		if err := validator.IsValidEmail(*req.Email); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		client.Email = *req.Email
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.PlanTier != nil {
		client.PlanTier = *req.PlanTier
	}
	if req.SetupFee != nil {
		client.SetupFee = *req.SetupFee
	}
	if req.MonthlyFee != nil {
		client.MonthlyFee = *req.MonthlyFee
	}
	if req.BillingCycle != nil {
		if *req.BillingCycle != "monthly" && *req.BillingCycle != "yearly" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "billing_cycle must be monthly or yearly", nil)
			return
		}
		client.BillingCycle = *req.BillingCycle
	}
	if req.NextBillingDate != nil {
		if *req.NextBillingDate == "" {
			client.NextBillingDate = nil
		} else {
			d, err := time.Parse(time.DateOnly, *req.NextBillingDate)
			if err != nil {
				errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "next_billing_date must be YYYY-MM-DD", nil)
				return
			}
			client.NextBillingDate = &d
		}
	}
	if req.Notes != nil {
		client.Notes = *req.Notes
	}

	if err := h.clientRepo.Update(client); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "A client with this email already exists", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update client", nil)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

type SetClientStatusRequest struct {
	Status models.ClientStatus `json:"status"`
}

func (h *ClientHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	clientID := pathParam(r, "client_id")

	var req SetClientStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	client, err := h.clientRepo.GetByID(clientID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if client == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Client not found", nil)
		return
	}

	if err := client.Status.TransitionTo(req.Status); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeInvalidTransition, err.Error(), nil)
		return
	}

	if err := h.clientRepo.SetStatus(clientID, req.Status); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update status", nil)
		return
	}

	actor := "api"
	if claims := requestClaims(r); claims != nil {
		actor = claims.UserID
	}
	h.trail.RecordTransition("client", clientID, string(client.Status), string(req.Status), actor, "")

	client.Status = req.Status
	writeJSON(w, http.StatusOK, client)
}
