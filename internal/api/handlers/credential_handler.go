package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/secrets"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
)

type CredentialHandler struct {
	credentialRepo *repositories.CredentialRepository
	clientRepo     *repositories.ClientRepository
	keychain       *secrets.Keychain
}

func NewCredentialHandler(credentialRepo *repositories.CredentialRepository, clientRepo *repositories.ClientRepository, keychain *secrets.Keychain) *CredentialHandler {
	return &CredentialHandler{
		credentialRepo: credentialRepo,
		clientRepo:     clientRepo,
		keychain:       keychain,
	}
}

type CreateCredentialRequest struct {
	ServiceName    string `json:"service_name"`
	CredentialType string `json:"credential_type"`
	Token          string `json:"token"`
}

// Create seals the token before it touches the database. The response
// never echoes it back.
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientID := pathParam(r, "client_id")

	var req CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.ServiceName == "" || req.Token == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "service_name and token are required", nil)
		return
	}
	if req.CredentialType == "" {
		req.CredentialType = "api_key"
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

	sealed, err := h.keychain.Seal(req.Token)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to seal credential", nil)
		return
	}

	cred := &models.Credential{
		ClientID:       clientID,
		ServiceName:    req.ServiceName,
		CredentialType: req.CredentialType,
		EncryptedData:  sealed,
	}
	if err := h.credentialRepo.Create(cred); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "An active credential for this service already exists", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to store credential", nil)
		return
	}

	writeJSON(w, http.StatusCreated, cred)
}

func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentialRepo.ListByClient(pathParam(r, "client_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list credentials", nil)
		return
	}
	if creds == nil {
		creds = []*models.Credential{}
	}
	writeJSON(w, http.StatusOK, creds)
}

// Verify opens the sealed token with the current key and stamps the
// credential when it succeeds. A key rotation that left this
// credential behind shows up here as invalid.
func (h *CredentialHandler) Verify(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentialRepo.GetByID(pathParam(r, "credential_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if cred == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Credential not found", nil)
		return
	}

	if _, err := h.keychain.Open(cred.EncryptedData); err != nil {
		h.credentialRepo.SetStatus(cred.ID, models.CredentialInvalid)
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Credential cannot be opened with the current key", nil)
		return
	}

	if err := h.credentialRepo.UpdateLastVerified(cred.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update credential", nil)
		return
	}

	cred, err = h.credentialRepo.GetByID(cred.ID)
	if err != nil || cred == nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentialRepo.GetByID(pathParam(r, "credential_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if cred == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Credential not found", nil)
		return
	}

	if err := h.credentialRepo.Delete(cred.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete credential", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
