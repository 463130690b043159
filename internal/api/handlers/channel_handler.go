package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
)

type ChannelHandler struct {
	channelRepo *repositories.ChannelRepository
}

func NewChannelHandler(channelRepo *repositories.ChannelRepository) *ChannelHandler {
	return &ChannelHandler{channelRepo: channelRepo}
}

type CreateChannelRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// CreateChannelResponse carries the signing secret exactly once, at
// creation. List and Get never expose it again.
type CreateChannelResponse struct {
	*models.NotificationChannel
	Secret string `json:"secret"`
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Name == "" || req.URL == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name and url are required", nil)
		return
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "url must be a valid http(s) URL", nil)
		return
	}

	secret := req.Secret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate secret", nil)
			return
		}
		secret = hex.EncodeToString(buf)
	}

	ch := &models.NotificationChannel{
		Name:   req.Name,
		URL:    req.URL,
		Events: req.Events,
		Secret: secret,
	}
	if err := h.channelRepo.Create(ch); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create channel", nil)
		return
	}

	writeJSON(w, http.StatusCreated, CreateChannelResponse{NotificationChannel: ch, Secret: secret})
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelRepo.List()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list channels", nil)
		return
	}
	if channels == nil {
		channels = []*models.NotificationChannel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

type SetChannelStatusRequest struct {
	Status string `json:"status"`
}

func (h *ChannelHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetChannelStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Status != "active" && req.Status != "disabled" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "status must be active or disabled", nil)
		return
	}

	ch, err := h.channelRepo.GetByID(pathParam(r, "channel_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ch == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Channel not found", nil)
		return
	}

	if err := h.channelRepo.SetStatus(ch.ID, req.Status); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update channel", nil)
		return
	}

	ch.Status = req.Status
	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channelRepo.GetByID(pathParam(r, "channel_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ch == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Channel not found", nil)
		return
	}

	if err := h.channelRepo.Delete(ch.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete channel", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
