package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/rs/zerolog/log"
)

type TicketHandler struct {
	ticketRepo *repositories.TicketRepository
	trail      *audit.Trail
	sink       notify.Sink
}

func NewTicketHandler(ticketRepo *repositories.TicketRepository, trail *audit.Trail, sink notify.Sink) *TicketHandler {
	return &TicketHandler{
		ticketRepo: ticketRepo,
		trail:      trail,
		sink:       sink,
	}
}

type CreateTicketRequest struct {
	ClientID    string `json:"client_id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	clientID, ok := scopeClientID(w, r, req.ClientID)
	if !ok {
		return
	}
	if clientID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "client_id is required", nil)
		return
	}
	if req.Subject == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "subject is required", nil)
		return
	}

	priority := models.TicketPriority(req.Priority)
	if req.Priority != "" && !priority.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "priority must be low, medium or high", nil)
		return
	}

	ticket := &models.SupportTicket{
		ClientID:    clientID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    priority,
	}
	if err := h.ticketRepo.Create(ticket); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create ticket", nil)
		return
	}

	h.trail.RecordTransition("ticket", ticket.ID, "", string(ticket.Status), h.actor(r), "")
	h.publish(r, notify.TicketOpened(ticket.ID, ticket.ClientID, ticket.Subject, string(ticket.Priority)))

	writeJSON(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := scopeClientID(w, r, r.URL.Query().Get("client_id"))
	if !ok {
		return
	}

	var (
		tickets []*models.SupportTicket
		err     error
	)
	switch {
	case clientID != "":
		tickets, err = h.ticketRepo.ListByClient(clientID)
	case r.URL.Query().Get("status") != "":
		status := models.TicketStatus(r.URL.Query().Get("status"))
		if !status.Valid() {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown ticket status", nil)
			return
		}
		tickets, err = h.ticketRepo.ListByStatus(status)
	default:
		tickets, err = h.ticketRepo.List()
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list tickets", nil)
		return
	}
	if tickets == nil {
		tickets = []*models.SupportTicket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.ticketRepo.GetByID(pathParam(r, "ticket_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ticket == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Ticket not found", nil)
		return
	}
	if _, ok := scopeClientID(w, r, ticket.ClientID); !ok {
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type SetTicketStatusRequest struct {
	Status models.TicketStatus `json:"status"`
}

func (h *TicketHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.ticketRepo.GetByID(pathParam(r, "ticket_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ticket == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Ticket not found", nil)
		return
	}
	if _, ok := scopeClientID(w, r, ticket.ClientID); !ok {
		return
	}

	var req SetTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := ticket.Status.TransitionTo(req.Status); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeInvalidTransition, err.Error(), nil)
		return
	}

	// resolved_at tracks the latest resolution and clears on reopen.
	var resolvedAt *int64
	if req.Status == models.TicketResolved {
		now := time.Now().Unix()
		resolvedAt = &now
	}
	if err := h.ticketRepo.SetStatus(ticket.ID, req.Status, resolvedAt); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update status", nil)
		return
	}

	h.trail.RecordTransition("ticket", ticket.ID, string(ticket.Status), string(req.Status), h.actor(r), "")
	if req.Status == models.TicketResolved {
		h.publish(r, notify.TicketResolved(ticket.ID, ticket.ClientID, ticket.Subject))
	}

	ticket.Status = req.Status
	ticket.ResolvedAt = resolvedAt
	writeJSON(w, http.StatusOK, ticket)
}

func (h *TicketHandler) actor(r *http.Request) string {
	if claims := requestClaims(r); claims != nil {
		return claims.UserID
	}
	return "api"
}

func (h *TicketHandler) publish(r *http.Request, event notify.Event) {
	if err := h.sink.Publish(r.Context(), event); err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Msg("event publish failed")
	}
}
