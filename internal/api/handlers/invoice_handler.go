package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/billing"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/shopspring/decimal"
)

type InvoiceHandler struct {
	invoiceRepo *repositories.InvoiceRepository
	billing     *billing.Service
	billingCfg  config.BillingConfig
}

func NewInvoiceHandler(invoiceRepo *repositories.InvoiceRepository, billing *billing.Service, billingCfg config.BillingConfig) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceRepo: invoiceRepo,
		billing:     billing,
		billingCfg:  billingCfg,
	}
}

type CreateInvoiceRequest struct {
	ClientID string          `json:"client_id"`
	Amount   decimal.Decimal `json:"amount"`
	Type     string          `json:"type"`
	DueDate  string          `json:"due_date"`
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	inv := &models.Invoice{
		ClientID: req.ClientID,
		Amount:   req.Amount,
		Type:     models.InvoiceType(req.Type),
	}
	if req.DueDate != "" {
		d, err := time.Parse(time.DateOnly, req.DueDate)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "due_date must be YYYY-MM-DD", nil)
			return
		}
		inv.DueDate = d
	}

	if err := h.billing.Create(r.Context(), inv); err != nil {
		if errors.Is(err, billing.ErrValidation) {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create invoice", nil)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := scopeClientID(w, r, r.URL.Query().Get("client_id"))
	if !ok {
		return
	}

	var (
		invoices []*models.Invoice
		err      error
	)
	switch {
	case clientID != "":
		invoices, err = h.invoiceRepo.ListByClient(clientID)
	case r.URL.Query().Get("status") != "":
		status := models.InvoiceStatus(r.URL.Query().Get("status"))
		if !status.Valid() {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown invoice status", nil)
			return
		}
		invoices, err = h.invoiceRepo.ListByStatus(status)
	default:
		invoices, err = h.invoiceRepo.ListOpen()
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list invoices", nil)
		return
	}
	if invoices == nil {
		invoices = []*models.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

// lookup resolves the path parameter as an invoice id, or as the
// printed invoice number when it carries the INV- prefix. Bookkeeping
// matches bank payments by that number, so the endpoints accept both.
func (h *InvoiceHandler) lookup(param string) (*models.Invoice, error) {
	if strings.HasPrefix(param, "INV-") {
		return h.invoiceRepo.GetByNumber(param)
	}
	return h.invoiceRepo.GetByID(param)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.lookup(pathParam(r, "invoice_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if inv == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Invoice not found", nil)
		return
	}
	if _, ok := scopeClientID(w, r, inv.ClientID); !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// QR renders the invoice as a SEPA payment QR PNG.
func (h *InvoiceHandler) QR(w http.ResponseWriter, r *http.Request) {
	inv, err := h.lookup(pathParam(r, "invoice_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if inv == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Invoice not found", nil)
		return
	}
	if _, ok := scopeClientID(w, r, inv.ClientID); !ok {
		return
	}

	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "size must be a number", nil)
			return
		}
	}

	png, err := billing.PaymentQR(h.billingCfg, inv, size)
	if err != nil {
		if errors.Is(err, billing.ErrQRNotConfigured) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Payment QR is not configured", nil)
			return
		}
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Pay settles an invoice. Admin only; payments arrive through the
// bookkeeping integration, not from the client portal.
func (h *InvoiceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	actor := "api"
	if claims := requestClaims(r); claims != nil {
		actor = claims.UserID
	}

	id := pathParam(r, "invoice_id")
	if strings.HasPrefix(id, "INV-") {
		found, err := h.lookup(id)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
			return
		}
		if found == nil {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Invoice not found", nil)
			return
		}
		id = found.ID
	}

	inv, err := h.billing.MarkPaid(r.Context(), id, actor)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotFound):
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Invoice not found", nil)
		case errors.Is(err, models.ErrInvalidTransition):
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeInvalidTransition, err.Error(), nil)
		default:
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to settle invoice", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, inv)
}
