package handlers

import (
	"net/http"
	"time"

	apiContext "github.com/AMvdBM19/monoliet-portal/internal/api/context"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// dashboardWindowDays is the execution lookback shown on both
// dashboards. It matches the health monitor so the rate a client sees
// is the rate alerts fire on.
const dashboardWindowDays = 7

type DashboardHandler struct {
	clientRepo    *repositories.ClientRepository
	workflowRepo  *repositories.WorkflowRepository
	executionRepo *repositories.ExecutionRepository
	invoiceRepo   *repositories.InvoiceRepository
	ticketRepo    *repositories.TicketRepository
}

func NewDashboardHandler(
	clientRepo *repositories.ClientRepository,
	workflowRepo *repositories.WorkflowRepository,
	executionRepo *repositories.ExecutionRepository,
	invoiceRepo *repositories.InvoiceRepository,
	ticketRepo *repositories.TicketRepository,
) *DashboardHandler {
	return &DashboardHandler{
		clientRepo:    clientRepo,
		workflowRepo:  workflowRepo,
		executionRepo: executionRepo,
		invoiceRepo:   invoiceRepo,
		ticketRepo:    ticketRepo,
	}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if client, ok := r.Context().Value(apiContext.Client).(*models.Client); ok {
		h.clientDashboard(w, r, client)
		return
	}
	h.adminDashboard(w, r)
}

type AdminDashboardResponse struct {
	Clients           map[models.ClientStatus]int   `json:"clients"`
	Workflows         map[models.WorkflowStatus]int `json:"workflows"`
	OpenInvoices      int                           `json:"open_invoices"`
	OverdueInvoices   int                           `json:"overdue_invoices"`
	OutstandingAmount decimal.Decimal               `json:"outstanding_amount"`
	OpenTickets       int                           `json:"open_tickets"`
}

func (h *DashboardHandler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientRepo.List()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	workflows, err := h.workflowRepo.ListByStatuses(models.WorkflowActive, models.WorkflowPaused, models.WorkflowError)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	invoices, err := h.invoiceRepo.ListOpen()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	tickets, err := h.ticketRepo.ListByStatus(models.TicketOpen)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	outstanding := decimal.Zero
	for _, inv := range invoices {
		outstanding = outstanding.Add(inv.Amount)
	}

	writeJSON(w, http.StatusOK, AdminDashboardResponse{
		Clients: lo.CountValuesBy(clients, func(c *models.Client) models.ClientStatus {
			return c.Status
		}),
		Workflows: lo.CountValuesBy(workflows, func(wf *models.Workflow) models.WorkflowStatus {
			return wf.Status
		}),
		OpenInvoices: len(invoices),
		OverdueInvoices: lo.CountBy(invoices, func(inv *models.Invoice) bool {
			return inv.Status == models.InvoiceOverdue
		}),
		OutstandingAmount: outstanding,
		OpenTickets:       len(tickets),
	})
}

type ClientDashboardResponse struct {
	Client       *models.Client     `json:"client"`
	Workflows    []*models.Workflow `json:"workflows"`
	Window       WindowStats        `json:"window"`
	OpenInvoices []*models.Invoice  `json:"open_invoices"`
	OpenTickets  int                `json:"open_tickets"`
}

type WindowStats struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	SuccessRate float64 `json:"success_rate"`
}

func (h *DashboardHandler) clientDashboard(w http.ResponseWriter, r *http.Request, client *models.Client) {
	workflows, err := h.workflowRepo.ListByClient(client.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -(dashboardWindowDays - 1))
	total, success, err := h.executionRepo.SumRangeByClient(client.ID, from, to)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	rate := 1.0
	if total > 0 {
		rate = float64(success) / float64(total)
	}

	invoices, err := h.invoiceRepo.ListByClient(client.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	open := lo.Filter(invoices, func(inv *models.Invoice, _ int) bool {
		return inv.Status != models.InvoicePaid
	})

	openTickets, err := h.ticketRepo.CountByStatus(models.TicketOpen, client.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	if workflows == nil {
		workflows = []*models.Workflow{}
	}
	if open == nil {
		open = []*models.Invoice{}
	}

	writeJSON(w, http.StatusOK, ClientDashboardResponse{
		Client:    client,
		Workflows: workflows,
		Window: WindowStats{
			From:        from.Format(time.DateOnly),
			To:          to.Format(time.DateOnly),
			Total:       total,
			Success:     success,
			SuccessRate: rate,
		},
		OpenInvoices: open,
		OpenTickets:  openTickets,
	})
}
