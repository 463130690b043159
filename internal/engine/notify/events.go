package notify

import (
	"context"
	"time"
)

// Event types carried by every sink. Receivers route on these, so they
// are part of the outbound contract and never change meaning.
const (
	TypeWorkflowDegraded  = "workflow.degraded"
	TypeWorkflowInactive  = "workflow.inactive"
	TypeWorkflowRecovered = "workflow.recovered"
	TypeEngineAuthFailed  = "engine.auth_failed"
	TypeInvoiceCreated    = "invoice.created"
	TypeInvoiceReminder   = "invoice.reminder"
	TypeInvoiceOverdue    = "invoice.overdue"
	TypeTicketOpened      = "ticket.opened"
	TypeTicketResolved    = "ticket.resolved"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Sink delivers events somewhere. Delivery failures are the sink's
// problem to record; they must never fail the job that emitted the
// event.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

type WorkflowDegradedPayload struct {
	WorkflowID  string  `json:"workflow_id"`
	ClientID    string  `json:"client_id"`
	SuccessRate float64 `json:"success_rate"`
	WindowDays  int     `json:"window_days"`
}

func WorkflowDegraded(workflowID, clientID string, successRate float64, windowDays int) Event {
	return Event{Type: TypeWorkflowDegraded, Data: WorkflowDegradedPayload{
		WorkflowID: workflowID, ClientID: clientID, SuccessRate: successRate, WindowDays: windowDays,
	}}
}

type WorkflowInactivePayload struct {
	WorkflowID   string     `json:"workflow_id"`
	ClientID     string     `json:"client_id"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

func WorkflowInactive(workflowID, clientID string, lastActiveAt *time.Time) Event {
	return Event{Type: TypeWorkflowInactive, Data: WorkflowInactivePayload{
		WorkflowID: workflowID, ClientID: clientID, LastActiveAt: lastActiveAt,
	}}
}

type WorkflowRecoveredPayload struct {
	WorkflowID  string  `json:"workflow_id"`
	ClientID    string  `json:"client_id"`
	SuccessRate float64 `json:"success_rate"`
}

func WorkflowRecovered(workflowID, clientID string, successRate float64) Event {
	return Event{Type: TypeWorkflowRecovered, Data: WorkflowRecoveredPayload{
		WorkflowID: workflowID, ClientID: clientID, SuccessRate: successRate,
	}}
}

type EngineAuthFailedPayload struct {
	ClientID string `json:"client_id"`
	Detail   string `json:"detail"`
}

func EngineAuthFailed(clientID, detail string) Event {
	return Event{Type: TypeEngineAuthFailed, Data: EngineAuthFailedPayload{
		ClientID: clientID, Detail: detail,
	}}
}

type InvoicePayload struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	ClientID      string `json:"client_id"`
}

func InvoiceCreated(invoiceID, invoiceNumber, clientID string) Event {
	return Event{Type: TypeInvoiceCreated, Data: InvoicePayload{
		InvoiceID: invoiceID, InvoiceNumber: invoiceNumber, ClientID: clientID,
	}}
}

// ReminderPayload always carries days_until_due: zero means due today,
// negative means overdue.
type ReminderPayload struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	ClientID      string `json:"client_id"`
	DaysUntilDue  int    `json:"days_until_due"`
}

// InvoiceReminder fires at fixed offsets before the due date and on a
// repeating cadence once overdue.
func InvoiceReminder(invoiceID, invoiceNumber, clientID string, daysUntilDue int) Event {
	return Event{Type: TypeInvoiceReminder, Data: ReminderPayload{
		InvoiceID: invoiceID, InvoiceNumber: invoiceNumber, ClientID: clientID, DaysUntilDue: daysUntilDue,
	}}
}

func InvoiceOverdue(invoiceID, invoiceNumber, clientID string) Event {
	return Event{Type: TypeInvoiceOverdue, Data: InvoicePayload{
		InvoiceID: invoiceID, InvoiceNumber: invoiceNumber, ClientID: clientID,
	}}
}

type TicketPayload struct {
	TicketID string `json:"ticket_id"`
	ClientID string `json:"client_id"`
	Subject  string `json:"subject"`
	Priority string `json:"priority,omitempty"`
}

func TicketOpened(ticketID, clientID, subject, priority string) Event {
	return Event{Type: TypeTicketOpened, Data: TicketPayload{
		TicketID: ticketID, ClientID: clientID, Subject: subject, Priority: priority,
	}}
}

func TicketResolved(ticketID, clientID, subject string) Event {
	return Event{Type: TypeTicketResolved, Data: TicketPayload{
		TicketID: ticketID, ClientID: clientID, Subject: subject,
	}}
}
