package models

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change would violate
// an entity's lifecycle. Callers treat it as a no-op conflict, not a
// crash.
var ErrInvalidTransition = errors.New("invalid status transition")

type ClientStatus string

const (
	ClientActive  ClientStatus = "active"
	ClientPaused  ClientStatus = "paused"
	ClientChurned ClientStatus = "churned"
)

type WorkflowStatus string

const (
	WorkflowActive WorkflowStatus = "active"
	WorkflowPaused WorkflowStatus = "paused"
	WorkflowError  WorkflowStatus = "error"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type InvoiceType string

const (
	InvoiceTypeSetup      InvoiceType = "setup"
	InvoiceTypeMonthly    InvoiceType = "monthly"
	InvoiceTypeAdditional InvoiceType = "additional"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialExpired CredentialStatus = "expired"
	CredentialInvalid CredentialStatus = "invalid"
)

var clientEdges = map[ClientStatus][]ClientStatus{
	ClientActive:  {ClientPaused, ClientChurned},
	ClientPaused:  {ClientActive, ClientChurned},
	ClientChurned: {ClientActive},
}

// Workflow status moves between active and error only through the
// health monitor; paused is an administrator state the monitor never
// enters or leaves.
var workflowEdges = map[WorkflowStatus][]WorkflowStatus{
	WorkflowActive: {WorkflowPaused, WorkflowError},
	WorkflowPaused: {WorkflowActive},
	WorkflowError:  {WorkflowActive, WorkflowPaused},
}

// paid is terminal. overdue is reversed only by payment.
var invoiceEdges = map[InvoiceStatus][]InvoiceStatus{
	InvoicePending: {InvoicePaid, InvoiceOverdue},
	InvoiceOverdue: {InvoicePaid},
	InvoicePaid:    {},
}

var ticketEdges = map[TicketStatus][]TicketStatus{
	TicketOpen:       {TicketInProgress, TicketResolved},
	TicketInProgress: {TicketOpen, TicketResolved},
	TicketResolved:   {TicketOpen},
}

func (s ClientStatus) Valid() bool {
	switch s {
	case ClientActive, ClientPaused, ClientChurned:
		return true
	}
	return false
}

func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowActive, WorkflowPaused, WorkflowError:
		return true
	}
	return false
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceTypeSetup, InvoiceTypeMonthly, InvoiceTypeAdditional:
		return true
	}
	return false
}

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved:
		return true
	}
	return false
}

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (s CredentialStatus) Valid() bool {
	switch s {
	case CredentialActive, CredentialExpired, CredentialInvalid:
		return true
	}
	return false
}

// TransitionTo reports whether the client may move to next.
func (s ClientStatus) TransitionTo(next ClientStatus) error {
	return checkEdge("client", s, next, clientEdges[s], next.Valid())
}

// TransitionTo reports whether the workflow may move to next.
func (s WorkflowStatus) TransitionTo(next WorkflowStatus) error {
	return checkEdge("workflow", s, next, workflowEdges[s], next.Valid())
}

// TransitionTo reports whether the invoice may move to next.
func (s InvoiceStatus) TransitionTo(next InvoiceStatus) error {
	return checkEdge("invoice", s, next, invoiceEdges[s], next.Valid())
}

// TransitionTo reports whether the ticket may move to next.
func (s TicketStatus) TransitionTo(next TicketStatus) error {
	return checkEdge("ticket", s, next, ticketEdges[s], next.Valid())
}

func checkEdge[S ~string](entity string, current, next S, allowed []S, nextValid bool) error {
	if !nextValid {
		return fmt.Errorf("%w: %s status %q is not valid", ErrInvalidTransition, entity, next)
	}
	for _, a := range allowed {
		if a == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, entity, current, next)
}
