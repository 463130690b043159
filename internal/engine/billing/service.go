// Package billing owns the invoice lifecycle: creation with portal-wide
// sequential numbering, payment, and the scheduled pending to overdue
// sweep with its reminder cadence.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound   = errors.New("invoice not found")
	ErrValidation = errors.New("invalid invoice")
)

type Service struct {
	invoices *repositories.InvoiceRepository
	trail    *audit.Trail
	sink     notify.Sink
	now      func() time.Time
}

func NewService(invoices *repositories.InvoiceRepository, trail *audit.Trail, sink notify.Sink) *Service {
	return &Service{
		invoices: invoices,
		trail:    trail,
		sink:     sink,
		now:      time.Now,
	}
}

// Create validates and persists a new invoice. The sequential invoice
// number is assigned inside the insert transaction.
func (s *Service) Create(ctx context.Context, inv *models.Invoice) error {
	if inv.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	if !inv.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if inv.Type == "" {
		inv.Type = models.InvoiceTypeMonthly
	}
	if !inv.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrValidation, inv.Type)
	}
	if inv.DueDate.IsZero() {
		return fmt.Errorf("%w: due_date is required", ErrValidation)
	}

	if err := s.invoices.Create(inv); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	s.trail.RecordTransition("invoice", inv.ID, "", string(inv.Status), "billing", "invoice "+inv.InvoiceNumber+" issued")
	s.publish(ctx, notify.InvoiceCreated(inv.ID, inv.InvoiceNumber, inv.ClientID))
	return nil
}

// MarkPaid settles an invoice. Paid is terminal; paying an already paid
// invoice is rejected by the state machine. When the overdue sweep
// races this call, the fresher status wins and the payment is retried
// against it once.
func (s *Service) MarkPaid(ctx context.Context, invoiceID, actor string) (*models.Invoice, error) {
	for attempt := 0; attempt < 2; attempt++ {
		inv, err := s.invoices.GetByID(invoiceID)
		if err != nil {
			return nil, fmt.Errorf("load invoice: %w", err)
		}
		if inv == nil {
			return nil, ErrNotFound
		}

		if err := inv.Status.TransitionTo(models.InvoicePaid); err != nil {
			return nil, err
		}

		paidDate := s.now().UTC().Truncate(24 * time.Hour)
		err = s.invoices.SetStatus(inv.ID, inv.Status, models.InvoicePaid, &paidDate)
		if errors.Is(err, repositories.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("mark paid: %w", err)
		}

		s.trail.RecordTransition("invoice", inv.ID, string(inv.Status), string(models.InvoicePaid), actor, "")
		inv.Status = models.InvoicePaid
		inv.PaidDate = &paidDate
		return inv, nil
	}
	return nil, fmt.Errorf("mark paid: %w", repositories.ErrConflict)
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	if err := s.sink.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Msg("event publish failed")
	}
}
