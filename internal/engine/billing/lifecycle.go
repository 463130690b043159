package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/rs/zerolog/log"
)

type Summary struct {
	Date          time.Time
	Examined      int
	MarkedOverdue int
	Reminders     int
	Failed        int
}

// Lifecycle is the scheduled sweep over open invoices. Pending
// invoices past their due date become overdue; reminders go out at
// fixed offsets before the due date and on a repeating cadence after
// it. Paid invoices never appear here.
type Lifecycle struct {
	cfg      config.BillingConfig
	invoices *repositories.InvoiceRepository
	trail    *audit.Trail
	sink     notify.Sink
	now      func() time.Time
}

func NewLifecycle(cfg config.BillingConfig, invoices *repositories.InvoiceRepository, trail *audit.Trail, sink notify.Sink) *Lifecycle {
	return &Lifecycle{
		cfg:      cfg,
		invoices: invoices,
		trail:    trail,
		sink:     sink,
		now:      time.Now,
	}
}

// Run processes every open invoice exactly once. An invoice due on day
// D stays payable through D and flips to overdue on D+1.
func (l *Lifecycle) Run(ctx context.Context) (*Summary, error) {
	today := l.now().UTC().Truncate(24 * time.Hour)

	open, err := l.invoices.ListOpen()
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}

	summary := &Summary{Date: today, Examined: len(open)}
	for _, inv := range open {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		switch inv.Status {
		case models.InvoicePending:
			l.checkPending(ctx, inv, today, summary)
		case models.InvoiceOverdue:
			l.remindOverdue(ctx, inv, today, summary)
		}
	}

	log.Info().
		Str("date", today.Format(time.DateOnly)).
		Int("examined", summary.Examined).
		Int("marked_overdue", summary.MarkedOverdue).
		Int("reminders", summary.Reminders).
		Int("failed", summary.Failed).
		Msg("invoice sweep finished")

	return summary, nil
}

func (l *Lifecycle) checkPending(ctx context.Context, inv *models.Invoice, today time.Time, s *Summary) {
	if inv.DueDate.Before(today) {
		if err := l.markOverdue(ctx, inv); err != nil {
			// A concurrent payment beat the sweep. The invoice
			// is settled; leave it alone.
			if errors.Is(err, repositories.ErrConflict) {
				log.Debug().Str("invoice_id", inv.ID).Msg("invoice paid while sweep was running")
				return
			}
			log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("overdue transition failed")
			s.Failed++
			return
		}
		s.MarkedOverdue++
		return
	}

	daysUntilDue := daysBetween(today, inv.DueDate)
	if daysUntilDue == l.cfg.ReminderDaysBefore || daysUntilDue == 0 {
		l.publish(ctx, notify.InvoiceReminder(inv.ID, inv.InvoiceNumber, inv.ClientID, daysUntilDue))
		s.Reminders++
	}
}

// remindOverdue nags on a fixed cadence counted from the due date, so
// reminders land on the same weekday no matter when the sweep runs.
func (l *Lifecycle) remindOverdue(ctx context.Context, inv *models.Invoice, today time.Time, s *Summary) {
	daysOverdue := daysBetween(inv.DueDate, today)
	if daysOverdue > 0 && daysOverdue%l.cfg.OverdueRepeatDays == 0 {
		l.publish(ctx, notify.InvoiceReminder(inv.ID, inv.InvoiceNumber, inv.ClientID, -daysOverdue))
		s.Reminders++
	}
}

func (l *Lifecycle) markOverdue(ctx context.Context, inv *models.Invoice) error {
	if err := inv.Status.TransitionTo(models.InvoiceOverdue); err != nil {
		return err
	}
	if err := l.invoices.SetStatus(inv.ID, inv.Status, models.InvoiceOverdue, nil); err != nil {
		return err
	}
	l.trail.RecordTransition("invoice", inv.ID, string(inv.Status), string(models.InvoiceOverdue), "billing-sweep",
		"due "+inv.DueDate.Format(time.DateOnly))
	inv.Status = models.InvoiceOverdue
	l.publish(ctx, notify.InvoiceOverdue(inv.ID, inv.InvoiceNumber, inv.ClientID))
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, event notify.Event) {
	if err := l.sink.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Msg("event publish failed")
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
