// Package health evaluates workflow success rates over a trailing
// window and moves workflows between active and error. Alerts fire on
// state transitions, never on steady state, so a workflow that stays
// broken does not page anyone twice.
package health

import (
	"context"
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
	Since     time.Time
	Until     time.Time
	Workflows int
	Degraded  int
	Recovered int
	Inactive  int
	Failed    int
}

type Monitor struct {
	cfg        config.MonitorConfig
	workflows  *repositories.WorkflowRepository
	executions *repositories.ExecutionRepository
	trail      *audit.Trail
	sink       notify.Sink
	now        func() time.Time
}

func New(cfg config.MonitorConfig, workflows *repositories.WorkflowRepository, executions *repositories.ExecutionRepository, trail *audit.Trail, sink notify.Sink) *Monitor {
	return &Monitor{
		cfg:        cfg,
		workflows:  workflows,
		executions: executions,
		trail:      trail,
		sink:       sink,
		now:        time.Now,
	}
}

// Run checks every active and errored workflow. Paused workflows are
// the operator's business and are never evaluated.
func (m *Monitor) Run(ctx context.Context) (*Summary, error) {
	until := m.now().UTC().Truncate(24 * time.Hour)
	since := until.AddDate(0, 0, -(m.cfg.WindowDays - 1))

	workflows, err := m.workflows.ListByStatuses(models.WorkflowActive, models.WorkflowError)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	summary := &Summary{Since: since, Until: until, Workflows: len(workflows)}
	for _, wf := range workflows {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := m.check(ctx, wf, since, until, summary); err != nil {
			log.Warn().Err(err).Str("workflow_id", wf.ID).Msg("health check failed")
			summary.Failed++
		}
	}

	log.Info().
		Str("since", since.Format(time.DateOnly)).
		Str("until", until.Format(time.DateOnly)).
		Int("workflows", summary.Workflows).
		Int("degraded", summary.Degraded).
		Int("recovered", summary.Recovered).
		Int("inactive", summary.Inactive).
		Int("failed", summary.Failed).
		Msg("health check finished")

	return summary, nil
}

func (m *Monitor) check(ctx context.Context, wf *models.Workflow, since, until time.Time, s *Summary) error {
	total, success, _, err := m.executions.SumRange(wf.ID, since, until)
	if err != nil {
		return fmt.Errorf("sum window: %w", err)
	}

	// With no runs there is no evidence of failure. The rate defaults
	// high and inactivity is reported separately.
	rate := 1.0
	if total > 0 {
		rate = float64(success) / float64(total)
	}

	switch {
	case total == 0 && wf.Status == models.WorkflowActive:
		s.Inactive++
		m.publish(ctx, notify.WorkflowInactive(wf.ID, wf.ClientID, wf.LastExecutionAt))

	case total > 0 && rate < m.cfg.SuccessThreshold && wf.Status == models.WorkflowActive:
		note := fmt.Sprintf("success rate %.2f below %.2f over %d days", rate, m.cfg.SuccessThreshold, m.cfg.WindowDays)
		if err := m.transition(wf, models.WorkflowError, note); err != nil {
			return err
		}
		s.Degraded++
		m.publish(ctx, notify.WorkflowDegraded(wf.ID, wf.ClientID, rate, m.cfg.WindowDays))

	case total > 0 && rate >= m.cfg.SuccessThreshold && wf.Status == models.WorkflowError:
		note := fmt.Sprintf("success rate %.2f recovered above %.2f", rate, m.cfg.SuccessThreshold)
		if err := m.transition(wf, models.WorkflowActive, note); err != nil {
			return err
		}
		s.Recovered++
		if m.cfg.NotifyOnRecovery {
			m.publish(ctx, notify.WorkflowRecovered(wf.ID, wf.ClientID, rate))
		}
	}

	// Denormalized read-model fields. The monitor is their only writer.
	lastActive, err := m.executions.LastActiveDate(wf.ID)
	if err != nil {
		return fmt.Errorf("last active: %w", err)
	}
	lifetime, err := m.executions.LifetimeTotal(wf.ID)
	if err != nil {
		return fmt.Errorf("lifetime total: %w", err)
	}
	return m.workflows.UpdateHealth(wf.ID, lastActive, rate, lifetime)
}

func (m *Monitor) transition(wf *models.Workflow, next models.WorkflowStatus, note string) error {
	if err := wf.Status.TransitionTo(next); err != nil {
		return err
	}
	if err := m.workflows.SetStatus(wf.ID, next); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	m.trail.RecordTransition("workflow", wf.ID, string(wf.Status), string(next), "health-monitor", note)
	wf.Status = next
	return nil
}

func (m *Monitor) publish(ctx context.Context, event notify.Event) {
	if err := m.sink.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Msg("event publish failed")
	}
}
