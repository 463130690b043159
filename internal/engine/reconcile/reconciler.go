// Package reconcile pulls execution history from the automation engine
// and merges it into the local per-day aggregates. The job is a pure
// mirror: remote history is the source of truth, and re-running any
// window converges on the same rows.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/n8n"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// EngineClient is the slice of the engine API the reconciler consumes.
type EngineClient interface {
	ListExecutions(ctx context.Context, externalID string, since, until time.Time) ([]n8n.ExecutionRecord, error)
}

// EngineFactory builds a client bound to one tenant's credential.
type EngineFactory interface {
	ForClient(clientID string) (EngineClient, error)
}

// EngineFactoryFunc adapts a function to the EngineFactory interface.
type EngineFactoryFunc func(clientID string) (EngineClient, error)

func (f EngineFactoryFunc) ForClient(clientID string) (EngineClient, error) {
	return f(clientID)
}

// Summary reports what one run did. Every counter is per workflow
// except DaysMerged and Executions, which count written day rows and
// remote runs.
type Summary struct {
	Since      time.Time
	Until      time.Time
	Workflows  int
	Reconciled int
	Skipped    int
	DaysMerged int
	Executions int
}

type clientResult struct {
	reconciled int
	skipped    int
	daysMerged int
	executions int
}

type Reconciler struct {
	cfg        config.ReconcilerConfig
	workflows  *repositories.WorkflowRepository
	executions *repositories.ExecutionRepository
	engines    EngineFactory
	sink       notify.Sink
	now        func() time.Time
}

func New(cfg config.ReconcilerConfig, workflows *repositories.WorkflowRepository, executions *repositories.ExecutionRepository, engines EngineFactory, sink notify.Sink) *Reconciler {
	return &Reconciler{
		cfg:        cfg,
		workflows:  workflows,
		executions: executions,
		engines:    engines,
		sink:       sink,
		now:        time.Now,
	}
}

// Run reconciles every active and errored workflow over the trailing
// window. Clients are processed concurrently; workflows of one client
// share a credential and run serially. Paused workflows are not polled.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	until := r.now().UTC().Truncate(24 * time.Hour)
	since := until.AddDate(0, 0, -(r.cfg.WindowDays - 1))

	workflows, err := r.workflows.ListByStatuses(models.WorkflowActive, models.WorkflowError)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	summary := &Summary{Since: since, Until: until, Workflows: len(workflows)}
	byClient := lo.GroupBy(workflows, func(wf *models.Workflow) string { return wf.ClientID })

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(r.cfg.Concurrency)
	for clientID, group := range byClient {
		p.Go(func() {
			res := r.reconcileClient(ctx, clientID, group, since, until)
			mu.Lock()
			summary.Reconciled += res.reconciled
			summary.Skipped += res.skipped
			summary.DaysMerged += res.daysMerged
			summary.Executions += res.executions
			mu.Unlock()
		})
	}
	p.Wait()

	log.Info().
		Str("since", since.Format(time.DateOnly)).
		Str("until", until.Format(time.DateOnly)).
		Int("workflows", summary.Workflows).
		Int("reconciled", summary.Reconciled).
		Int("skipped", summary.Skipped).
		Int("days_merged", summary.DaysMerged).
		Int("executions", summary.Executions).
		Msg("reconciliation finished")

	return summary, ctx.Err()
}

func (r *Reconciler) reconcileClient(ctx context.Context, clientID string, workflows []*models.Workflow, since, until time.Time) clientResult {
	var res clientResult

	engine, err := r.engines.ForClient(clientID)
	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("engine client unavailable")
		r.publish(ctx, notify.EngineAuthFailed(clientID, err.Error()))
		res.skipped = len(workflows)
		return res
	}

	for i, wf := range workflows {
		if ctx.Err() != nil {
			res.skipped += len(workflows) - i
			return res
		}

		days, runs, err := r.reconcileWorkflow(ctx, engine, wf, since, until)
		res.daysMerged += days
		res.executions += runs
		if err != nil {
			if n8n.IsAuthFailed(err) {
				// The shared credential is bad. Every remaining
				// workflow of this client would fail the same way.
				log.Error().Err(err).Str("client_id", clientID).Str("workflow_id", wf.ID).Msg("engine rejected credential")
				r.publish(ctx, notify.EngineAuthFailed(clientID, err.Error()))
				res.skipped += len(workflows) - i
				return res
			}
			log.Warn().Err(err).Str("workflow_id", wf.ID).Str("external_id", wf.ExternalID).Msg("workflow skipped")
			res.skipped++
			continue
		}
		res.reconciled++
	}
	return res
}

func (r *Reconciler) reconcileWorkflow(ctx context.Context, engine EngineClient, wf *models.Workflow, since, until time.Time) (days, runs int, err error) {
	records, err := engine.ListExecutions(ctx, wf.ExternalID, since, until)
	if err != nil {
		return 0, 0, err
	}

	// Days with no runs get no row at all. Absence is what the health
	// monitor reads as inactivity.
	byDay := lo.GroupBy(records, func(rec n8n.ExecutionRecord) time.Time { return rec.Date })
	for date, recs := range byDay {
		agg := &models.Execution{
			WorkflowID:    wf.ID,
			ClientID:      wf.ClientID,
			ExecutionDate: date,
		}
		for _, rec := range recs {
			agg.TotalCount++
			if rec.Succeeded {
				agg.SuccessCount++
			} else {
				agg.ErrorCount++
			}
		}
		if err := r.merge(agg); err != nil {
			return days, len(records), fmt.Errorf("merge %s: %w", date.Format(time.DateOnly), err)
		}
		days++
	}
	return days, len(records), nil
}

// merge writes one day aggregate. A conflicted upsert, meaning another
// writer touched the same (workflow, date) row, gets one retry before
// the workflow counts as skipped.
func (r *Reconciler) merge(agg *models.Execution) error {
	op := func() error {
		err := r.executions.UpsertMerge(agg)
		if err == nil || errors.Is(err, repositories.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 1)
	return backoff.Retry(op, bo)
}

func (r *Reconciler) publish(ctx context.Context, event notify.Event) {
	if err := r.sink.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Msg("event publish failed")
	}
}
