// Package workers schedules the recurring engine jobs. Every job is
// idempotent, so the scheduler's only promises are one run at a time
// per job and a skipped tick when the previous run is still going.
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrAlreadyRunning = errors.New("job already running")
)

// Job is one schedulable unit of batch work.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Guard serializes runs per job name. Overlapping triggers are skipped
// rather than queued; the next tick picks up whatever a skipped run
// would have done.
type Guard struct {
	mu   sync.Mutex
	busy map[string]bool
}

func NewGuard() *Guard {
	return &Guard{busy: make(map[string]bool)}
}

// Acquire reports whether the caller may run the named job now. A true
// return must be paired with Release.
func (g *Guard) Acquire(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[name] {
		return false
	}
	g.busy[name] = true
	return true
}

func (g *Guard) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, name)
}

type Scheduler struct {
	guard *Guard
	jobs  map[string]Job
	order []string
}

func NewScheduler(jobs ...Job) *Scheduler {
	s := &Scheduler{
		guard: NewGuard(),
		jobs:  make(map[string]Job, len(jobs)),
	}
	for _, job := range jobs {
		s.jobs[job.Name] = job
		s.order = append(s.order, job.Name)
	}
	return s
}

// Start runs every job on its interval until ctx is canceled. Each job
// fires once immediately so a fresh deploy does not wait a full
// interval for its first sweep. Start blocks until all loops exit.
func (s *Scheduler) Start(ctx context.Context) {
	var wg conc.WaitGroup
	for _, name := range s.order {
		job := s.jobs[name]
		wg.Go(func() {
			s.loop(ctx, job)
		})
	}
	wg.Wait()
}

// RunNow triggers one job outside its schedule, for the admin API and
// the run-once worker mode.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return ErrUnknownJob
	}
	if !s.guard.Acquire(job.Name) {
		return ErrAlreadyRunning
	}
	defer s.guard.Release(job.Name)
	return job.Run(ctx)
}

// Names returns the registered job names in registration order.
func (s *Scheduler) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	s.tick(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	if !s.guard.Acquire(job.Name) {
		log.Warn().Str("job", job.Name).Msg("previous run still in progress, skipping tick")
		return
	}
	defer s.guard.Release(job.Name)

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Str("job", job.Name).Dur("elapsed", time.Since(started)).Msg("job failed")
		return
	}
	log.Debug().Str("job", job.Name).Dur("elapsed", time.Since(started)).Msg("job finished")
}
