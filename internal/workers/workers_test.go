package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGuardBlocksSecondAcquire(t *testing.T) {
	g := NewGuard()

	if !g.Acquire("reconcile") {
		t.Fatal("first Acquire() = false, want true")
	}
	if g.Acquire("reconcile") {
		t.Error("second Acquire() = true, want false while held")
	}
	// Other jobs are independent.
	if !g.Acquire("check-health") {
		t.Error("Acquire() for another job = false, want true")
	}

	g.Release("reconcile")
	if !g.Acquire("reconcile") {
		t.Error("Acquire() after Release() = false, want true")
	}
}

func TestRunNow(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(Job{
		Name:  "reconcile",
		Every: time.Hour,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	if err := s.RunNow(context.Background(), "reconcile"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}

	if err := s.RunNow(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(unknown) error = %v, want ErrUnknownJob", err)
	}
}

func TestRunNowRefusesBusyJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := NewScheduler(Job{
		Name:  "reconcile",
		Every: time.Hour,
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	})

	go s.RunNow(context.Background(), "reconcile")
	<-started

	if err := s.RunNow(context.Background(), "reconcile"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("concurrent RunNow() error = %v, want ErrAlreadyRunning", err)
	}
	close(release)
}

func TestSchedulerRunsOnIntervalWithoutOverlap(t *testing.T) {
	var (
		runs    atomic.Int32
		inRun   atomic.Int32
		overlap atomic.Bool
	)
	s := NewScheduler(Job{
		Name:  "slow",
		Every: 10 * time.Millisecond,
		Run: func(context.Context) error {
			if inRun.Add(1) > 1 {
				overlap.Store(true)
			}
			defer inRun.Add(-1)
			runs.Add(1)
			time.Sleep(25 * time.Millisecond)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if overlap.Load() {
		t.Error("job runs overlapped")
	}
	// The immediate run plus at least one tick, with skipped ticks in
	// between while the slow run held the guard.
	if got := runs.Load(); got < 2 {
		t.Errorf("runs = %d, want at least 2", got)
	}
}
