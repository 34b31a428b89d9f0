// Package scheduler triggers periodic pipeline runs in serve mode, so the
// event database stays current without an external cron.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/compscout/pkg/pipeline"
)

//go:generate moq -out mocks/runner.go -pkg mocks -skip-ensure -fmt goimports . Runner

// Runner executes one full pipeline cycle
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Scheduler runs the pipeline on a fixed interval
type Scheduler struct {
	runner   Runner
	interval time.Duration
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler with the given run interval
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{runner: runner, interval: interval}
}

// Start begins periodic runs, the first run fires immediately.
// Returns right away, runs happen on a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)

	lgr.Printf("[INFO] scheduler started with interval %v", s.interval)
}

// Stop cancels the loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single pipeline cycle, failures are logged and the loop
// keeps going
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.Run(ctx)
	if err != nil {
		lgr.Printf("[WARN] scheduled run failed: %v", err)
		return
	}
	lgr.Printf("[INFO] scheduled run %s: %d new articles, %d events", summary.State, summary.New, summary.EventsCreated)
}
