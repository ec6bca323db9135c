package usecase

import (
	"context"
	"sync"
	"time"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

// RunSyncer is satisfied by the Aggregator.
type RunSyncer interface {
	SyncAll(ctx context.Context) domain.RunResult
}

// Scheduler wires the cron-like driver with the aggregator run.
type Scheduler struct {
	driver     ports.Scheduler
	aggregator RunSyncer

	mu      sync.Mutex
	running bool
	onRun   func(time.Time, domain.RunResult)
}

// NewScheduler returns a helper to start/stop recurring runs. onRun, when set,
// receives the result of every run.
func NewScheduler(driver ports.Scheduler, aggregator RunSyncer, onRun func(time.Time, domain.RunResult)) *Scheduler {
	return &Scheduler{driver: driver, aggregator: aggregator, onRun: onRun}
}

// Start registers the aggregator run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.aggregator == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.runOnce(ctx, trigger)
	})
}

// runOnce skips a tick while the previous run is still going.
func (s *Scheduler) runOnce(ctx context.Context, trigger time.Time) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := s.aggregator.SyncAll(ctx)
	if s.onRun != nil {
		s.onRun(trigger, result)
	}
	return true
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
