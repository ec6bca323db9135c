package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"FeedAggregator/internal/domain"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type blockingSyncer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	entered chan struct{}
}

func (s *blockingSyncer) SyncAll(context.Context) domain.RunResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return domain.RunResult{Created: 1}
}

func TestSchedulerRunsAggregator(t *testing.T) {
	t.Parallel()

	driver := &manualDriver{}
	syncer := &blockingSyncer{}
	var got []domain.RunResult
	s := NewScheduler(driver, syncer, func(_ time.Time, r domain.RunResult) { got = append(got, r) })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	driver.job(time.Now())
	driver.job(time.Now())

	if syncer.calls != 2 || len(got) != 2 || got[0].Created != 1 {
		t.Fatalf("unexpected calls=%d results=%v", syncer.calls, got)
	}

	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("Stop did not reach the driver: %v", err)
	}
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	t.Parallel()

	syncer := &blockingSyncer{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := NewScheduler(&manualDriver{}, syncer, nil)

	done := make(chan bool)
	go func() { done <- s.runOnce(context.Background(), time.Now()) }()
	<-syncer.entered

	if s.runOnce(context.Background(), time.Now()) {
		t.Fatal("overlapping tick should be skipped")
	}

	close(syncer.release)
	if !<-done {
		t.Fatal("first tick should have run")
	}
}

func TestSchedulerWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, &blockingSyncer{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}
