package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FeedAggregator/internal/ports"
)

// CronScheduler fires the job on a five-field cron expression.
type CronScheduler struct {
	spec       string
	location   *time.Location
	runOnStart bool
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// Options tunes the cron driver.
type Options struct {
	Location   *time.Location
	RunOnStart bool
	Logger     *slog.Logger
}

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, opts Options) *CronScheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, location: loc, runOnStart: opts.RunOnStart, logger: opts.Logger}
}

// ParseSpec validates a five-field cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := newParser().Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	return schedule, nil
}

// Start registers the job and starts the cron loop. It is a no-op when
// already running.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	logger := cronLogger{logger: c.logger}
	runner := cron.New(
		cron.WithParser(newParser()),
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(logger)),
		cron.WithLogger(logger),
	)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}

	runner.Start()
	c.cron = runner

	if c.runOnStart {
		go job(time.Now().In(c.location))
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the cron loop and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running job: %w", ctx.Err())
	}
}

// Next reports the next fire time after from.
func (c *CronScheduler) Next(from time.Time) (time.Time, error) {
	schedule, err := ParseSpec(c.spec)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from.In(c.location)), nil
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// cronLogger routes cron's logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.logger != nil {
		l.logger.Debug("cron: "+msg, keysAndValues...)
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	if err == nil {
		err = errors.New("unknown")
	}
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
