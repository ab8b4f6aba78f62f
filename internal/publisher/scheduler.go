package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/jgoulah/gridexporter/internal/collector"
)

// CycleFunc runs one collection
type CycleFunc func(ctx context.Context) collector.Result

// ResultPublisher delivers a collection result somewhere
type ResultPublisher interface {
	Publish(res collector.Result) error
}

// Scheduler runs a collection on a cron schedule and publishes the result
type Scheduler struct {
	schedule string
	cycle    CycleFunc
	pub      ResultPublisher
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for a standard cron expression or
// descriptor such as "@hourly"
func NewScheduler(schedule string, cycle CycleFunc, pub ResultPublisher) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		cycle:    cycle,
		pub:      pub,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "publisher.scheduler"),
	}
}

// RunOnce collects and publishes immediately
func (s *Scheduler) RunOnce(ctx context.Context) error {
	res := s.cycle(ctx)
	if err := s.pub.Publish(res); err != nil {
		return err
	}
	s.logger.Info("published usage", "snapshots", len(res.Snapshots), "up", res.Up)
	return nil
}

// Start schedules the job and returns; the scheduler stops when ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled publish failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule publishing: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("publish scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("publish scheduler stopped")
}

// Running reports whether the scheduler has been started and not stopped
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
