// Package syncjob schedules the periodic resync of buffered metrics into the
// durable sink.
package syncjob

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/service/metrics"
)

const (
	defaultInterval     = 5 * time.Minute
	defaultInitialDelay = time.Minute
)

// Job owns the background resync schedule. The process carries at most one
// live schedule: starting the job again tears down the previous scheduler
// before building the new one.
type Job struct {
	collector *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// New constructs a resync job around the collector.
func New(collector *metrics.Collector, logger *slog.Logger) *Job {
	if logger != nil {
		logger = logger.With("component", "metrics_syncjob")
	}
	return &Job{
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the periodic drain. The first run fires after initialDelay
// so startup traffic settles before the first resync, then every interval.
// Calling Start while a schedule is live replaces it.
func (j *Job) Start(interval, initialDelay time.Duration) error {
	if interval <= 0 {
		interval = defaultInterval
	}
	if initialDelay < 0 {
		initialDelay = defaultInitialDelay
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scheduler != nil {
		j.scheduler.Stop()
		j.scheduler = nil
	}

	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).StartAt(j.now().Add(initialDelay)).Do(func() {
		j.runOnce()
	})
	if err != nil {
		return fmt.Errorf("schedule metrics resync: %w", err)
	}
	s.StartAsync()
	j.scheduler = s
	if j.logger != nil {
		j.logger.Info("metrics resync scheduled", "interval", interval, "initial_delay", initialDelay)
	}
	return nil
}

// Stop tears down the schedule. Safe to call when no schedule is live.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scheduler != nil {
		j.scheduler.Stop()
		j.scheduler = nil
		if j.logger != nil {
			j.logger.Info("metrics resync stopped")
		}
	}
}

func (j *Job) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := j.collector.Drain(ctx); err != nil {
		if j.logger != nil {
			j.logger.Error("metrics resync pass failed", "error", err)
		}
	}
}
