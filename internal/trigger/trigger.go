// Package trigger fires the daily generation job on a cron cadence.
package trigger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/generator"
	"github.com/djlord-it/easy-meetings/internal/metrics"
)

// Runner is the job fired by the trigger.
type Runner interface {
	Run(ctx context.Context) (generator.Report, error)
	Seed(ctx context.Context) (generator.Report, error)
}

type Schedule interface {
	Next(after time.Time) time.Time
}

// MetricsSink defines the interface for recording trigger metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TriggerFired(trigger string)
	TriggerDrift(drift time.Duration)
}

type Config struct {
	// SeedOnStart runs the job once before waiting for the first scheduled fire.
	SeedOnStart bool
}

// Trigger runs the job synchronously, so one process never overlaps runs.
type Trigger struct {
	config   Config
	schedule Schedule
	runner   Runner
	metrics  MetricsSink // optional, nil = disabled
	logger   *zap.Logger
	clock    func() time.Time
}

func New(config Config, schedule Schedule, runner Runner, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		config:   config,
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithMetrics attaches a metrics sink to the trigger.
func (t *Trigger) WithMetrics(sink MetricsSink) *Trigger {
	t.metrics = sink
	return t
}

// Run blocks until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) error {
	if t.config.SeedOnStart {
		t.fire(ctx, metrics.TriggerSeed)
	}

	for {
		now := t.clock()
		next := t.schedule.Next(now)
		if next.IsZero() {
			t.logger.Error("schedule has no future fire time, trigger stopped")
			<-ctx.Done()
			return ctx.Err()
		}
		t.logger.Info("next generation run scheduled", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("trigger stopped")
			return ctx.Err()
		case <-timer.C:
			if t.metrics != nil {
				t.metrics.TriggerDrift(t.clock().Sub(next))
			}
			t.fire(ctx, metrics.TriggerScheduled)
		}
	}
}

func (t *Trigger) fire(ctx context.Context, kind string) {
	if t.metrics != nil {
		t.metrics.TriggerFired(kind)
	}

	var (
		report generator.Report
		err    error
	)
	if kind == metrics.TriggerSeed {
		report, err = t.runner.Seed(ctx)
	} else {
		report, err = t.runner.Run(ctx)
	}

	switch {
	case errors.Is(err, generator.ErrRunInProgress):
		t.logger.Info("run skipped, another instance is generating", zap.String("trigger", kind))
	case errors.Is(err, context.Canceled):
		t.logger.Info("run interrupted by shutdown", zap.String("trigger", kind))
	case err != nil:
		t.logger.Error("run failed", zap.String("trigger", kind), zap.Error(err))
	case report.Failed() > 0:
		t.logger.Warn("run finished with series failures",
			zap.String("trigger", kind),
			zap.Int("failed", report.Failed()),
			zap.Error(report.Err()),
		)
	}
}
