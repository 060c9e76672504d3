// Package scheduler runs periodic maintenance jobs, such as the exchange-wallet
// registry refresh, on clock-aligned schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// defaultExpectedInterval is used when a cron expression has no upcoming runs to compare.
const defaultExpectedInterval = 5 * time.Minute

// ErrNotRun is returned by LastSuccess before the first run completes.
var ErrNotRun = errors.New("job has not run yet")

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context) error

// Config holds scheduler configuration
type Config struct {
	Name           string         // Job name used in logs
	Interval       string         // Duration (e.g., "5m") or cron expression (e.g., "*/5 * * * *")
	Timezone       *time.Location // Timezone for cron expressions (default: UTC)
	RunImmediately bool           // Execute once right after Start
	Logger         *slog.Logger
}

// Scheduler wraps gocron v2 around a single job and tracks its outcome.
type Scheduler struct {
	cron   gocron.Scheduler
	job    gocron.Job
	cfg    Config
	logger *slog.Logger

	mu          sync.RWMutex
	lastSuccess time.Time
	lastErr     error
}

// NewScheduler creates a scheduler for jobFunc. ctx is passed to every run.
func NewScheduler(ctx context.Context, cfg Config, jobFunc JobFunc) (*Scheduler, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "job"
	}

	s := &Scheduler{cfg: cfg, logger: cfg.Logger.With("job", cfg.Name)}

	cronExpr := cfg.Interval
	if !isCronExpression(cronExpr) {
		var err error
		cronExpr, err = durationToCron(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		s.logger.Info("Converting duration to cron", "duration", cfg.Interval, "cron", cronExpr, "timezone", cfg.Timezone.String())
	} else {
		s.logger.Info("Using cron expression", "cron", cronExpr, "timezone", cfg.Timezone.String())
	}

	cron, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Timezone),
		gocron.WithLogger(newGocronLoggerAdapter(cfg.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	job, err := cron.NewJob(
		gocron.CronJob(cronExpr, cronWithSeconds(cronExpr)),
		gocron.NewTask(func() { s.run(ctx, jobFunc) }),
		gocron.WithName(cfg.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}

	s.cron = cron
	s.job = job
	return s, nil
}

func (s *Scheduler) run(ctx context.Context, jobFunc JobFunc) {
	started := time.Now()
	err := jobFunc(ctx)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.lastSuccess = started
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Job execution failed", "error", err)
		return
	}
	s.logger.Debug("Job execution succeeded", "duration", time.Since(started))
}

// Start begins the scheduler and optionally triggers one immediate run.
func (s *Scheduler) Start() error {
	s.cron.Start()

	if s.cfg.RunImmediately {
		s.logger.Info("Executing job immediately")
		if err := s.job.RunNow(); err != nil {
			// scheduled runs continue
			s.logger.Error("Immediate execution failed", "error", err)
		}
	}

	if nextRun, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started", "next_run", nextRun.Format(time.RFC3339), "timezone", s.cfg.Timezone.String())
	} else {
		s.logger.Info("Scheduler started")
	}
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.cron.Shutdown()
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	nextRun, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// LastSuccess returns when the last successful run started, and the error of
// the most recent run if it failed.
func (s *Scheduler) LastSuccess() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSuccess.IsZero() && s.lastErr == nil {
		return time.Time{}, ErrNotRun
	}
	return s.lastSuccess, s.lastErr
}

// ExpectedInterval is the time between two runs, used for health grace periods.
// Irregular cron schedules are approximated by the gap between the next two runs.
func (s *Scheduler) ExpectedInterval() time.Duration {
	if d, err := time.ParseDuration(s.cfg.Interval); err == nil {
		return d
	}
	runs, err := s.job.NextRuns(2)
	if err != nil || len(runs) < 2 {
		return defaultExpectedInterval
	}
	return runs[1].Sub(runs[0])
}

// gocronLoggerAdapter adapts slog.Logger to gocron.Logger interface
type gocronLoggerAdapter struct {
	logger *slog.Logger
}

func newGocronLoggerAdapter(logger *slog.Logger) gocron.Logger {
	return &gocronLoggerAdapter{logger: logger.With("component", "gocron")}
}

func (a *gocronLoggerAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *gocronLoggerAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *gocronLoggerAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *gocronLoggerAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
