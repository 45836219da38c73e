package trust

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the full recompute nightly at 03:00 UTC.
const DefaultSchedule = "0 3 * * *"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the first activation of expr strictly after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched.Next(from.UTC()), nil
}

// Recomputer is what the scheduler triggers.
type Recomputer interface {
	RecomputeAll(ctx context.Context, ownerID string) (Summary, error)
}

// Scheduler runs RecomputeAll for every owner on a cron schedule.
type Scheduler struct {
	expr      string
	svc       Recomputer
	scheduler gocron.Scheduler
	job       gocron.Job
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler validates expr and registers the recompute job. Overlapping
// runs are skipped rather than queued.
func NewScheduler(expr string, svc Recomputer) (*Scheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	if err := ValidateSchedule(expr); err != nil {
		return nil, err
	}

	gs, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{expr: expr, svc: svc, scheduler: gs, ctx: ctx, cancel: cancel}

	s.job, err = gs.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(s.run),
		gocron.WithName("trust_recompute_all"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = gs.Shutdown()
		return nil, fmt.Errorf("registering recompute job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	slog.Info("scheduled trust recompute starting", "schedule", s.expr)
	if _, err := s.svc.RecomputeAll(s.ctx, ""); err != nil {
		slog.Error("scheduled trust recompute failed", "error", err)
	}
}

// Start begins firing the job.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	if next, err := s.NextRun(); err == nil {
		slog.Info("trust scheduler started", "schedule", s.expr, "next_run", next)
	}
}

// RunNow triggers the job immediately, outside the schedule.
func (s *Scheduler) RunNow() error {
	return s.job.RunNow()
}

// NextRun reports when the job fires next.
func (s *Scheduler) NextRun() (time.Time, error) {
	return NextRun(s.expr, time.Now())
}

// Schedule returns the cron expression in use.
func (s *Scheduler) Schedule() string { return s.expr }

// Stop cancels any in-flight run and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.scheduler.Shutdown()
}
