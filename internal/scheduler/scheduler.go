// Package scheduler runs the engine's tasks on a cron schedule and on demand.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// Schedule binds a cron spec (with seconds, Beijing time) to a task
type Schedule struct {
	Spec string
	Task string
}

// DefaultSchedules is the production timetable. The position run lands ten
// minutes before the afternoon close so the push arrives while the market is
// still open.
var DefaultSchedules = []Schedule{
	{Spec: "0 50 14 * * MON-FRI", Task: TaskCalculatePosition},
	{Spec: "0 0 8 * * MON", Task: TaskUpdateCatalogue},
	{Spec: "0 15 1 * * *", Task: TaskCleanData},
	{Spec: "0 45 1 * * SUN", Task: TaskCheckDatabase},
}

// Scheduler triggers runner tasks from cron
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	log    zerolog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates a new scheduler on Beijing time. Overlapping runs of the same
// entry are skipped.
func New(runner *Runner, log zerolog.Logger) *Scheduler {
	logger := log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(domain.Beijing),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner: runner,
		log:    logger,
		ctx:    context.Background(),
	}
}

// Start starts the scheduler. Tasks run with ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.log.Info().Int("entries", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddTask registers a registered runner task with cron schedule
// Schedule examples:
//   - "0 50 14 * * MON-FRI" - 14:50 on weekdays
//   - "0 15 1 * * *"        - 01:15 every day
//   - "@every 30s"          - Every 30 seconds
func (s *Scheduler) AddTask(spec, name string) error {
	if !s.runner.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	_, err := s.cron.AddFunc(spec, func() {
		s.log.Debug().Str("task", name).Msg("Running task")
		out, err := s.runner.Execute(s.context(), name, config.TriggerSchedule)
		if err != nil {
			s.log.Error().Err(err).Str("task", name).Msg("Task could not be executed")
			return
		}
		s.log.Debug().Str("task", name).Str("status", string(out.Status)).Msg("Task completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.log.Info().
		Str("schedule", spec).
		Str("task", name).
		Msg("Task registered")

	return nil
}

// AddSchedules registers every schedule whose task is known to the runner
func (s *Scheduler) AddSchedules(schedules []Schedule) error {
	for _, sc := range schedules {
		if !s.runner.Has(sc.Task) {
			s.log.Warn().Str("task", sc.Task).Msg("Task not registered, schedule ignored")
			continue
		}
		if err := s.AddTask(sc.Spec, sc.Task); err != nil {
			return err
		}
	}
	return nil
}

// RunNow executes a task immediately (outside schedule)
func (s *Scheduler) RunNow(ctx context.Context, name string) (*Outcome, error) {
	s.log.Info().Str("task", name).Msg("Running task immediately")
	return s.runner.Execute(ctx, name, config.TriggerManual)
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cronLogger routes cron's own messages into zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
