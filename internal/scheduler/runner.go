package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/clients/wecom"
	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
)

// Task names
const (
	TaskCalculatePosition = "calculate_position"
	TaskUpdateCatalogue   = "update_etf_list"
	TaskCleanData         = "clean_data"
	TaskCheckDatabase     = "check_database"
)

// Status is the outcome of a task run
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

var (
	// ErrUnknownTask is returned for names no task is registered under
	ErrUnknownTask = errors.New("unknown task")
	// ErrNotDelivered marks a task whose work finished but whose
	// notification could not be delivered. Such runs are not counted as
	// completed for the day.
	ErrNotDelivered = errors.New("notification not delivered")
)

// Task is a unit of work the runner executes
type Task interface {
	Name() string
	Run(ctx context.Context) (interface{}, error)
}

// Windowed tasks only run on schedule while InWindow holds
type Windowed interface {
	InWindow(now time.Time) bool
}

// Policy controls how scheduled runs of a task are gated
type Policy struct {
	OncePerDay bool // skip scheduled runs after a successful run the same Beijing day
}

// RunLog persists task runs
type RunLog interface {
	Start(task, runDate string, trigger config.Trigger, at time.Time) (int64, error)
	Finish(id int64, status Status, errMsg string, at time.Time) error
	Completed(task, runDate string) (bool, error)
}

// EventEmitter publishes task completion events
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Outcome is the printable result of one execution
type Outcome struct {
	Task      string         `json:"task"`
	Trigger   config.Trigger `json:"trigger"`
	Status    Status         `json:"status"`
	Message   string         `json:"message"`
	Result    interface{}    `json:"result,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  float64        `json:"duration_seconds"`
}

type registration struct {
	task   Task
	policy Policy
}

// Runner executes tasks by name and records every run
type Runner struct {
	tasks    map[string]registration
	runs     RunLog
	events   EventEmitter
	notifier wecom.Notifier
	metrics  *metrics.Metrics
	now      domain.Clock
	log      zerolog.Logger
}

// NewRunner creates a runner. events, notifier and m may be nil.
func NewRunner(runs RunLog, emitter EventEmitter, notifier wecom.Notifier, m *metrics.Metrics, log zerolog.Logger) *Runner {
	return &Runner{
		tasks:    make(map[string]registration),
		runs:     runs,
		events:   emitter,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
		log:      log.With().Str("component", "task_runner").Logger(),
	}
}

// SetClock overrides the time source
func (r *Runner) SetClock(now domain.Clock) {
	r.now = now
}

// Register adds task under its name
func (r *Runner) Register(task Task, policy Policy) {
	r.tasks[task.Name()] = registration{task: task, policy: policy}
}

// Names lists the registered tasks in order
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered
func (r *Runner) Has(name string) bool {
	_, ok := r.tasks[name]
	return ok
}

// Execute runs the named task. Scheduled triggers honour the task's window
// and once-per-day policy; manual triggers always run. Task failures are
// reported in the outcome; only an unknown task is an error.
func (r *Runner) Execute(ctx context.Context, name string, trigger config.Trigger) (*Outcome, error) {
	reg, ok := r.tasks[name]
	if !ok {
		err := fmt.Errorf("%w: %s (supported: %s)", ErrUnknownTask, name, strings.Join(r.Names(), ", "))
		r.log.Error().Err(err).Msg("Cannot execute task")
		r.alert(ctx, fmt.Sprintf("未知任务类型：%s（支持的任务：%s）", name, strings.Join(r.Names(), ", ")))
		return nil, err
	}

	start := r.now()
	runDate := domain.BeijingDate(start)
	out := &Outcome{Task: name, Trigger: trigger, Timestamp: start.In(domain.Beijing)}
	logger := r.log.With().Str("task", name).Str("trigger", string(trigger)).Logger()

	if trigger != config.TriggerManual {
		if reason, skip := r.gate(reg, runDate, start); skip {
			logger.Info().Str("reason", reason).Msg("Skipping scheduled task")
			out.Status = StatusSkipped
			out.Message = reason
			r.metrics.TaskRun(name, string(StatusSkipped))
			return out, nil
		}
	}

	logger.Info().Str("run_date", runDate).Msg("Task started")
	id, err := r.runs.Start(name, runDate, trigger, start)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record task start")
	}

	result, runErr := r.safeRun(ctx, reg.task)
	out.Result = result
	out.Duration = r.now().Sub(start).Seconds()

	switch {
	case runErr == nil:
		out.Status = StatusSuccess
		out.Message = "completed"
	case errors.Is(runErr, ErrNotDelivered):
		out.Status = StatusFailed
		out.Message = runErr.Error()
	default:
		out.Status = StatusError
		out.Message = runErr.Error()
	}

	if id > 0 {
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		if err := r.runs.Finish(id, out.Status, errMsg, r.now()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record task finish")
		}
	}

	r.metrics.TaskRun(name, string(out.Status))
	if r.events != nil {
		r.events.EmitTyped("scheduler", &events.TaskCompletedData{
			Task:     name,
			Trigger:  string(trigger),
			Status:   string(out.Status),
			Duration: out.Duration,
			Message:  out.Message,
		})
	}

	if out.Status == StatusError {
		logger.Error().Err(runErr).Msg("Task failed")
		r.alert(ctx, fmt.Sprintf("%s 任务执行失败\n• 错误: %s", name, runErr))
	} else {
		logger.Info().Str("status", string(out.Status)).Float64("duration", out.Duration).Msg("Task finished")
	}
	return out, nil
}

// gate decides whether a scheduled run is skipped
func (r *Runner) gate(reg registration, runDate string, now time.Time) (string, bool) {
	if w, ok := reg.task.(Windowed); ok && !w.InWindow(now) {
		return "outside the scheduled window", true
	}
	if !reg.policy.OncePerDay {
		return "", false
	}
	done, err := r.runs.Completed(reg.task.Name(), runDate)
	if err != nil {
		r.log.Warn().Err(err).Str("task", reg.task.Name()).Msg("Cannot check previous runs, running anyway")
		return "", false
	}
	if done {
		return "already completed today", true
	}
	return "", false
}

func (r *Runner) safeRun(ctx context.Context, task Task) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name(), p)
		}
	}()
	return task.Run(ctx)
}

func (r *Runner) alert(ctx context.Context, message string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, message, wecom.CategoryError)
}
