package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/clients/wecom"
	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
)

type sentMessage struct {
	message  string
	category wecom.Category
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	batches [][]string
	fail    bool
}

func (f *fakeNotifier) Notify(_ context.Context, message string, category wecom.Category) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{message, category})
	return !f.fail
}

func (f *fakeNotifier) NotifyAll(_ context.Context, messages []string, category wecom.Category) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, messages)
	for _, m := range messages {
		f.sent = append(f.sent, sentMessage{m, category})
	}
	return !f.fail && len(messages) > 0
}

type fakeTask struct {
	name   string
	result interface{}
	err    error
	panic  bool
	window *bool
	calls  int
}

func (f *fakeTask) Name() string { return f.name }

func (f *fakeTask) Run(context.Context) (interface{}, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.result, f.err
}

type windowedTask struct {
	fakeTask
	open bool
}

func (w *windowedTask) InWindow(time.Time) bool { return w.open }

// 2024-06-03 14:50 Beijing
var runnerNow = time.Date(2024, 6, 3, 6, 50, 0, 0, time.UTC)

type runnerFixture struct {
	runner    *Runner
	runs      *RunRepository
	notifier  *fakeNotifier
	metrics   *metrics.Metrics
	completed []events.Event
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t)
	t.Cleanup(cleanup)

	f := &runnerFixture{
		runs:     NewRunRepository(db.Conn(), zerolog.Nop()),
		notifier: &fakeNotifier{},
		metrics:  metrics.New(),
	}
	manager := events.NewManager(zerolog.Nop())
	manager.Subscribe(events.TaskCompleted, func(e events.Event) {
		f.completed = append(f.completed, e)
	})

	f.runner = NewRunner(f.runs, manager, f.notifier, f.metrics, zerolog.Nop())
	f.runner.SetClock(func() time.Time { return runnerNow })
	return f
}

func TestRunner_ExecuteSuccess(t *testing.T) {
	f := newRunnerFixture(t)
	task := &fakeTask{name: TaskCalculatePosition, result: "done"}
	f.runner.Register(task, Policy{OncePerDay: true})

	out, err := f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerSchedule)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "done", out.Result)
	assert.Equal(t, config.TriggerSchedule, out.Trigger)
	assert.Equal(t, domain.Beijing, out.Timestamp.Location())
	assert.Equal(t, 14, out.Timestamp.Hour())
	assert.Equal(t, 1, task.calls)

	done, err := f.runs.Completed(TaskCalculatePosition, "2024-06-03")
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, 1.0, testingpkg.MetricValue(t, f.metrics.TaskRuns.WithLabelValues(TaskCalculatePosition, "success")))

	require.Len(t, f.completed, 1)
	assert.Equal(t, "scheduler", f.completed[0].Module)
	assert.Equal(t, TaskCalculatePosition, f.completed[0].Data["task"])
	assert.Equal(t, "success", f.completed[0].Data["status"])
	assert.Empty(t, f.notifier.sent)
}

func TestRunner_OncePerDay(t *testing.T) {
	f := newRunnerFixture(t)
	task := &fakeTask{name: TaskCalculatePosition}
	f.runner.Register(task, Policy{OncePerDay: true})

	_, err := f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerSchedule)
	require.NoError(t, err)

	out, err := f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, "already completed today", out.Message)
	assert.Equal(t, 1, task.calls)

	out, err = f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status, "manual runs bypass the daily check")
	assert.Equal(t, 2, task.calls)

	f.runner.SetClock(func() time.Time { return runnerNow.Add(24 * time.Hour) })
	out, err = f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status, "next day runs again")
	assert.Equal(t, 1.0, testingpkg.MetricValue(t, f.metrics.TaskRuns.WithLabelValues(TaskCalculatePosition, "skipped")))
}

func TestRunner_UndeliveredRunIsRetried(t *testing.T) {
	f := newRunnerFixture(t)
	task := &fakeTask{name: TaskCalculatePosition, err: ErrNotDelivered}
	f.runner.Register(task, Policy{OncePerDay: true})

	out, err := f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, f.notifier.sent, "delivery failures are not re-alerted")

	task.err = nil
	out, err = f.runner.Execute(context.Background(), TaskCalculatePosition, config.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 2, task.calls)
}

func TestRunner_TaskErrorAlerts(t *testing.T) {
	tests := []struct {
		name    string
		task    *fakeTask
		message string
	}{
		{"error", &fakeTask{name: TaskUpdateCatalogue, err: errors.New("catalogue.csv missing")}, "catalogue.csv missing"},
		{"panic", &fakeTask{name: TaskUpdateCatalogue, panic: true}, "panicked: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunnerFixture(t)
			f.runner.Register(tt.task, Policy{})

			out, err := f.runner.Execute(context.Background(), TaskUpdateCatalogue, config.TriggerSchedule)
			require.NoError(t, err)
			assert.Equal(t, StatusError, out.Status)
			assert.Contains(t, out.Message, tt.message)

			require.Len(t, f.notifier.sent, 1)
			assert.Equal(t, wecom.CategoryError, f.notifier.sent[0].category)
			assert.Contains(t, f.notifier.sent[0].message, "update_etf_list 任务执行失败")

			runs, err := f.runs.Recent(1)
			require.NoError(t, err)
			assert.Equal(t, StatusError, runs[0].Status)
			assert.Contains(t, runs[0].Error, tt.message)
		})
	}
}

func TestRunner_Window(t *testing.T) {
	f := newRunnerFixture(t)
	task := &windowedTask{fakeTask: fakeTask{name: TaskCleanData}}
	f.runner.Register(task, Policy{})

	out, err := f.runner.Execute(context.Background(), TaskCleanData, config.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, "outside the scheduled window", out.Message)
	assert.Zero(t, task.calls)

	out, err = f.runner.Execute(context.Background(), TaskCleanData, config.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)

	task.open = true
	out, err = f.runner.Execute(context.Background(), TaskCleanData, config.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 2, task.calls)
}

func TestRunner_UnknownTask(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.Register(&fakeTask{name: TaskCleanData}, Policy{})
	f.runner.Register(&fakeTask{name: TaskCalculatePosition}, Policy{})

	out, err := f.runner.Execute(context.Background(), "rebalance", config.TriggerManual)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.Contains(t, err.Error(), "calculate_position, clean_data")

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, wecom.CategoryError, f.notifier.sent[0].category)
	assert.Contains(t, f.notifier.sent[0].message, "未知任务类型：rebalance")
	assert.Empty(t, f.completed)
}

func TestRunner_Names(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil, zerolog.Nop())
	r.Register(&fakeTask{name: "b"}, Policy{})
	r.Register(&fakeTask{name: "a"}, Policy{})

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
}
