package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
)

func TestScheduler_AddTask(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.Register(&fakeTask{name: TaskCleanData}, Policy{})
	s := New(f.runner, zerolog.Nop())

	require.NoError(t, s.AddTask("0 15 1 * * *", TaskCleanData))
	assert.Len(t, s.cron.Entries(), 1)

	err := s.AddTask("0 15 1 * * *", "rebalance")
	assert.ErrorIs(t, err, ErrUnknownTask)

	err = s.AddTask("not a schedule", TaskCleanData)
	assert.Error(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_AddSchedulesSkipsUnregistered(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.Register(&fakeTask{name: TaskCalculatePosition}, Policy{OncePerDay: true})
	f.runner.Register(&fakeTask{name: TaskCleanData}, Policy{})
	s := New(f.runner, zerolog.Nop())

	require.NoError(t, s.AddSchedules(DefaultSchedules))
	assert.Len(t, s.cron.Entries(), 2)
}

func TestDefaultSchedulesParse(t *testing.T) {
	f := newRunnerFixture(t)
	for _, sc := range DefaultSchedules {
		f.runner.Register(&fakeTask{name: sc.Task}, Policy{})
	}
	s := New(f.runner, zerolog.Nop())

	require.NoError(t, s.AddSchedules(DefaultSchedules))
	assert.Len(t, s.cron.Entries(), len(DefaultSchedules))
}

func TestScheduler_RunNowIsManual(t *testing.T) {
	f := newRunnerFixture(t)
	task := &windowedTask{fakeTask: fakeTask{name: TaskCleanData}}
	f.runner.Register(task, Policy{})
	s := New(f.runner, zerolog.Nop())

	out, err := s.RunNow(context.Background(), TaskCleanData)
	require.NoError(t, err)
	assert.Equal(t, config.TriggerManual, out.Trigger)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, task.calls)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newRunnerFixture(t)
	s := New(f.runner, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	assert.Equal(t, ctx, s.context())
	s.Stop()
}
