package wecom

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
)

type recordingNotifier struct {
	mu         sync.Mutex
	messages   []string
	categories []Category
}

func (r *recordingNotifier) Notify(_ context.Context, message string, category Category) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.categories = append(r.categories, category)
	return true
}

func TestForwarder_DeliversFailureEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	manager := events.NewManager(zerolog.Nop())

	f := NewForwarder(notifier, zerolog.Nop())
	f.Attach(manager)
	f.Start(context.Background())

	manager.EmitTyped("scoring", &events.ComputationFailedData{Code: "510300", Factor: "risk", Error: "boom"})
	manager.EmitTyped("strategy", &events.RegimeClassifiedData{Benchmark: "510300", Regime: "bull"})
	manager.EmitError("risk", assert.AnError, map[string]interface{}{"operation": "monitor_risk"})
	f.Stop()

	require.Len(t, notifier.messages, 2)
	assert.Equal(t, []Category{CategoryError, CategoryError}, notifier.categories)
	assert.Equal(t, "模块 scoring: ETF 510300 的 risk 计算失败\n错误: boom", notifier.messages[0])
	assert.Contains(t, notifier.messages[1], "模块 risk 发生错误")
	assert.Contains(t, notifier.messages[1], "operation: monitor_risk")
}

func TestForwarder_DropsAfterStop(t *testing.T) {
	notifier := &recordingNotifier{}
	manager := events.NewManager(zerolog.Nop())

	f := NewForwarder(notifier, zerolog.Nop())
	f.Attach(manager)
	f.Start(context.Background())
	f.Stop()
	f.Stop()

	manager.EmitTyped("scoring", &events.ComputationFailedData{Code: "510300", Factor: "risk", Error: "late"})
	assert.Empty(t, notifier.messages)
}

func TestDescribe_ErrorContextIsSorted(t *testing.T) {
	e := events.Event{
		Type:   events.ErrorOccurred,
		Module: "strategy",
		Data: map[string]interface{}{
			"error":   "constraint failed",
			"context": map[string]interface{}{"run_id": "r1", "bucket": "stable"},
		},
	}

	assert.Equal(t, "模块 strategy 发生错误\n错误: constraint failed\nbucket: stable\nrun_id: r1", Describe(e))
	assert.Empty(t, Describe(events.Event{Type: events.TaskCompleted, Data: map[string]interface{}{}}))
}
