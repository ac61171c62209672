package wecom

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
)

// ForwardQueueSize bounds the alerts waiting for delivery
const ForwardQueueSize = 64

// Notifier delivers a formatted notification
type Notifier interface {
	Notify(ctx context.Context, message string, category Category) bool
}

// Forwarder turns failure events into error notifications. Delivery runs on
// its own goroutine so emitters never wait on the webhook.
type Forwarder struct {
	notifier Notifier
	queue    chan string
	wg       sync.WaitGroup
	once     sync.Once
	log      zerolog.Logger
}

// NewForwarder creates a forwarder delivering through n
func NewForwarder(n Notifier, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		notifier: n,
		queue:    make(chan string, ForwardQueueSize),
		log:      log.With().Str("component", "wecom_forwarder").Logger(),
	}
}

// Attach subscribes to the failure events of m
func (f *Forwarder) Attach(m *events.Manager) {
	m.Subscribe(events.ComputationFailed, f.handle)
	m.Subscribe(events.ErrorOccurred, f.handle)
}

// Start delivers queued alerts until Stop
func (f *Forwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for msg := range f.queue {
			f.notifier.Notify(ctx, msg, CategoryError)
		}
	}()
}

// Stop closes the queue and waits for pending alerts to be delivered
func (f *Forwarder) Stop() {
	f.once.Do(func() { close(f.queue) })
	f.wg.Wait()
}

func (f *Forwarder) handle(e events.Event) {
	msg := Describe(e)
	if msg == "" {
		return
	}
	defer func() {
		// send on a closed queue after Stop
		if recover() != nil {
			f.log.Warn().Str("event_type", string(e.Type)).Msg("Forwarder stopped, alert dropped")
		}
	}()
	select {
	case f.queue <- msg:
	default:
		f.log.Warn().Str("event_type", string(e.Type)).Msg("Alert queue full, alert dropped")
	}
}

// Describe renders a failure event as notification text, empty for other
// event types
func Describe(e events.Event) string {
	switch data := e.GetTypedData().(type) {
	case *events.ComputationFailedData:
		return fmt.Sprintf("模块 %s: ETF %s 的 %s 计算失败\n错误: %s", e.Module, data.Code, data.Factor, data.Error)
	case *events.ErrorEventData:
		var b strings.Builder
		fmt.Fprintf(&b, "模块 %s 发生错误\n错误: %s", e.Module, data.Error)
		keys := make([]string, 0, len(data.Context))
		for k := range data.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %v", k, data.Context[k])
		}
		return b.String()
	default:
		return ""
	}
}
