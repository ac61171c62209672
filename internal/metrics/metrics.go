// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const namespace = "karmy"

// Metrics holds every collector on a private registry so tests can build
// as many instances as they like
type Metrics struct {
	registry *prometheus.Registry

	ScoringDuration   prometheus.Histogram
	InstrumentsScored prometheus.Counter
	ScoringFailures   *prometheus.CounterVec
	Regime            *prometheus.GaugeVec
	RiskScore         prometheus.Gauge
	Notifications     *prometheus.CounterVec
	TaskRuns          *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time spent scoring the full universe.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		InstrumentsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instruments_scored_total",
			Help:      "Instruments that received a composite score.",
		}),
		ScoringFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_failures_total",
			Help:      "Factor calculations that fell back to a neutral value, by factor.",
		}, []string{"factor"}),
		Regime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_regime",
			Help:      "1 for the currently classified regime, 0 otherwise.",
		}, []string{"regime"}),
		RiskScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_risk_score",
			Help:      "Latest composite portfolio risk score (0-1).",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Webhook deliveries by result.",
		}, []string{"result"}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Task executions by task and status.",
		}, []string{"task", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScoringDuration,
		m.InstrumentsScored,
		m.ScoringFailures,
		m.Regime,
		m.RiskScore,
		m.Notifications,
		m.TaskRuns,
	)

	return m
}

// Registry returns the registry backing the /metrics endpoint
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScoring records one universe scoring pass
func (m *Metrics) ObserveScoring(elapsed time.Duration, scored int) {
	if m == nil {
		return
	}
	m.ScoringDuration.Observe(elapsed.Seconds())
	m.InstrumentsScored.Add(float64(scored))
}

// ScoringFailed counts a factor fallback caused by a computation failure
func (m *Metrics) ScoringFailed(factor string) {
	if m == nil {
		return
	}
	m.ScoringFailures.WithLabelValues(factor).Inc()
}

// SetRegime marks r as the active regime
func (m *Metrics) SetRegime(r domain.Regime) {
	if m == nil {
		return
	}
	for _, known := range []domain.Regime{domain.RegimeBull, domain.RegimeBear, domain.RegimeSideways} {
		v := 0.0
		if known == r {
			v = 1
		}
		m.Regime.WithLabelValues(string(known)).Set(v)
	}
}

// SetRiskScore publishes the latest composite risk score
func (m *Metrics) SetRiskScore(score float64) {
	if m == nil {
		return
	}
	m.RiskScore.Set(score)
}

// NotificationSent counts a webhook delivery outcome
func (m *Metrics) NotificationSent(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

// TaskRun counts a task execution
func (m *Metrics) TaskRun(task, status string) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(task, status).Inc()
}
