// Package risk aggregates holding-level metrics into a portfolio risk level.
package risk

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/optimization"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring/scorers"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// Alert texts keyed by outcome
const (
	AlertNoHoldings = "无持仓，风险极低"
	AlertFailure    = "风险监控系统故障，请立即检查！"
	AlertHigh       = "⚠️ 高风险预警：建议大幅降低仓位或切换至防御性策略！"
	AlertMedium     = "⚠️ 中等风险：建议适当降低仓位或调整持仓结构！"
	AlertLow        = "✅ 风险水平正常：可维持当前仓位策略。"
)

// Defaults used when no holding has data for a metric
const (
	DefaultVolatility    = 0.1
	DefaultMaxDrawdown   = 0.1
	DefaultLiquidityRisk = 0.5
	DefaultTrackingError = 0.05
)

// Composite thresholds
const (
	HighThreshold   = 0.7
	MediumThreshold = 0.4

	varDays       = 1
	metricsWindow = 30
)

// metricWeights order: volatility, VaR, drawdown, liquidity, tracking, correlation
var metricWeights = [6]float64{0.20, 0.20, 0.20, 0.15, 0.15, 0.10}

// SeriesProvider loads price history for a holding
type SeriesProvider interface {
	GetPriceSeries(code string) (domain.PriceSeries, error)
}

// EventEmitter receives assessment results
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Monitor computes portfolio risk snapshots
type Monitor struct {
	prices    SeriesProvider
	liquidity *scorers.LiquidityScorer
	events    EventEmitter
	metrics   *metrics.Metrics
	now       domain.Clock
	log       zerolog.Logger
}

// NewMonitor creates a new risk monitor. emitter and m may be nil.
func NewMonitor(prices SeriesProvider, emitter EventEmitter, m *metrics.Metrics, log zerolog.Logger) *Monitor {
	return &Monitor{
		prices:    prices,
		liquidity: scorers.NewLiquidityScorer(),
		events:    emitter,
		metrics:   m,
		now:       time.Now,
		log:       log.With().Str("component", "risk_monitor").Logger(),
	}
}

// SetClock replaces the time source
func (m *Monitor) SetClock(now domain.Clock) {
	m.now = now
}

// Assess computes the snapshot for every code held across buckets
func (m *Monitor) Assess(holdings []domain.BucketHolding) domain.RiskSnapshot {
	var codes []string
	seen := make(map[string]bool)
	for _, bucket := range holdings {
		for _, code := range bucket.Codes() {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	return m.AssessCodes(codes)
}

// AssessCodes computes the snapshot for codes. Any failure yields a high
// risk snapshot with the failure alert.
func (m *Monitor) AssessCodes(codes []string) (snapshot domain.RiskSnapshot) {
	defer func() {
		if p := recover(); p != nil {
			snapshot = m.failed(fmt.Errorf("risk assessment panicked: %v", p))
		}
		m.publish(snapshot)
	}()

	if len(codes) == 0 {
		snapshot = m.newSnapshot()
		snapshot.OverallLevel = domain.RiskLow
		snapshot.Alert = AlertNoHoldings
		return snapshot
	}

	if m.prices == nil {
		return m.failed(fmt.Errorf("no price provider configured"))
	}

	series := make([]domain.PriceSeries, 0, len(codes))
	for _, code := range codes {
		s, err := m.prices.GetPriceSeries(code)
		if err != nil {
			m.log.Warn().Err(err).Str("code", code).Msg("Failed to load prices for risk monitoring")
			continue
		}
		if s.Empty() {
			m.log.Warn().Str("code", code).Msg("No price data for held ETF")
			continue
		}
		series = append(series, s)
	}

	snapshot = m.newSnapshot()
	snapshot.PortfolioVolatility = m.portfolioVolatility(series)
	snapshot.VaR1D = formulas.ValueAtRisk(snapshot.PortfolioVolatility, varDays)
	snapshot.MaxDrawdownWarning = m.meanDrawdown(series)
	snapshot.LiquidityRisk = m.liquidityRisk(series)
	snapshot.TrackingRisk = m.trackingRisk(series)
	snapshot.CorrelationRisk = m.correlationRisk(codes, series)

	snapshot.RiskScore = formulas.Round4(CompositeScore(
		snapshot.PortfolioVolatility,
		snapshot.VaR1D,
		snapshot.MaxDrawdownWarning,
		snapshot.LiquidityRisk,
		snapshot.TrackingRisk,
		snapshot.CorrelationRisk,
	))
	snapshot.OverallLevel = LevelFor(snapshot.RiskScore)
	snapshot.Alert = AlertFor(snapshot.OverallLevel)

	m.log.Info().
		Int("holdings", len(codes)).
		Int("with_data", len(series)).
		Float64("volatility", snapshot.PortfolioVolatility).
		Float64("var_1d", snapshot.VaR1D).
		Float64("max_drawdown", snapshot.MaxDrawdownWarning).
		Float64("liquidity_risk", snapshot.LiquidityRisk).
		Float64("tracking_risk", snapshot.TrackingRisk).
		Float64("correlation_risk", snapshot.CorrelationRisk).
		Float64("risk_score", snapshot.RiskScore).
		Str("level", string(snapshot.OverallLevel)).
		Msg("Portfolio risk assessed")

	return snapshot
}

// CompositeScore clamps each metric to [0, 1] and blends them with the
// fixed metric weights
func CompositeScore(volatility, var1d, drawdown, liquidity, tracking, correlation float64) float64 {
	values := [6]float64{volatility, var1d, drawdown, liquidity, tracking, correlation}
	total := 0.0
	for i, v := range values {
		if !formulas.IsFinite(v) {
			v = 0.5
		}
		total += formulas.Clamp(v, 0, 1) * metricWeights[i]
	}
	return total
}

// LevelFor maps a composite score to a risk level
func LevelFor(score float64) domain.RiskLevel {
	switch {
	case score > HighThreshold:
		return domain.RiskHigh
	case score > MediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// AlertFor returns the alert text of level
func AlertFor(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return AlertHigh
	case domain.RiskMedium:
		return AlertMedium
	default:
		return AlertLow
	}
}

func (m *Monitor) portfolioVolatility(series []domain.PriceSeries) float64 {
	if len(series) == 0 {
		return DefaultVolatility
	}
	vols := make([]float64, len(series))
	for i, s := range series {
		vols[i] = formulas.VolatilityFromPrices(s.Closes())
	}
	return formulas.Mean(vols)
}

func (m *Monitor) meanDrawdown(series []domain.PriceSeries) float64 {
	if len(series) == 0 {
		return DefaultMaxDrawdown
	}
	drawdowns := make([]float64, len(series))
	for i, s := range series {
		drawdowns[i] = formulas.MaxDrawdown(s.Closes())
	}
	return formulas.Mean(drawdowns)
}

func (m *Monitor) liquidityRisk(series []domain.PriceSeries) float64 {
	if len(series) == 0 {
		return DefaultLiquidityRisk
	}
	scores := make([]float64, len(series))
	for i, s := range series {
		scores[i] = scorers.Safe("liquidity", scorers.NeutralLiquidity, func() scorers.Result {
			return m.liquidity.Calculate(s.Tail(metricsWindow))
		}).Value
	}
	return 1 - formulas.Mean(scores)/100
}

func (m *Monitor) trackingRisk(series []domain.PriceSeries) float64 {
	var errs []float64
	for _, s := range series {
		te, err := scorers.TrackingError(s.Tail(metricsWindow))
		if err != nil {
			m.log.Debug().Err(err).Str("code", s.Code).Msg("No tracking error for held ETF")
			continue
		}
		errs = append(errs, te)
	}
	if len(errs) == 0 {
		return DefaultTrackingError
	}
	return formulas.Mean(errs)
}

func (m *Monitor) correlationRisk(codes []string, series []domain.PriceSeries) float64 {
	if len(codes) < 2 || len(series) < 2 {
		return 0
	}
	matrix, err := optimization.BuildCorrelationMatrix(series, optimization.DefaultLookbackDays)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to build holdings correlation matrix")
		return 0
	}
	return matrix.MeanPairwise(codes)
}

func (m *Monitor) newSnapshot() domain.RiskSnapshot {
	return domain.RiskSnapshot{
		ID:   uuid.New().String(),
		Time: m.now().UTC(),
	}
}

func (m *Monitor) failed(err error) domain.RiskSnapshot {
	m.log.Error().Err(err).Msg("Risk monitoring failed")
	snapshot := m.newSnapshot()
	snapshot.OverallLevel = domain.RiskHigh
	snapshot.Alert = AlertFailure
	snapshot.Failed = true
	snapshot.RiskScore = 1
	if m.events != nil {
		m.events.EmitTyped("risk", &events.ErrorEventData{
			Error:   err.Error(),
			Context: map[string]interface{}{"operation": "monitor_risk"},
		})
	}
	return snapshot
}

func (m *Monitor) publish(snapshot domain.RiskSnapshot) {
	m.metrics.SetRiskScore(snapshot.RiskScore)
	if m.events != nil {
		m.events.EmitTyped("risk", &events.RiskAssessedData{
			Level:  string(snapshot.OverallLevel),
			Score:  snapshot.RiskScore,
			Failed: snapshot.Failed,
		})
	}
}
