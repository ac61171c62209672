package market_regime

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// MinObservations is the shortest reference series the classifier accepts
const MinObservations = 30

// Statistics are the trend inputs of a classification
type Statistics struct {
	ShortTrend   float64 `json:"short_trend"`  // (latest - MA5) / MA5
	MidTrend     float64 `json:"mid_trend"`    // (latest - MA20) / MA20
	Momentum     float64 `json:"momentum"`     // latest / first - 1
	Volatility   float64 `json:"volatility"`   // annualized
	Observations int     `json:"observations"` // window length used
}

// Classification is the classifier output
type Classification struct {
	Regime domain.Regime `json:"regime"`
	Stats  Statistics    `json:"stats"`
	Rule   string        `json:"rule"` // which rule matched
}

// SeriesProvider loads a price series by code
type SeriesProvider interface {
	GetPriceSeries(code string) (domain.PriceSeries, error)
}

// Classifier labels the market as bull, bear or sideways from a reference series
type Classifier struct {
	thresholds config.RegimeThresholds
	log        zerolog.Logger
}

// NewClassifier creates a new regime classifier
func NewClassifier(thresholds config.RegimeThresholds, log zerolog.Logger) *Classifier {
	return &Classifier{
		thresholds: thresholds,
		log:        log.With().Str("component", "regime_classifier").Logger(),
	}
}

// ComputeStatistics derives the trend statistics from closes.
// Only the trailing window observations are used when window > 0.
func ComputeStatistics(closes []float64, window int) (Statistics, error) {
	if window > 0 && len(closes) > window {
		closes = closes[len(closes)-window:]
	}
	if len(closes) < MinObservations {
		return Statistics{}, fmt.Errorf("%w: %d observations, need %d",
			domain.ErrInsufficientData, len(closes), MinObservations)
	}

	latest := closes[len(closes)-1]
	ma5 := formulas.Mean(closes[len(closes)-5:])
	ma20 := formulas.Mean(closes[len(closes)-20:])
	first := closes[0]

	if ma5 <= 0 || ma20 <= 0 || first <= 0 {
		return Statistics{}, fmt.Errorf("non-positive prices in reference series")
	}

	stats := Statistics{
		ShortTrend:   (latest - ma5) / ma5,
		MidTrend:     (latest - ma20) / ma20,
		Momentum:     latest/first - 1,
		Volatility:   formulas.VolatilityFromPrices(closes),
		Observations: len(closes),
	}

	for _, v := range []float64{stats.ShortTrend, stats.MidTrend, stats.Momentum, stats.Volatility} {
		if !formulas.IsFinite(v) {
			return Statistics{}, fmt.Errorf("non-finite statistic in reference series")
		}
	}

	return stats, nil
}

// Classify labels closes. Any failure returns sideways.
func (c *Classifier) Classify(closes []float64) Classification {
	stats, err := ComputeStatistics(closes, c.thresholds.Window)
	if err != nil {
		c.log.Warn().Err(err).Msg("Regime statistics unavailable, defaulting to sideways")
		return Classification{Regime: domain.RegimeSideways, Rule: "fallback_error"}
	}

	result := Classification{Stats: stats}
	th := c.thresholds

	switch {
	case stats.ShortTrend > th.BullShortTrend && stats.MidTrend > th.BullMidTrend && stats.Momentum > th.BullMomentum:
		result.Regime, result.Rule = domain.RegimeBull, "bull"
	case stats.ShortTrend < th.BearShortTrend && stats.MidTrend < th.BearMidTrend && stats.Momentum < th.BearMomentum:
		result.Regime, result.Rule = domain.RegimeBear, "bear"
	case stats.Volatility > th.SidewaysVolatility && math.Abs(stats.ShortTrend) < th.SidewaysTrend:
		result.Regime, result.Rule = domain.RegimeSideways, "sideways"
	case stats.MidTrend > 0:
		result.Regime, result.Rule = domain.RegimeBull, "fallback_mid_trend"
	default:
		result.Regime, result.Rule = domain.RegimeBear, "fallback_mid_trend"
	}

	c.log.Debug().
		Str("regime", string(result.Regime)).
		Str("rule", result.Rule).
		Float64("short_trend", stats.ShortTrend).
		Float64("mid_trend", stats.MidTrend).
		Float64("momentum", stats.Momentum).
		Float64("volatility", stats.Volatility).
		Msg("Market regime classified")

	return result
}

// ClassifyBenchmark loads the benchmark series and classifies it.
// A missing or unreadable benchmark yields sideways.
func (c *Classifier) ClassifyBenchmark(provider SeriesProvider, code string) Classification {
	series, err := provider.GetPriceSeries(code)
	if err != nil {
		c.log.Warn().Err(err).Str("benchmark", code).Msg("Failed to load benchmark series")
		return Classification{Regime: domain.RegimeSideways, Rule: "fallback_error"}
	}
	return c.Classify(series.Closes())
}
