// Package sizing maps risk and market conditions to exposure and stop-loss levels.
package sizing

import (
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// Exposure bounds and adjustments
const (
	BaseExposure = 0.6
	MinExposure  = 0.2
	MaxExposure  = 0.8

	highRiskCut   = 0.3
	mediumRiskCut = 0.1
	bearCut       = 0.2
	bullBoost     = 0.1

	dampingStart = 0.10
	dampingSlope = 2.0
	dampingMax   = 0.30
)

// Stop-loss bounds and volatility regimes
const (
	MinStopLoss = 0.01
	MaxStopLoss = 0.15
	ATRPeriod   = 20

	highVolatility = 0.20
	lowVolatility  = 0.10
	widenFactor    = 1.2
	tightenFactor  = 0.8
)

// TargetExposure returns the target invested fraction for the risk level,
// regime and market volatility, within [MinExposure, MaxExposure]
func TargetExposure(level domain.RiskLevel, regime domain.Regime, volatility float64) float64 {
	exposure := BaseExposure

	switch level {
	case domain.RiskHigh:
		exposure -= highRiskCut
	case domain.RiskMedium:
		exposure -= mediumRiskCut
	}

	switch regime {
	case domain.RegimeBear:
		exposure -= bearCut
	case domain.RegimeBull:
		exposure += bullBoost
	}

	if formulas.IsFinite(volatility) {
		exposure *= 1 - formulas.Clamp((volatility-dampingStart)*dampingSlope, 0, dampingMax)
	}

	return formulas.Clamp(exposure, MinExposure, MaxExposure)
}

// StopLoss is the dynamic stop of one holding
type StopLoss struct {
	Fraction   float64 `json:"fraction"`
	Volatility float64 `json:"volatility"`
	ATR        float64 `json:"atr"` // 0 when fewer than ATRPeriod+1 bars
	Fallback   bool    `json:"fallback"`
}

// Sizer computes per-holding stop-loss levels
type Sizer struct {
	log zerolog.Logger
}

// NewSizer creates a new position sizer
func NewSizer(log zerolog.Logger) *Sizer {
	return &Sizer{
		log: log.With().Str("component", "position_sizer").Logger(),
	}
}

// DynamicStopLoss widens the bucket's stop in volatile markets and tightens
// it in quiet ones, bounded to [MinStopLoss, MaxStopLoss]. Without a usable
// latest price the bucket's static stop is returned.
func (s *Sizer) DynamicStopLoss(series domain.PriceSeries, params domain.BucketParams) StopLoss {
	last, ok := series.Last()
	if !ok || last.Close <= 0 || !formulas.IsFinite(last.Close) {
		s.log.Warn().Str("code", series.Code).Msg("No usable price for dynamic stop-loss, using static stop")
		return StopLoss{Fraction: params.StopLoss, Fallback: true}
	}

	closes := series.Closes()
	volatility := formulas.VolatilityFromPrices(closes)

	out := StopLoss{Volatility: volatility}
	if atr := formulas.CalculateATR(series.Highs(), series.Lows(), closes, ATRPeriod); atr != nil {
		out.ATR = *atr
	}

	distance := params.StopLoss * last.Close
	switch {
	case volatility > highVolatility:
		distance *= widenFactor
	case volatility < lowVolatility:
		distance *= tightenFactor
	}

	out.Fraction = formulas.Clamp(distance/last.Close, MinStopLoss, MaxStopLoss)

	s.log.Debug().
		Str("code", series.Code).
		Float64("volatility", volatility).
		Float64("atr", out.ATR).
		Float64("stop_loss", out.Fraction).
		Msg("Dynamic stop-loss computed")

	return out
}

// Triggered reports whether the return since entry breaches the stop
func Triggered(cost, price, stop float64) bool {
	if cost <= 0 {
		return false
	}
	return (price-cost)/cost <= -stop
}
