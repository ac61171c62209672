// Package signals turns a price series into a confirmed buy or sell signal.
package signals

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
)

// Type is the direction of a confirmed signal
type Type string

const (
	TypeNone Type = "none"
	TypeBuy  Type = "buy"
	TypeSell Type = "sell"
)

// Points awarded per detector
const (
	pointsMA        = 2
	pointsMACD      = 2
	pointsRSI       = 1
	pointsVolume    = 1
	pointsBollinger = 1
	pointsTrend     = 1

	strongTrend = 0.7
	weakTrend   = 0.3
)

// Components are the raw detector outputs
type Components struct {
	MA            Cross        `json:"ma_signal"`
	MACD          Cross        `json:"macd_signal"`
	RSI           RSIZone      `json:"rsi_signal"`
	Volume        VolumeState  `json:"volume_signal"`
	Bollinger     BandPosition `json:"bb_signal"`
	TrendStrength float64      `json:"trend_strength"`
}

// Signal is the aggregated result for one instrument
type Signal struct {
	Code         string     `json:"code"`
	Type         Type       `json:"signal_type"`
	Strength     int        `json:"signal_strength"`
	BuyStrength  int        `json:"buy_strength"`
	SellStrength int        `json:"sell_strength"`
	Components   Components `json:"components"`
}

// None is the signal returned when nothing could be computed
func None(code string) Signal {
	return Signal{
		Code: code,
		Type: TypeNone,
		Components: Components{
			MA:            CrossNone,
			MACD:          CrossNone,
			RSI:           ZoneNeutral,
			Volume:        VolumeNeutral,
			Bollinger:     BandMiddle,
			TrendStrength: NeutralTrend,
		},
	}
}

// ConfirmThreshold is the points a side needs to confirm a signal. Buckets
// confirming over several days demand more same-day confluence.
func ConfirmThreshold(confirmDays int) int {
	if confirmDays > 1 {
		return 4
	}
	return 3
}

// Aggregate scores detector outputs into buy and sell strengths and picks
// the confirmed side. Buy is checked first.
func Aggregate(code string, c Components, confirmDays int) Signal {
	sig := Signal{Code: code, Type: TypeNone, Components: c}

	switch c.MA {
	case CrossBullish:
		sig.BuyStrength += pointsMA
	case CrossBearish:
		sig.SellStrength += pointsMA
	}

	switch c.MACD {
	case CrossBullish:
		sig.BuyStrength += pointsMACD
	case CrossBearish:
		sig.SellStrength += pointsMACD
	}

	switch c.RSI {
	case ZoneOversold:
		sig.BuyStrength += pointsRSI
	case ZoneOverbought:
		sig.SellStrength += pointsRSI
	}

	switch c.Volume {
	case VolumeBullish:
		sig.BuyStrength += pointsVolume
	case VolumeBearish:
		sig.SellStrength += pointsVolume
	}

	switch c.Bollinger {
	case BandLower:
		sig.BuyStrength += pointsBollinger
	case BandUpper:
		sig.SellStrength += pointsBollinger
	}

	switch {
	case c.TrendStrength > strongTrend:
		sig.BuyStrength += pointsTrend
	case c.TrendStrength < weakTrend:
		sig.SellStrength += pointsTrend
	}

	threshold := ConfirmThreshold(confirmDays)
	switch {
	case sig.BuyStrength >= threshold:
		sig.Type = TypeBuy
		sig.Strength = sig.BuyStrength
	case sig.SellStrength >= threshold:
		sig.Type = TypeSell
		sig.Strength = sig.SellStrength
	}

	return sig
}

// EventEmitter receives computation failures
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Generator computes trading signals
type Generator struct {
	events EventEmitter
	log    zerolog.Logger
}

// NewGenerator creates a new signal generator. emitter may be nil.
func NewGenerator(emitter EventEmitter, log zerolog.Logger) *Generator {
	return &Generator{
		events: emitter,
		log:    log.With().Str("component", "signal_generator").Logger(),
	}
}

// Generate runs every detector on series and aggregates them with the
// bucket's confirmation threshold. A failing calculation yields None.
func (g *Generator) Generate(series domain.PriceSeries, params domain.BucketParams) (sig Signal) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("signal calculation panicked: %v", p)
			g.log.Error().Err(err).Str("code", series.Code).Msg("Signal generation failed")
			if g.events != nil {
				g.events.EmitTyped("signals", &events.ComputationFailedData{
					Code:   series.Code,
					Factor: "signals",
					Error:  err.Error(),
				})
			}
			sig = None(series.Code)
		}
	}()

	if series.Empty() {
		g.log.Warn().Str("code", series.Code).Msg("No price data for signal generation")
		return None(series.Code)
	}

	closes := series.Closes()
	components := Components{
		MA:            MACross(closes),
		MACD:          MACDCross(closes),
		RSI:           RSISignal(closes),
		Volume:        VolumeSignal(series.Volumes()),
		Bollinger:     BollingerSignal(closes),
		TrendStrength: TrendStrength(closes),
	}

	sig = Aggregate(series.Code, components, params.ConfirmDays)

	g.log.Debug().
		Str("code", series.Code).
		Str("signal", string(sig.Type)).
		Int("buy_strength", sig.BuyStrength).
		Int("sell_strength", sig.SellStrength).
		Str("ma", string(components.MA)).
		Str("macd", string(components.MACD)).
		Str("rsi", string(components.RSI)).
		Str("volume", string(components.Volume)).
		Str("bollinger", string(components.Bollinger)).
		Float64("trend", components.TrendStrength).
		Msg("Signals generated")

	return sig
}
