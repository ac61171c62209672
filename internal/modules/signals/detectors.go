package signals

import (
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// Detector periods
const (
	MAShortPeriod   = 5
	MALongPeriod    = 20
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	RSIPeriod       = 14
	RSIOversold     = 30.0
	RSIOverbought   = 70.0
	VolumePeriod    = 20
	VolumeSurge     = 1.2
	VolumeDry       = 0.8
	BollingerPeriod = 20
	BollingerStdDev = 2.0
	TrendPeriod     = 30
	NeutralTrend    = 0.5
)

// Cross is the state of a two-line crossover on the latest bar
type Cross string

const (
	CrossNone    Cross = "none"
	CrossBullish Cross = "bullish"
	CrossBearish Cross = "bearish"
)

// RSIZone classifies the latest RSI
type RSIZone string

const (
	ZoneNeutral    RSIZone = "neutral"
	ZoneOversold   RSIZone = "oversold"
	ZoneOverbought RSIZone = "overbought"
)

// VolumeState compares the latest volume with its average
type VolumeState string

const (
	VolumeNeutral VolumeState = "neutral"
	VolumeBullish VolumeState = "bullish"
	VolumeBearish VolumeState = "bearish"
)

// BandPosition locates the latest close against the Bollinger bands
type BandPosition string

const (
	BandMiddle BandPosition = "middle_band"
	BandLower  BandPosition = "lower_band"
	BandUpper  BandPosition = "upper_band"
)

// crossover compares two aligned series on their last two points. A bullish
// cross needs fast ≤ slow on the previous bar and fast > slow on the latest.
func crossover(fast, slow []float64) Cross {
	n := len(fast)
	if n < 2 || len(slow) != n {
		return CrossNone
	}
	prevFast, prevSlow := fast[n-2], slow[n-2]
	lastFast, lastSlow := fast[n-1], slow[n-1]

	switch {
	case prevFast <= prevSlow && lastFast > lastSlow:
		return CrossBullish
	case prevFast >= prevSlow && lastFast < lastSlow:
		return CrossBearish
	default:
		return CrossNone
	}
}

// MACross detects a strict crossover of the 5 and 20 period moving averages
func MACross(closes []float64) Cross {
	if len(closes) < MALongPeriod+1 {
		return CrossNone
	}
	short := formulas.SMASeries(closes, MAShortPeriod)
	long := formulas.SMASeries(closes, MALongPeriod)
	if short == nil || long == nil {
		return CrossNone
	}
	return crossover(short, long)
}

// MACDCross detects a strict crossover of the MACD line and its signal line
func MACDCross(closes []float64) Cross {
	macd, sig, ok := formulas.MACDSeries(closes, MACDFast, MACDSlow, MACDSignal)
	if !ok {
		return CrossNone
	}
	return crossover(macd, sig)
}

// RSISignal classifies the 14 period RSI. A window without any price change
// is neutral.
func RSISignal(closes []float64) RSIZone {
	if len(closes) < RSIPeriod+1 || pathLength(closes[len(closes)-RSIPeriod-1:]) == 0 {
		return ZoneNeutral
	}

	rsi := formulas.CalculateRSI(closes, RSIPeriod)
	switch {
	case rsi == nil:
		return ZoneNeutral
	case *rsi < RSIOversold:
		return ZoneOversold
	case *rsi > RSIOverbought:
		return ZoneOverbought
	default:
		return ZoneNeutral
	}
}

// VolumeSignal compares the latest volume with the 20 period average
func VolumeSignal(volumes []float64) VolumeState {
	avg := formulas.CalculateSMA(volumes, VolumePeriod)
	if avg == nil {
		return VolumeNeutral
	}
	latest := volumes[len(volumes)-1]
	switch {
	case latest > *avg*VolumeSurge:
		return VolumeBullish
	case latest < *avg*VolumeDry:
		return VolumeBearish
	default:
		return VolumeNeutral
	}
}

// BollingerSignal locates the latest close against 20 period, 2σ bands.
// Touching a band counts as reaching it.
func BollingerSignal(closes []float64) BandPosition {
	bands := formulas.CalculateBollingerBands(closes, BollingerPeriod, BollingerStdDev)
	if bands == nil {
		return BandMiddle
	}
	latest := closes[len(closes)-1]
	switch {
	case latest <= bands.Lower:
		return BandLower
	case latest >= bands.Upper:
		return BandUpper
	default:
		return BandMiddle
	}
}

// TrendStrength is the 30 period efficiency ratio, NeutralTrend when the
// series is shorter
func TrendStrength(closes []float64) float64 {
	er := formulas.EfficiencyRatio(closes, TrendPeriod)
	if er == nil {
		return NeutralTrend
	}
	return formulas.Clamp(*er, 0, 1)
}

func pathLength(values []float64) float64 {
	total := 0.0
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total
}
