package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// BollingerBands represents Bollinger Bands values
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// SMASeries returns the simple moving average series, aligned with the input.
// Entries before the first full window are zero (talib lookback).
// Returns nil if there are fewer values than the period.
func SMASeries(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	return talib.Sma(values, period)
}

// CalculateSMA returns the latest simple moving average, nil if insufficient data
func CalculateSMA(values []float64, period int) *float64 {
	series := SMASeries(values, period)
	if series == nil {
		return nil
	}
	result := series[len(series)-1]
	return &result
}

// MACDSeries calculates the MACD line and its signal line
//
//	MACD   = EMA(fast) - EMA(slow)
//	Signal = EMA(MACD, signal)
//
// The first valid index is slow+signal-2. Returns ok=false when the input is
// too short to produce two valid points.
func MACDSeries(closes []float64, fast, slow, signal int) (macd, sig []float64, ok bool) {
	if len(closes) < slow+signal {
		return nil, nil, false
	}
	macd, sig, _ = talib.Macd(closes, fast, slow, signal)
	return macd, sig, true
}

// CalculateRSI calculates the Relative Strength Index (Wilder smoothing)
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Returns nil if there are fewer than length+1 closes.
func CalculateRSI(closes []float64, length int) *float64 {
	if length < 1 || len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)

	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// CalculateBollingerBands calculates Bollinger Bands
//
//	Middle Band = N-day SMA
//	Upper Band = Middle + (k × std deviation)
//	Lower Band = Middle - (k × std deviation)
//
// Returns nil if insufficient data.
func CalculateBollingerBands(closes []float64, length int, stdDevMultiplier float64) *BollingerBands {
	if length < 2 || len(closes) < length {
		return nil
	}

	// MAType 0 = SMA
	upper, middle, lower := talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)

	if len(upper) > 0 && !isNaN(upper[len(upper)-1]) {
		return &BollingerBands{
			Upper:  upper[len(upper)-1],
			Middle: middle[len(middle)-1],
			Lower:  lower[len(lower)-1],
		}
	}

	return nil
}

// CalculateATR returns the latest Average True Range, nil if insufficient data
func CalculateATR(highs, lows, closes []float64, period int) *float64 {
	n := len(closes)
	if period < 1 || n <= period || len(highs) != n || len(lows) != n {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, period)

	if len(atr) > 0 && !isNaN(atr[len(atr)-1]) {
		result := atr[len(atr)-1]
		return &result
	}

	return nil
}

// EfficiencyRatio measures directional efficiency over the trailing window of
// period closes:
//
//	|close[last] - close[first]| / Σ|close[i] - close[i-1]|
//
// 1 means a straight-line move, values near 0 mean noise. Returns nil if there
// are fewer than period closes; a window with no movement returns 0.
func EfficiencyRatio(closes []float64, period int) *float64 {
	if period < 2 || len(closes) < period {
		return nil
	}

	window := closes[len(closes)-period:]
	net := math.Abs(window[len(window)-1] - window[0])

	path := 0.0
	for i := 1; i < len(window); i++ {
		path += math.Abs(window[i] - window[i-1])
	}

	result := 0.0
	if path > 0 {
		result = math.Min(net/path, 1)
	}
	return &result
}
