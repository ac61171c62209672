package formulas

import (
	"math"
)

// AnnualizedReturn compounds the window's total return to a yearly rate:
//
//	(last / first) ^ (252 / n) - 1
//
// where n is the number of observations. Returns 0 for fewer than two
// observations or a non-positive first price.
func AnnualizedReturn(prices []float64) float64 {
	n := len(prices)
	if n < 2 || prices[0] <= 0 {
		return 0
	}
	ratio := prices[n-1] / prices[0]
	if ratio <= 0 {
		return -1
	}
	return math.Pow(ratio, float64(TradingDaysPerYear)/float64(n)) - 1
}

// CalculateSharpeRatio calculates the annualized Sharpe ratio from a price window
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Annualized Return - Risk-free Rate) / Annualized Volatility
//
// Returns 0 when volatility is zero.
func CalculateSharpeRatio(prices []float64, riskFreeRate float64) float64 {
	volatility := VolatilityFromPrices(prices)
	if volatility <= 0 {
		return 0
	}
	return (AnnualizedReturn(prices) - riskFreeRate) / volatility
}

// ValueAtRisk is the parametric VaR for an annualized volatility:
// volatility × z × sqrt(days). z = 1.645 for 95% confidence.
func ValueAtRisk(volatility float64, days int) float64 {
	if days < 1 {
		days = 1
	}
	return volatility * 1.645 * math.Sqrt(float64(days))
}
