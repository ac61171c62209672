package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualisation factor for daily series
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// VolatilityFromPrices converts closes to returns and annualizes their stdev
func VolatilityFromPrices(prices []float64) float64 {
	return AnnualizedVolatility(CalculateReturns(prices))
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
// A zero previous price yields a zero return for that step.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// Correlation calculates the Pearson correlation coefficient between two datasets.
// Degenerate inputs (length mismatch, fewer than two points, zero variance) return 0.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// CorrelationMatrix builds the Pearson correlation matrix for equally long
// series, one per column. Zero-variance columns get 0 off-diagonal entries
// and a unit diagonal.
func CorrelationMatrix(series [][]float64) (*mat.SymDense, error) {
	n := len(series)
	if n == 0 {
		return nil, fmt.Errorf("no series provided")
	}
	rows := len(series[0])
	for i, s := range series {
		if len(s) != rows {
			return nil, fmt.Errorf("series %d has length %d, expected %d", i, len(s), rows)
		}
	}

	out := mat.NewSymDense(n, nil)
	if rows < 2 {
		for i := 0; i < n; i++ {
			out.SetSym(i, i, 1)
		}
		return out, nil
	}

	data := mat.NewDense(rows, n, nil)
	for j, s := range series {
		for i, v := range s {
			data.Set(i, j, v)
		}
	}
	stat.CorrelationMatrix(out, data, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := out.At(i, j)
			switch {
			case i == j:
				v = 1
			case math.IsNaN(v):
				v = 0
			default:
				v = Clamp(v, -1, 1)
			}
			out.SetSym(i, j, v)
		}
	}

	return out, nil
}

// CoefficientOfVariation returns population stdev / mean, 0 when the mean is 0
func CoefficientOfVariation(data []float64) float64 {
	m := Mean(data)
	if m == 0 {
		return 0
	}
	return stat.PopStdDev(data, nil) / m
}
