package formulas

// MaxDrawdown returns the largest peak-to-trough decline as a positive fraction.
// Non-positive prices are skipped when tracking the peak.
func MaxDrawdown(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := prices[0]

	for _, price := range prices {
		if price > peak {
			peak = price
		}
		if peak > 0 {
			drawdown := (peak - price) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// SupportResistance derives levels from the high/low range of the trailing window:
// mid ± range × 0.382. Returns zeros when the window is empty.
func SupportResistance(highs, lows []float64, window int) (support, resistance float64) {
	n := len(highs)
	if n == 0 || len(lows) != n {
		return 0, 0
	}
	start := 0
	if window > 0 && n > window {
		start = n - window
	}

	high := highs[start]
	low := lows[start]
	for i := start; i < n; i++ {
		if highs[i] > high {
			high = highs[i]
		}
		if lows[i] < low {
			low = lows[i]
		}
	}

	mid := (high + low) / 2
	span := (high - low) * 0.382
	return mid - span, mid + span
}
