package scorers

import (
	"fmt"
	"math"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// DefaultIndexCorrelation is assumed when no index closes are available
const DefaultIndexCorrelation = 0.8

// TrackingScorer rates how closely an ETF follows its index
type TrackingScorer struct{}

// NewTrackingScorer creates a new tracking scorer
func NewTrackingScorer() *TrackingScorer {
	return &TrackingScorer{}
}

// TrackingError returns the dispersion of the tracking error column, or of
// close - index_close when only index closes are present
func TrackingError(window domain.PriceSeries) (float64, error) {
	if te, ok := window.Optional(func(b domain.PriceBar) *float64 { return b.TrackingError }); ok {
		return formulas.StdDev(te), nil
	}

	var diffs []float64
	for _, b := range window.Bars {
		if b.IndexClose != nil {
			diffs = append(diffs, b.Close-*b.IndexClose)
		}
	}
	if len(diffs) == 0 {
		return 0, fmt.Errorf("%w: tracking_error and index_close", domain.ErrMissingColumn)
	}
	return formulas.StdDev(diffs), nil
}

// Calculate scores tracking quality:
//
//	(max(0, 100 - te × 1000) × 0.6 + min(corr × 100, 100) × 0.4) × (1 + 1/(1 + size/10))
//
// fundSize is in 亿. Without tracking data the score is 60.
func (ts *TrackingScorer) Calculate(window domain.PriceSeries, fundSize float64) Result {
	trackingError, err := TrackingError(window)
	if err != nil {
		return fallback(NeutralTracking, err)
	}

	correlation := DefaultIndexCorrelation
	var etfCloses, indexCloses []float64
	for _, b := range window.Bars {
		if b.IndexClose != nil {
			etfCloses = append(etfCloses, b.Close)
			indexCloses = append(indexCloses, *b.IndexClose)
		}
	}
	if len(indexCloses) >= 3 {
		correlation = formulas.Correlation(formulas.CalculateReturns(etfCloses), formulas.CalculateReturns(indexCloses))
	}

	sizeWeight := 1.0 / (1.0 + math.Max(fundSize, 0)/10.0)
	errorScore := math.Max(0, 100-trackingError*1000)
	correlationScore := math.Min(correlation*100, 100)

	return Result{
		Value: (errorScore*0.6 + correlationScore*0.4) * (1 + sizeWeight),
		Components: map[string]float64{
			"tracking_error": trackingError,
			"correlation":    correlation,
			"size_weight":    sizeWeight,
		},
	}
}
