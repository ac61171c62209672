package scorers

import (
	"fmt"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// ReturnScorer maps the window return through a logistic curve so extreme
// moves saturate instead of extrapolating linearly
type ReturnScorer struct{}

// NewReturnScorer creates a new return scorer
func NewReturnScorer() *ReturnScorer {
	return &ReturnScorer{}
}

// Calculate returns logistic(return%, k=0.2, x0=2.5) × 150
func (rs *ReturnScorer) Calculate(window domain.PriceSeries) Result {
	closes := window.Closes()
	if len(closes) < 2 || closes[0] <= 0 {
		return fallback(NeutralReturn, fmt.Errorf("%w: no usable close range", domain.ErrInsufficientData))
	}

	returnPct := (closes[len(closes)-1]/closes[0] - 1) * 100
	return Result{
		Value:      formulas.Logistic(returnPct, 0.2, 2.5) * 150,
		Components: map[string]float64{"return_pct": returnPct},
	}
}

// SentimentScorer reads crowd interest from the 5-period volume change
type SentimentScorer struct{}

// NewSentimentScorer creates a new sentiment scorer
func NewSentimentScorer() *SentimentScorer {
	return &SentimentScorer{}
}

// Calculate returns 50 + logistic(volume change%, k=0.1, x0=0) × 100.
// Fewer than five observations score a flat 50.
func (ss *SentimentScorer) Calculate(window domain.PriceSeries) Result {
	volumes := window.Volumes()
	if len(volumes) < 5 {
		return Result{Value: NeutralSentiment}
	}

	base := volumes[len(volumes)-5]
	if base <= 0 {
		return fallback(NeutralSentiment, fmt.Errorf("%w: zero volume five periods ago", domain.ErrMissingColumn))
	}

	change := (volumes[len(volumes)-1]/base - 1) * 100
	return Result{
		Value:      formulas.Logistic(change, 0.1, 0)*100 + 50,
		Components: map[string]float64{"volume_change_pct": change},
	}
}
