package scorers

import (
	"fmt"
	"math"
	"time"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// StabilityScorer rates fund size growth and how steady the size has been
type StabilityScorer struct{}

// NewStabilityScorer creates a new stability scorer
func NewStabilityScorer() *StabilityScorer {
	return &StabilityScorer{}
}

// Calculate scores a chronological fund size history (亿):
//   - Growth (40%): (last - first) / first × 100
//   - Steadiness (60%): 100 - population CV × 500
//
// An empty history scores 50.
func (ss *StabilityScorer) Calculate(sizeHistory []float64) Result {
	if len(sizeHistory) == 0 {
		return fallback(NeutralStability, fmt.Errorf("%w: size history", domain.ErrMissingColumn))
	}
	if sizeHistory[0] <= 0 {
		return fallback(NeutralStability, fmt.Errorf("first size observation is %v", sizeHistory[0]))
	}

	growth := (sizeHistory[len(sizeHistory)-1] - sizeHistory[0]) / sizeHistory[0]
	cv := formulas.CoefficientOfVariation(sizeHistory)

	growthScore := formulas.ClampScore(growth * 100)
	steadinessScore := math.Max(0, 100-cv*500)

	return Result{
		Value: growthScore*0.4 + steadinessScore*0.6,
		Components: map[string]float64{
			"growth":     growth,
			"size_cv":    cv,
			"steadiness": steadinessScore,
		},
	}
}

// SizeGrowth returns (last - first) / first, ok=false if undefined
func SizeGrowth(sizeHistory []float64) (float64, bool) {
	if len(sizeHistory) < 2 || sizeHistory[0] <= 0 {
		return 0, false
	}
	return (sizeHistory[len(sizeHistory)-1] - sizeHistory[0]) / sizeHistory[0], true
}

// FundamentalScore blends fund size and age; it breaks ties in the
// opportunity pool.
//
//	size score = size × 0.4 + 50 (clamped)
//	age score  = years × 10 + 40 (clamped), 50 when the listing date is unknown
func FundamentalScore(entry domain.CatalogueEntry, now time.Time) float64 {
	sizeScore := formulas.ClampScore(entry.FundSize*0.4 + 50)

	ageScore := 50.0
	if !entry.ListingDate.IsZero() {
		years := now.Sub(entry.ListingDate).Hours() / 24 / 365
		ageScore = formulas.ClampScore(years*10 + 40)
	}

	return formulas.Round2(sizeScore*0.6 + ageScore*0.4)
}
