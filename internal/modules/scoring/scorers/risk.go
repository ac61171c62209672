package scorers

import (
	"fmt"
	"math"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// RiskScorer rewards low volatility, high Sharpe and shallow drawdowns
type RiskScorer struct{}

// NewRiskScorer creates a new risk scorer
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Calculate scores the window. Components:
//   - Volatility (40%): 100 - annualized volatility × 100
//   - Sharpe (40%): Sharpe × 50
//   - Drawdown (20%): 100 - max drawdown × 500
func (rs *RiskScorer) Calculate(window domain.PriceSeries) Result {
	closes := window.Closes()
	if len(closes) < 2 {
		return fallback(NeutralRisk, fmt.Errorf("%w: risk needs 2 closes, got %d", domain.ErrInsufficientData, len(closes)))
	}

	volatility := formulas.Round4(formulas.VolatilityFromPrices(closes))
	sharpe := formulas.Round4(formulas.CalculateSharpeRatio(closes, 0))
	drawdown := formulas.Round4(formulas.MaxDrawdown(closes))

	volatilityScore := math.Max(0, 100-volatility*100)
	sharpeScore := formulas.ClampScore(sharpe * 50)
	drawdownScore := math.Max(0, 100-drawdown*500)

	return Result{
		Value: formulas.Round2(volatilityScore*0.4 + sharpeScore*0.4 + drawdownScore*0.2),
		Components: map[string]float64{
			"volatility":       volatility,
			"sharpe":           sharpe,
			"max_drawdown":     drawdown,
			"volatility_score": volatilityScore,
			"sharpe_score":     sharpeScore,
			"drawdown_score":   drawdownScore,
		},
	}
}
