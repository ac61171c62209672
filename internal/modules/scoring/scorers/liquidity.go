package scorers

import (
	"fmt"
	"math"
	"strings"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// LiquidityScorer rates tradability from turnover amount, spread, book depth
// and turnover rate
type LiquidityScorer struct{}

// NewLiquidityScorer creates a new liquidity scorer
func NewLiquidityScorer() *LiquidityScorer {
	return &LiquidityScorer{}
}

// Calculate scores the window. Components:
//   - Volume (40%): mean amount in 万 × 0.01 + 50 (10M → 60, 50M → 100)
//   - Spread (30%): 100 - spread × 10000, default 60
//   - Depth (20%): log((bid + ask) / 2 + 1) × 20, default 50
//   - Turnover (10%): turnover rate × 1000, default 50
func (ls *LiquidityScorer) Calculate(window domain.PriceSeries) Result {
	var missing []string

	volumeScore := 50.0
	if window.Empty() {
		missing = append(missing, "amount")
	} else {
		volumeScore = formulas.ClampScore(formulas.Mean(window.Amounts())/10000*0.01 + 50)
	}

	spreadScore := 60.0
	if spreads, ok := window.Optional(func(b domain.PriceBar) *float64 { return b.Spread }); ok {
		spreadScore = math.Max(0, 100-formulas.Mean(spreads)*10000)
	} else {
		missing = append(missing, "spread")
	}

	depthScore := 50.0
	bids, hasBid := window.Optional(func(b domain.PriceBar) *float64 { return b.BidVolume })
	asks, hasAsk := window.Optional(func(b domain.PriceBar) *float64 { return b.AskVolume })
	bid, ask := 0.0, 0.0
	if hasBid {
		bid = formulas.Mean(bids)
	}
	if hasAsk {
		ask = formulas.Mean(asks)
	}
	if bid > 0 && ask > 0 {
		depthScore = formulas.ClampScore(math.Log((bid+ask)/2+1) * 20)
	} else {
		missing = append(missing, "depth")
	}

	turnoverScore := 50.0
	if turnover, ok := window.Optional(func(b domain.PriceBar) *float64 { return b.Turnover }); ok {
		turnoverScore = formulas.ClampScore(formulas.Mean(turnover) * 1000)
	} else {
		missing = append(missing, "turnover")
	}

	r := Result{
		Value: formulas.Round2(volumeScore*0.4 + spreadScore*0.3 + depthScore*0.2 + turnoverScore*0.1),
		Components: map[string]float64{
			"volume":   volumeScore,
			"spread":   spreadScore,
			"depth":    depthScore,
			"turnover": turnoverScore,
		},
	}
	if len(missing) > 0 {
		r.Fallback = true
		r.Err = fmt.Errorf("%w: %s", domain.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return r
}
