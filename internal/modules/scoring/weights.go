// Package scoring computes the composite ETF score and ranks the universe.
package scoring

import (
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// AdjustWeights shifts the base weights for the regime and renormalizes
// them to sum to 1.
//
//	bear:     risk +0.10, return -0.05, premium +0.05
//	bull:     return +0.05, risk -0.05, tracking -0.05
//	sideways: unchanged
func AdjustWeights(base domain.Weights, regime domain.Regime) domain.Weights {
	w := base

	switch regime {
	case domain.RegimeBear:
		w.Risk += 0.10
		w.Return -= 0.05
		w.Premium += 0.05
	case domain.RegimeBull:
		w.Return += 0.05
		w.Risk -= 0.05
		w.Tracking -= 0.05
	}

	return w.Normalize()
}
