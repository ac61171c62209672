// Package scorers provides the factor scorers behind the composite ETF score.
package scorers

import (
	"errors"
	"fmt"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// Neutral values substituted when a factor cannot be computed
const (
	NeutralLiquidity = 50.0
	NeutralRisk      = 50.0
	NeutralReturn    = 50.0
	NeutralSentiment = 50.0
	NeutralTracking  = 60.0
	NeutralStability = 50.0
)

// Result is the outcome of one factor calculation.
//
// Fallback marks a value that is fully or partly a neutral default. Err
// carries the cause: a wrapped domain.ErrMissingColumn or
// domain.ErrInsufficientData for missing data, anything else for a
// computation failure.
type Result struct {
	Value      float64            `json:"value"`
	Components map[string]float64 `json:"components,omitempty"`
	Fallback   bool               `json:"fallback"`
	Err        error              `json:"-"`
}

// MissingData reports whether the fallback was caused by absent input
// rather than a computation failure
func (r Result) MissingData() bool {
	return errors.Is(r.Err, domain.ErrMissingColumn) || errors.Is(r.Err, domain.ErrInsufficientData)
}

// Failed reports whether the result hides a computation failure
func (r Result) Failed() bool {
	return r.Err != nil && !r.MissingData()
}

func fallback(value float64, err error) Result {
	return Result{Value: value, Fallback: true, Err: err}
}

// Safe runs calc and turns panics or non-finite output into the neutral
// value. The returned value is always clamped to [0, 100].
func Safe(name string, neutral float64, calc func() Result) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			r = fallback(neutral, fmt.Errorf("%s score panicked: %v", name, p))
		}
	}()

	r = calc()
	if !formulas.IsFinite(r.Value) {
		return fallback(neutral, fmt.Errorf("%s score is not finite", name))
	}
	r.Value = formulas.ClampScore(r.Value)
	return r
}
