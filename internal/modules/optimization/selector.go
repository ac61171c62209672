package optimization

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// FallbackVolatility replaces missing or non-positive volatilities before inversion
const FallbackVolatility = 0.1

// Member is one selected instrument
type Member struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Volatility float64 `json:"volatility"`
	Weight     float64 `json:"weight"`
}

// Portfolio is the selection result for one bucket
type Portfolio struct {
	Bucket  domain.BucketType `json:"bucket"`
	Members []Member          `json:"members"`
}

// Codes returns the selected codes in selection order
func (p Portfolio) Codes() []string {
	codes := make([]string, len(p.Members))
	for i, m := range p.Members {
		codes[i] = m.Code
	}
	return codes
}

// Contains reports whether code was selected
func (p Portfolio) Contains(code string) bool {
	for _, m := range p.Members {
		if m.Code == code {
			return true
		}
	}
	return false
}

// Weights returns the member weights keyed by code
func (p Portfolio) Weights() map[string]float64 {
	out := make(map[string]float64, len(p.Members))
	for _, m := range p.Members {
		out[m.Code] = m.Weight
	}
	return out
}

// Correlations looks up the pairwise correlation of two codes
type Correlations interface {
	Between(a, b string) (float64, bool)
}

// Selector builds diversified bucket portfolios from ranked candidates
type Selector struct {
	log zerolog.Logger
}

// NewSelector creates a new portfolio selector
func NewSelector(log zerolog.Logger) *Selector {
	return &Selector{
		log: log.With().Str("component", "portfolio_selector").Logger(),
	}
}

// Select greedily takes candidates by descending score, admitting each one
// whose correlation with every member already selected is at most
// params.MinCorrelation, until params.MaxHoldings are held. Pairs the
// correlation source does not cover are admitted. The result is greedy and
// not globally optimal; there is no backtracking.
func (s *Selector) Select(bucket domain.BucketType, params domain.BucketParams, candidates []domain.Score, corr Correlations) Portfolio {
	portfolio := Portfolio{Bucket: bucket, Members: []Member{}}
	if len(candidates) == 0 {
		s.log.Warn().Str("bucket", string(bucket)).Msg("No candidates to select from")
		return portfolio
	}

	ranked := make([]domain.Score, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Composite > ranked[j].Composite
	})

	maxHoldings := params.MaxHoldings
	if maxHoldings < 1 {
		maxHoldings = 1
	}

	selected := make([]domain.Score, 0, maxHoldings)
	for _, cand := range ranked {
		if len(selected) >= maxHoldings {
			break
		}
		if conflict, with, value := s.conflicts(cand.Code, selected, params.MinCorrelation, corr); conflict {
			s.log.Debug().
				Str("bucket", string(bucket)).
				Str("code", cand.Code).
				Str("with", with).
				Float64("correlation", value).
				Msg("Candidate rejected for correlation")
			continue
		}
		selected = append(selected, cand)
	}

	vols := make([]float64, len(selected))
	for i, sc := range selected {
		vols[i] = sc.Volatility
	}
	weights := RiskParityWeights(vols)

	for i, sc := range selected {
		portfolio.Members = append(portfolio.Members, Member{
			Code:       sc.Code,
			Name:       sc.Name,
			Score:      sc.Composite,
			Volatility: sc.Volatility,
			Weight:     weights[i],
		})
	}

	s.log.Info().
		Str("bucket", string(bucket)).
		Int("candidates", len(candidates)).
		Int("selected", len(portfolio.Members)).
		Strs("codes", portfolio.Codes()).
		Msg("Portfolio selected")

	return portfolio
}

func (s *Selector) conflicts(code string, selected []domain.Score, threshold float64, corr Correlations) (bool, string, float64) {
	if corr == nil {
		return false, "", 0
	}
	for _, member := range selected {
		if member.Code == code {
			return true, member.Code, 1
		}
		if v, ok := corr.Between(code, member.Code); ok && v > threshold {
			return true, member.Code, v
		}
	}
	return false, "", 0
}

// RiskParityWeights returns inverse-volatility weights summing to 1.
// Non-positive or non-finite volatilities are replaced by FallbackVolatility.
func RiskParityWeights(volatilities []float64) []float64 {
	if len(volatilities) == 0 {
		return []float64{}
	}

	inverse := make([]float64, len(volatilities))
	total := 0.0
	for i, v := range volatilities {
		if !formulas.IsFinite(v) || v <= 0 {
			v = FallbackVolatility
		}
		inverse[i] = 1 / v
		total += inverse[i]
	}

	for i := range inverse {
		inverse[i] /= total
	}
	return inverse
}
