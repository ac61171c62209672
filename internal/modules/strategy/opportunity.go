package strategy

import (
	"sort"
	"time"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring/scorers"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/thresholds"
)

// Opportunity is an instrument that scores well but misses the base tier's
// size or volume floor
type Opportunity struct {
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Score       float64                `json:"score"`
	Fundamental float64                `json:"fundamental"`
	FundSize    float64                `json:"fund_size"`
	AvgVolume   float64                `json:"avg_volume"`
	Violations  []thresholds.Violation `json:"violations"`
}

// OpportunityPool ranks the near misses by composite score, then by
// fundamental score, and keeps the best size of them
func OpportunityPool(
	ranked []domain.Score,
	profiles map[string]thresholds.Profile,
	entries map[string]domain.CatalogueEntry,
	base config.TierThresholds,
	minScore float64,
	size int,
	now time.Time,
) []Opportunity {
	pool := make([]Opportunity, 0)
	for _, s := range ranked {
		if s.Composite < minScore {
			continue
		}
		profile, ok := profiles[s.Code]
		if !ok {
			continue
		}
		violations := thresholds.Check(base, profile, now)
		if !thresholds.OnlySizeOrVolume(violations) {
			continue
		}

		entry, ok := entries[s.Code]
		if !ok {
			entry = domain.CatalogueEntry{Code: s.Code, Name: s.Name, FundSize: s.FundSize, ListingDate: s.ListingDate}
		}
		pool = append(pool, Opportunity{
			Code:        s.Code,
			Name:        s.Name,
			Score:       s.Composite,
			Fundamental: scorers.FundamentalScore(entry, now),
			FundSize:    s.FundSize,
			AvgVolume:   s.AvgVolume,
			Violations:  violations,
		})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		return pool[i].Fundamental > pool[j].Fundamental
	})

	if size > 0 && len(pool) > size {
		pool = pool[:size]
	}
	return pool
}
