package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/thresholds"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
)

func TestOpportunityPool(t *testing.T) {
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	base, ok := config.DefaultStrategy().Tier(domain.TierBase)
	require.True(t, ok)

	profile := func(code string, size, volume float64, yearsListed int) thresholds.Profile {
		return thresholds.Profile{
			Code:          code,
			FundSize:      size,
			AvgVolume:     volume,
			ListingDate:   now.AddDate(-yearsListed, 0, 0),
			TrackingError: testingpkg.Ptr(0.01),
		}
	}

	ranked := []domain.Score{
		{Code: "A", Composite: 90, FundSize: 50, AvgVolume: 9000}, // passes the tier
		{Code: "B", Composite: 80, FundSize: 5, AvgVolume: 9000},  // small fund
		{Code: "C", Composite: 80, FundSize: 8, AvgVolume: 1000},  // small and thin, larger fund
		{Code: "D", Composite: 75, FundSize: 5, AvgVolume: 9000},  // too young as well
		{Code: "E", Composite: 70, FundSize: 50, AvgVolume: 100},  // thin volume
		{Code: "F", Composite: 50, FundSize: 5, AvgVolume: 9000},  // below min score
		{Code: "G", Composite: 65, FundSize: 1, AvgVolume: 100},   // no profile
		{Code: "H", Composite: 60, FundSize: 1, AvgVolume: 100},   // cut by size
	}
	profiles := map[string]thresholds.Profile{
		"A": profile("A", 50, 9000, 3),
		"B": profile("B", 5, 9000, 3),
		"C": profile("C", 8, 1000, 3),
		"D": profile("D", 5, 9000, 0),
		"E": profile("E", 50, 100, 3),
		"F": profile("F", 5, 9000, 3),
		"H": profile("H", 1, 100, 3),
	}
	entries := map[string]domain.CatalogueEntry{
		"B": testingpkg.NewCatalogueEntry("B", 5, 3, now),
		"C": testingpkg.NewCatalogueEntry("C", 8, 3, now),
	}

	pool := OpportunityPool(ranked, profiles, entries, base, 60, 3, now)

	codes := make([]string, len(pool))
	for i, o := range pool {
		codes[i] = o.Code
	}
	assert.Equal(t, []string{"C", "B", "E"}, codes, "ties broken by fundamental score")
	assert.Equal(t, []thresholds.Violation{thresholds.ViolationFundSize, thresholds.ViolationAvgVolume}, pool[0].Violations)
	assert.Greater(t, pool[0].Fundamental, pool[1].Fundamental)
}

func TestOpportunityPool_Empty(t *testing.T) {
	base, _ := config.DefaultStrategy().Tier(domain.TierBase)
	pool := OpportunityPool(nil, nil, nil, base, 60, 3, time.Now())

	assert.NotNil(t, pool)
	assert.Empty(t, pool)
}
