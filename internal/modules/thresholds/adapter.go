// Package thresholds adapts universe screening thresholds to the market regime
// and splits the universe into tiers.
package thresholds

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// Violation names a failed screening check
type Violation string

const (
	ViolationFundSize      Violation = "fund_size"
	ViolationAvgVolume     Violation = "avg_volume"
	ViolationListingAge    Violation = "listing_age"
	ViolationTrackingError Violation = "tracking_error"
	ViolationSizeGrowth    Violation = "size_growth"
	ViolationSector        Violation = "sector"
)

// Profile is the screening view of one instrument
type Profile struct {
	Code          string
	FundSize      float64 // 亿
	AvgVolume     float64 // 万
	ListingDate   time.Time
	Sector        string
	TrackingError *float64 // nil when unknown
	SizeGrowth    *float64 // nil when no size history
}

// Adapter applies regime-dependent thresholds
type Adapter struct {
	strategy config.Strategy
	log      zerolog.Logger
}

// NewAdapter creates a new threshold adapter
func NewAdapter(strategy config.Strategy, log zerolog.Logger) *Adapter {
	return &Adapter{
		strategy: strategy,
		log:      log.With().Str("component", "threshold_adapter").Logger(),
	}
}

// DynamicThresholds tightens size and volume floors in a bull market and
// relaxes them in a bear market, never letting the volume floor drop below
// the bear liquidity floor. Sideways returns base unchanged.
func (a *Adapter) DynamicThresholds(base config.TierThresholds, regime domain.Regime) config.TierThresholds {
	th := base
	th.Sectors = append([]string(nil), base.Sectors...)

	switch regime {
	case domain.RegimeBull:
		th.MinFundSize *= a.strategy.BullThresholdFactor
		th.MinAvgVolume *= a.strategy.BullThresholdFactor
	case domain.RegimeBear:
		th.MinFundSize *= a.strategy.BearThresholdFactor
		th.MinAvgVolume *= a.strategy.BearThresholdFactor
		th.MinAvgVolume = math.Max(th.MinAvgVolume, a.strategy.BearVolumeFloor)
	}

	return th
}

// DynamicParams applies DynamicThresholds to the size and volume floors of a
// base tier bucket. Buckets on the fixed tiers keep their static floors.
func (a *Adapter) DynamicParams(params domain.BucketParams, regime domain.Regime) domain.BucketParams {
	out := params
	out.AddPositions = append([]float64(nil), params.AddPositions...)
	if params.Tier != domain.TierBase {
		return out
	}

	th := a.DynamicThresholds(config.TierThresholds{
		MinFundSize:  params.MinFundSize,
		MinAvgVolume: params.MinAvgVolume,
	}, regime)
	out.MinFundSize = th.MinFundSize
	out.MinAvgVolume = th.MinAvgVolume
	return out
}

// TierThresholds returns the thresholds of tier for this pass. Only the base
// tier follows the regime; the other tiers are fixed.
func (a *Adapter) TierThresholds(tier domain.TierName, regime domain.Regime) (config.TierThresholds, bool) {
	th, ok := a.strategy.Tier(tier)
	if !ok {
		return config.TierThresholds{}, false
	}
	if tier == domain.TierBase {
		th = a.DynamicThresholds(th, regime)
	}
	return th, true
}

// Check returns every threshold p fails; an empty result means p passes
func Check(th config.TierThresholds, p Profile, now time.Time) []Violation {
	var violations []Violation

	if th.MinFundSize > 0 && p.FundSize < th.MinFundSize {
		violations = append(violations, ViolationFundSize)
	}
	if th.MinAvgVolume > 0 && p.AvgVolume < th.MinAvgVolume {
		violations = append(violations, ViolationAvgVolume)
	}

	// unknown listing dates count as zero days
	days := domain.CatalogueEntry{ListingDate: p.ListingDate}.ListingDays(now)
	if th.MinListingDays > 0 && days < th.MinListingDays {
		violations = append(violations, ViolationListingAge)
	}
	if th.MaxListingDays > 0 && days > th.MaxListingDays {
		violations = append(violations, ViolationListingAge)
	}

	if th.MaxTrackingError > 0 && p.TrackingError != nil && *p.TrackingError > th.MaxTrackingError {
		violations = append(violations, ViolationTrackingError)
	}
	if th.MinSizeGrowth > 0 && p.SizeGrowth != nil && *p.SizeGrowth < th.MinSizeGrowth {
		violations = append(violations, ViolationSizeGrowth)
	}

	if len(th.Sectors) > 0 && !contains(th.Sectors, p.Sector) {
		violations = append(violations, ViolationSector)
	}

	return violations
}

// Admits reports whether p qualifies for bucket in regime: it must pass the
// bucket's tier and the bucket's own size and volume floors, both as
// adjusted for regime
func (a *Adapter) Admits(bucket domain.BucketType, regime domain.Regime, p Profile, now time.Time) (bool, []Violation) {
	base, ok := a.strategy.Bucket(bucket)
	if !ok {
		return false, nil
	}
	params := a.DynamicParams(base, regime)
	th, ok := a.TierThresholds(params.Tier, regime)
	if !ok {
		return false, nil
	}

	violations := Check(th, p, now)
	violations = append(violations, Check(config.TierThresholds{
		MinFundSize:  params.MinFundSize,
		MinAvgVolume: params.MinAvgVolume,
	}, p, now)...)

	return len(violations) == 0, dedupe(violations)
}

// Filter keeps the profiles admitted to bucket, preserving order
func (a *Adapter) Filter(bucket domain.BucketType, regime domain.Regime, profiles []Profile, now time.Time) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if ok, violations := a.Admits(bucket, regime, p, now); ok {
			out = append(out, p)
		} else {
			a.log.Debug().
				Str("bucket", string(bucket)).
				Str("code", p.Code).
				Interface("violations", violations).
				Msg("Filtered out of bucket universe")
		}
	}

	a.log.Info().
		Str("bucket", string(bucket)).
		Str("regime", string(regime)).
		Int("candidates", len(profiles)).
		Int("admitted", len(out)).
		Msg("Bucket universe screened")

	return out
}

// OnlySizeOrVolume reports whether the violations are limited to the fund
// size and volume floors, the opportunity pool criterion
func OnlySizeOrVolume(violations []Violation) bool {
	if len(violations) == 0 {
		return false
	}
	for _, v := range violations {
		if v != ViolationFundSize && v != ViolationAvgVolume {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func dedupe(violations []Violation) []Violation {
	seen := make(map[Violation]bool, len(violations))
	out := violations[:0]
	for _, v := range violations {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
