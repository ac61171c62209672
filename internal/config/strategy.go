package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// RegimeThresholds drive the bull/bear/sideways classification
type RegimeThresholds struct {
	Window             int     `yaml:"window"`
	BullShortTrend     float64 `yaml:"bull_short_trend"`
	BullMidTrend       float64 `yaml:"bull_mid_trend"`
	BullMomentum       float64 `yaml:"bull_momentum"`
	BearShortTrend     float64 `yaml:"bear_short_trend"`
	BearMidTrend       float64 `yaml:"bear_mid_trend"`
	BearMomentum       float64 `yaml:"bear_momentum"`
	SidewaysVolatility float64 `yaml:"sideways_volatility"`
	SidewaysTrend      float64 `yaml:"sideways_trend"`
}

// TierThresholds screen the universe into a named tier.
// Zero values disable the corresponding check.
type TierThresholds struct {
	MinFundSize      float64  `yaml:"min_fund_size"`
	MinAvgVolume     float64  `yaml:"min_avg_volume"`
	MinListingDays   int      `yaml:"min_listing_days"`
	MaxListingDays   int      `yaml:"max_listing_days"`
	MaxTrackingError float64  `yaml:"max_tracking_error"`
	MinSizeGrowth    float64  `yaml:"min_size_growth"`
	Sectors          []string `yaml:"sectors"`
}

// RetentionDays configures the clean_data task
type RetentionDays struct {
	Prices  int `yaml:"prices"`
	Scores  int `yaml:"scores"`
	TaskRun int `yaml:"task_runs"`
}

// Strategy is the immutable parameter set shared by the engine components.
// Build it once with DefaultStrategy or LoadStrategy and pass it down.
type Strategy struct {
	Regime              RegimeThresholds                          `yaml:"regime"`
	BaseWeights         domain.Weights                            `yaml:"base_weights"`
	Buckets             map[domain.BucketType]domain.BucketParams `yaml:"-"`
	Tiers               map[domain.TierName]TierThresholds        `yaml:"-"`
	BullThresholdFactor float64                                   `yaml:"bull_threshold_factor"`
	BearThresholdFactor float64                                   `yaml:"bear_threshold_factor"`
	BearVolumeFloor     float64                                   `yaml:"bear_volume_floor"`
	SwitchScoreFloor    float64                                   `yaml:"switch_score_floor"`
	ExposureTolerance   float64                                   `yaml:"exposure_tolerance"`
	OpportunityPoolSize int                                       `yaml:"opportunity_pool_size"`
	Retention           RetentionDays                             `yaml:"retention"`
}

// DefaultStrategy returns the production parameter set
func DefaultStrategy() Strategy {
	return Strategy{
		Regime: RegimeThresholds{
			Window:             60,
			BullShortTrend:     0.05,
			BullMidTrend:       0.03,
			BullMomentum:       0.05,
			BearShortTrend:     -0.05,
			BearMidTrend:       -0.03,
			BearMomentum:       -0.05,
			SidewaysVolatility: 0.2,
			SidewaysTrend:      0.03,
		},
		BaseWeights: domain.Weights{
			Liquidity: 0.15,
			Risk:      0.25,
			Return:    0.20,
			Tracking:  0.20,
			Premium:   0.10,
			Stability: 0.10,
		},
		Buckets: map[domain.BucketType]domain.BucketParams{
			domain.BucketStable: {
				MinFundSize: 10, MinAvgVolume: 5000, MaxHoldings: 4, MinCorrelation: 0.7,
				MAPeriod: 20, ConfirmDays: 3, InitialPosition: 0.3, AddPositions: []float64{0.2, 0.1},
				StopLoss: 0.05, MaxPosition: 0.7, MaxDrawdownWarning: 0.10,
				RiskTier: domain.RiskLow, Tier: domain.TierBase,
			},
			domain.BucketAggressive: {
				MinFundSize: 2, MinAvgVolume: 1000, MaxHoldings: 3, MinCorrelation: 0.8,
				MAPeriod: 20, ConfirmDays: 2, InitialPosition: 0.2, AddPositions: []float64{0.15},
				StopLoss: 0.08, MaxPosition: 0.6, MaxDrawdownWarning: 0.15,
				RiskTier: domain.RiskMedium, Tier: domain.TierOpportunity,
			},
			domain.BucketArbitrage: {
				MinFundSize: 5, MinAvgVolume: 3000, MaxHoldings: 5, MinCorrelation: 0.6,
				MAPeriod: 10, ConfirmDays: 1, InitialPosition: 0.1, AddPositions: []float64{0.05},
				StopLoss: 0.02, MaxPosition: 0.3, MaxDrawdownWarning: 0.05,
				RiskTier: domain.RiskHigh, Tier: domain.TierBase,
			},
			domain.BucketGrowth: {
				MinFundSize: 0.5, MinAvgVolume: 300, MaxHoldings: 3, MinCorrelation: 0.75,
				MAPeriod: 10, ConfirmDays: 2, InitialPosition: 0.15, AddPositions: []float64{0.1},
				StopLoss: 0.10, MaxPosition: 0.4, MaxDrawdownWarning: 0.20,
				RiskTier: domain.RiskHigh, Tier: domain.TierGrowth,
			},
			domain.BucketSector: {
				MinFundSize: 3, MinAvgVolume: 800, MaxHoldings: 3, MinCorrelation: 0.85,
				MAPeriod: 20, ConfirmDays: 2, InitialPosition: 0.2, AddPositions: []float64{0.1},
				StopLoss: 0.07, MaxPosition: 0.5, MaxDrawdownWarning: 0.15,
				RiskTier: domain.RiskMedium, Tier: domain.TierSector,
			},
		},
		Tiers: map[domain.TierName]TierThresholds{
			domain.TierBase:        {MinFundSize: 10, MinAvgVolume: 5000, MinListingDays: 365, MaxTrackingError: 0.05},
			domain.TierOpportunity: {MinFundSize: 2, MinAvgVolume: 1000, MinListingDays: 180, MaxTrackingError: 0.08},
			domain.TierGrowth:      {MinFundSize: 0.5, MinAvgVolume: 300, MaxListingDays: 180, MinSizeGrowth: 0.3},
			domain.TierSector:      {MinFundSize: 3, MinAvgVolume: 800, Sectors: []string{"科技", "医药", "新能源"}},
		},
		BullThresholdFactor: 1.2,
		BearThresholdFactor: 0.8,
		BearVolumeFloor:     3000,
		SwitchScoreFloor:    60,
		ExposureTolerance:   0.05,
		OpportunityPoolSize: 3,
		Retention: RetentionDays{
			Prices:  365,
			Scores:  365,
			TaskRun: 7,
		},
	}
}

// strategyFile is the YAML layout. Buckets and tiers are decoded as nodes so a
// file can override single fields without restating the whole parameter set.
type strategyFile struct {
	Strategy `yaml:",inline"`
	Buckets  map[domain.BucketType]yaml.Node `yaml:"buckets"`
	Tiers    map[domain.TierName]yaml.Node   `yaml:"tiers"`
}

// LoadStrategy overlays the YAML file at path on DefaultStrategy.
// An empty path returns the defaults.
func LoadStrategy(path string) (Strategy, error) {
	s := DefaultStrategy()
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Strategy{}, fmt.Errorf("failed to read strategy file: %w", err)
	}

	return ParseStrategy(raw)
}

// ParseStrategy overlays YAML content on DefaultStrategy
func ParseStrategy(raw []byte) (Strategy, error) {
	file := strategyFile{Strategy: DefaultStrategy()}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Strategy{}, fmt.Errorf("failed to parse strategy file: %w", err)
	}

	s := file.Strategy
	s.Buckets = DefaultStrategy().Buckets
	s.Tiers = DefaultStrategy().Tiers

	for bucket, node := range file.Buckets {
		if !bucket.Valid() {
			return Strategy{}, fmt.Errorf("unknown bucket %q", bucket)
		}
		params := s.Buckets[bucket]
		if err := node.Decode(&params); err != nil {
			return Strategy{}, fmt.Errorf("bucket %s: %w", bucket, err)
		}
		s.Buckets[bucket] = params
	}

	for tier, node := range file.Tiers {
		thresholds, ok := s.Tiers[tier]
		if !ok {
			return Strategy{}, fmt.Errorf("unknown tier %q", tier)
		}
		if err := node.Decode(&thresholds); err != nil {
			return Strategy{}, fmt.Errorf("tier %s: %w", tier, err)
		}
		s.Tiers[tier] = thresholds
	}

	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// Validate rejects parameter sets the engine cannot run with
func (s Strategy) Validate() error {
	if s.Regime.Window < 30 {
		return fmt.Errorf("regime window must be at least 30, got %d", s.Regime.Window)
	}
	if s.BaseWeights.Sum() <= 0 {
		return fmt.Errorf("base weights must have a positive sum")
	}
	for _, bucket := range domain.AllBuckets {
		p, ok := s.Buckets[bucket]
		if !ok {
			return fmt.Errorf("missing parameters for bucket %s", bucket)
		}
		if p.MaxHoldings < 1 {
			return fmt.Errorf("bucket %s: max_holdings must be positive", bucket)
		}
		if p.StopLoss <= 0 || p.StopLoss >= 1 {
			return fmt.Errorf("bucket %s: stop_loss must be within (0, 1)", bucket)
		}
		if p.ConfirmDays < 1 {
			return fmt.Errorf("bucket %s: confirm_days must be positive", bucket)
		}
		if p.MinCorrelation < -1 || p.MinCorrelation > 1 {
			return fmt.Errorf("bucket %s: min_correlation must be within [-1, 1]", bucket)
		}
		if _, ok := s.Tiers[p.Tier]; !ok {
			return fmt.Errorf("bucket %s: unknown tier %q", bucket, p.Tier)
		}
	}
	return nil
}

// Bucket returns a copy of the bucket's parameters
func (s Strategy) Bucket(b domain.BucketType) (domain.BucketParams, bool) {
	p, ok := s.Buckets[b]
	if !ok {
		return domain.BucketParams{}, false
	}
	p.AddPositions = append([]float64(nil), p.AddPositions...)
	return p, true
}

// Tier returns a copy of the tier's thresholds
func (s Strategy) Tier(t domain.TierName) (TierThresholds, bool) {
	th, ok := s.Tiers[t]
	if !ok {
		return TierThresholds{}, false
	}
	th.Sectors = append([]string(nil), th.Sectors...)
	return th, true
}
