package domain

import "time"

// BucketType identifies a strategy bucket
type BucketType string

const (
	BucketStable     BucketType = "stable"
	BucketAggressive BucketType = "aggressive"
	BucketArbitrage  BucketType = "arbitrage"
	BucketGrowth     BucketType = "growth"
	BucketSector     BucketType = "sector"
)

// AllBuckets lists every bucket in processing order
var AllBuckets = []BucketType{BucketStable, BucketAggressive, BucketArbitrage, BucketGrowth, BucketSector}

// Label returns the display name used in notifications and logs
func (b BucketType) Label() string {
	switch b {
	case BucketStable:
		return "稳健仓"
	case BucketAggressive:
		return "激进仓"
	case BucketArbitrage:
		return "套利仓"
	case BucketGrowth:
		return "成长仓"
	case BucketSector:
		return "行业仓"
	default:
		return string(b)
	}
}

// Valid reports whether b is a known bucket
func (b BucketType) Valid() bool {
	for _, known := range AllBuckets {
		if b == known {
			return true
		}
	}
	return false
}

// TierName identifies a universe screening tier
type TierName string

const (
	TierBase        TierName = "base"
	TierOpportunity TierName = "opportunity"
	TierGrowth      TierName = "growth"
	TierSector      TierName = "sector"
)

// BucketParams is the static parameter set of a bucket
type BucketParams struct {
	MinFundSize        float64   `yaml:"min_fund_size" json:"min_fund_size"`
	MinAvgVolume       float64   `yaml:"min_avg_volume" json:"min_avg_volume"`
	MaxHoldings        int       `yaml:"max_holdings" json:"max_holdings"`
	MinCorrelation     float64   `yaml:"min_correlation" json:"min_correlation"` // max admissible pairwise correlation
	MAPeriod           int       `yaml:"ma_period" json:"ma_period"`
	ConfirmDays        int       `yaml:"confirm_days" json:"confirm_days"`
	InitialPosition    float64   `yaml:"initial_position" json:"initial_position"`
	AddPositions       []float64 `yaml:"add_positions" json:"add_positions"`
	StopLoss           float64   `yaml:"stop_loss" json:"stop_loss"`
	MaxPosition        float64   `yaml:"max_position" json:"max_position"`
	MaxDrawdownWarning float64   `yaml:"max_drawdown_warning" json:"max_drawdown_warning"`
	RiskTier           RiskLevel `yaml:"risk_tier" json:"risk_tier"`
	Tier               TierName  `yaml:"tier" json:"tier"`
}

// Holding is one position inside a bucket
type Holding struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CostPrice float64   `json:"cost_price"`
	EntryDate time.Time `json:"entry_date"`
	Quantity  float64   `json:"quantity"`
	Weight    float64   `json:"weight"` // fraction of total capital
}

// BucketHolding is the full set of positions of a bucket
type BucketHolding struct {
	Bucket   BucketType `json:"bucket"`
	Holdings []Holding  `json:"holdings"`
}

// Codes returns the held codes in order
func (b BucketHolding) Codes() []string {
	codes := make([]string, len(b.Holdings))
	for i, h := range b.Holdings {
		codes[i] = h.Code
	}
	return codes
}

// Find returns the holding for code
func (b BucketHolding) Find(code string) (Holding, bool) {
	for _, h := range b.Holdings {
		if h.Code == code {
			return h, true
		}
	}
	return Holding{}, false
}

// TotalWeight is the invested fraction of the bucket
func (b BucketHolding) TotalWeight() float64 {
	total := 0.0
	for _, h := range b.Holdings {
		total += h.Weight
	}
	return total
}

// ActionType is the kind of an intended trade
type ActionType string

const (
	ActionBuy          ActionType = "buy"
	ActionSell         ActionType = "sell"
	ActionAdd          ActionType = "add"
	ActionReduce       ActionType = "reduce"
	ActionStopLossSell ActionType = "stop_loss_sell"
)

// Label returns the display name of the action
func (a ActionType) Label() string {
	switch a {
	case ActionBuy:
		return "买入"
	case ActionSell:
		return "卖出"
	case ActionAdd:
		return "加仓"
	case ActionReduce:
		return "减仓"
	case ActionStopLossSell:
		return "止损卖出"
	default:
		return string(a)
	}
}

// Quantity descriptors recorded with trade actions
const (
	QuantityAll      = "全部"
	QuantityByWeight = "按权重"
	QuantityPartial  = "部分"
)

// TradeAction is an immutable record of an intended action
type TradeAction struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	TimeUTC     time.Time  `json:"time_utc"`
	TimeBeijing time.Time  `json:"time_beijing"`
	Bucket      BucketType `json:"bucket"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Price       float64    `json:"price"`
	Quantity    string     `json:"quantity"`
	Action      ActionType `json:"action"`
	Note        string     `json:"note"`
}
