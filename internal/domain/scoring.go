package domain

import "time"

// SubScores holds the six 0-100 factor scores of an instrument
type SubScores struct {
	Liquidity float64 `json:"liquidity"`
	Risk      float64 `json:"risk"`
	Return    float64 `json:"return"`
	Sentiment float64 `json:"sentiment"`
	Tracking  float64 `json:"tracking"`
	Stability float64 `json:"stability"`
}

// Weights are the factor weights of the composite score.
// Premium weights the sentiment sub-score.
type Weights struct {
	Liquidity float64 `json:"liquidity" yaml:"liquidity"`
	Risk      float64 `json:"risk" yaml:"risk"`
	Return    float64 `json:"return" yaml:"return"`
	Tracking  float64 `json:"tracking" yaml:"tracking"`
	Premium   float64 `json:"premium" yaml:"premium"`
	Stability float64 `json:"stability" yaml:"stability"`
}

// Sum returns the total of all six weights
func (w Weights) Sum() float64 {
	return w.Liquidity + w.Risk + w.Return + w.Tracking + w.Premium + w.Stability
}

// Normalize divides each weight by the total. A non-positive total
// returns the weights unchanged.
func (w Weights) Normalize() Weights {
	total := w.Sum()
	if total <= 0 {
		return w
	}
	return Weights{
		Liquidity: w.Liquidity / total,
		Risk:      w.Risk / total,
		Return:    w.Return / total,
		Tracking:  w.Tracking / total,
		Premium:   w.Premium / total,
		Stability: w.Stability / total,
	}
}

// Apply computes Σ sub_score × weight
func (w Weights) Apply(s SubScores) float64 {
	return s.Liquidity*w.Liquidity +
		s.Risk*w.Risk +
		s.Return*w.Return +
		s.Tracking*w.Tracking +
		s.Sentiment*w.Premium +
		s.Stability*w.Stability
}

// Score is the scoring result for one instrument
type Score struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Composite   float64   `json:"composite_score"`
	FundSize    float64   `json:"fund_size"`
	ListingDate time.Time `json:"listing_date"`
	AvgVolume   float64   `json:"avg_volume"` // 万元
	Volatility  float64   `json:"volatility"`
	Components  SubScores `json:"components"`
	Degraded    []string  `json:"degraded,omitempty"` // factors that fell back to defaults
	Rank        int       `json:"rank"`
}

// ScoreRecord is an immutable score-history row
type ScoreRecord struct {
	Date  time.Time `json:"date"`
	Code  string    `json:"code"`
	Name  string    `json:"name"`
	Score float64   `json:"score"`
	Rank  int       `json:"rank"`
}
