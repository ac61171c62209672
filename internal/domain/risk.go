package domain

import "time"

// RiskLevel is the overall portfolio risk classification
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskSnapshot is the output of one monitoring pass
type RiskSnapshot struct {
	ID                  string    `json:"id"`
	Time                time.Time `json:"time"`
	PortfolioVolatility float64   `json:"portfolio_volatility"`
	VaR1D               float64   `json:"var_1d"`
	MaxDrawdownWarning  float64   `json:"max_drawdown_warning"`
	LiquidityRisk       float64   `json:"liquidity_risk"`
	TrackingRisk        float64   `json:"tracking_risk"`
	CorrelationRisk     float64   `json:"correlation_risk"`
	RiskScore           float64   `json:"risk_score"`
	OverallLevel        RiskLevel `json:"overall_risk_level"`
	Alert               string    `json:"risk_alert"`
	Failed              bool      `json:"failed"`
}
