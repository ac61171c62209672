package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// Message framing
const (
	Header   = "【Karmy-Gold ETF仓位操作提示】"
	Subtitle = "（组合化投资，每仓位持有2-4只低相关性ETF）"

	// SupportWindow is the trailing range used for support and resistance
	SupportWindow = 20
)

// HoldingDetail is the per-holding block of a bucket message
type HoldingDetail struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	EntryDate  time.Time `json:"entry_date"`
	Cost       float64   `json:"cost"`
	Latest     float64   `json:"latest"`
	Support    float64   `json:"support"`
	Resistance float64   `json:"resistance"`
}

// DetailFor builds the detail of h from its price series. Without prices
// the latest price falls back to the cost.
func DetailFor(h domain.Holding, series domain.PriceSeries) HoldingDetail {
	d := HoldingDetail{
		Code:      h.Code,
		Name:      h.Name,
		EntryDate: h.EntryDate,
		Cost:      h.CostPrice,
		Latest:    h.CostPrice,
	}
	if last, ok := series.Last(); ok {
		d.Latest = last.Close
	}
	d.Support, d.Resistance = formulas.SupportResistance(series.Highs(), series.Lows(), SupportWindow)
	return d
}

// Return is the unrealised return since entry, 0 when the cost is unknown
func (d HoldingDetail) Return() float64 {
	if d.Cost <= 0 {
		return 0
	}
	return (d.Latest - d.Cost) / d.Cost
}

func (d HoldingDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "• 持有%s", d.Code)
	if d.Name != "" {
		b.WriteString(" " + d.Name)
	}
	b.WriteString("【")
	if !d.EntryDate.IsZero() {
		b.WriteString(d.EntryDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "买入价%s元", money(d.Cost))
	if d.Support > 0 && d.Resistance > 0 {
		fmt.Fprintf(&b, "，支撑位：%s元，压力位：%s元", money(d.Support), money(d.Resistance))
	}
	fmt.Fprintf(&b, "，收益率：%s】", percent(d.Return(), 2))
	return b.String()
}

// BucketMessage renders one bucket's suggestion and holdings
func BucketMessage(plan Plan, details []HoldingDetail) string {
	var b strings.Builder
	b.WriteString(Header + "\n")
	b.WriteString(Subtitle + "\n\n")
	fmt.Fprintf(&b, "【%s】\n", plan.Bucket.Label())
	b.WriteString(plan.Suggestion())
	b.WriteString("\n")

	for _, d := range details {
		b.WriteString("\n" + d.String() + "\n")
	}
	return b.String()
}

// OpportunityLines renders the opportunity pool section
func OpportunityLines(pool []Opportunity) []string {
	if len(pool) == 0 {
		return []string{"• 机会池中无ETF，无需关注"}
	}

	lines := []string{"【机会池评估】", "• 重点关注以下接近达标但有潜力的ETF："}
	for _, o := range pool {
		lines = append(lines, fmt.Sprintf("  - %s %s (评分: %.1f/100, 规模: %s亿, 流动性: %s万)",
			o.Code, o.Name, o.Score, money(o.FundSize), money(o.AvgVolume)))
	}
	return append(lines, "• 建议持续关注，当规模或流动性达标时可考虑纳入投资组合")
}

// Advice is the level-keyed investment advice
func Advice(level domain.RiskLevel) string {
	switch level {
	case domain.RiskLow:
		return "• 市场风险较低，可维持当前仓位策略，适当增加持仓比例"
	case domain.RiskMedium:
		return "• 市场风险中等，建议保持当前仓位，关注市场动向"
	default:
		return "• 市场风险较高，建议降低仓位比例，增加防御性资产"
	}
}

// SummaryMessage renders the opportunity and portfolio risk summary
func SummaryMessage(pool []Opportunity, risk domain.RiskSnapshot) string {
	var b strings.Builder
	b.WriteString(Header + "\n")
	b.WriteString(Subtitle + "\n\n")
	b.WriteString("【机会发现与风险汇总】\n")
	b.WriteString(strings.Join(OpportunityLines(pool), "\n"))
	b.WriteString("\n")

	b.WriteString("\n【全仓风险汇总】\n")
	fmt.Fprintf(&b, "• 组合波动率: %.4f\n", risk.PortfolioVolatility)
	fmt.Fprintf(&b, "• 1日VaR: %.4f\n", risk.VaR1D)
	fmt.Fprintf(&b, "• 最大回撤预警: %.4f\n", risk.MaxDrawdownWarning)
	fmt.Fprintf(&b, "• 流动性风险: %.4f\n", risk.LiquidityRisk)
	fmt.Fprintf(&b, "• 跟踪误差风险: %.4f\n", risk.TrackingRisk)
	fmt.Fprintf(&b, "• 相关性风险: %.4f\n", risk.CorrelationRisk)
	fmt.Fprintf(&b, "• 综合风险水平: %s\n", strings.ToUpper(string(risk.OverallLevel)))
	fmt.Fprintf(&b, "• 风险提示: %s\n", risk.Alert)

	b.WriteString("\n【投资建议】\n")
	b.WriteString(Advice(risk.OverallLevel) + "\n")
	return b.String()
}

// money renders an amount with two decimals, rounding half away from zero
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
