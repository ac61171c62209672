package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

func bar(day int, high, low, close float64) domain.PriceBar {
	return domain.PriceBar{
		Date:  time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC),
		Open:  close,
		High:  high,
		Low:   low,
		Close: close,
	}
}

func TestHoldingDetail(t *testing.T) {
	h := domain.Holding{
		Code:      "510300",
		Name:      "沪深300ETF",
		CostPrice: 10,
		EntryDate: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
	}
	series := domain.PriceSeries{Code: "510300", Bars: []domain.PriceBar{
		bar(3, 10.5, 9.5, 10.2),
		bar(4, 11, 10, 10.8),
	}}

	d := DetailFor(h, series)

	assert.Equal(t, 10.8, d.Latest)
	assert.InDelta(t, 0.08, d.Return(), 1e-9)
	assert.Equal(t, "• 持有510300 沪深300ETF【2024-05-06买入价10.00元，支撑位：9.68元，压力位：10.82元，收益率：8.00%】", d.String())
}

func TestHoldingDetail_NoPrices(t *testing.T) {
	d := DetailFor(domain.Holding{Code: "510300", CostPrice: 4}, domain.PriceSeries{Code: "510300"})

	assert.Equal(t, 4.0, d.Latest, "latest falls back to cost")
	assert.Zero(t, d.Return())
	assert.Equal(t, "• 持有510300【买入价4.00元，收益率：0.00%】", d.String())

	assert.Zero(t, HoldingDetail{Latest: 3}.Return(), "unknown cost")
}

func TestBucketMessage(t *testing.T) {
	plan := Plan{Bucket: domain.BucketGrowth, Lines: []string{LineNoAction, "• 风险提示: 当前风险水平 LOW"}}
	details := []HoldingDetail{{Code: "159915", Cost: 2, Latest: 2.2}}

	msg := BucketMessage(plan, details)

	assert.True(t, strings.HasPrefix(msg, Header+"\n"+Subtitle+"\n\n【成长仓】\n"+LineNoAction))
	assert.Contains(t, msg, "• 持有159915【买入价2.00元，收益率：10.00%】")
}

func TestOpportunityLines(t *testing.T) {
	assert.Equal(t, []string{"• 机会池中无ETF，无需关注"}, OpportunityLines(nil))

	lines := OpportunityLines([]Opportunity{{Code: "512880", Name: "证券ETF", Score: 72.34, FundSize: 8.5, AvgVolume: 3200}})
	assert.Equal(t, []string{
		"【机会池评估】",
		"• 重点关注以下接近达标但有潜力的ETF：",
		"  - 512880 证券ETF (评分: 72.3/100, 规模: 8.50亿, 流动性: 3200.00万)",
		"• 建议持续关注，当规模或流动性达标时可考虑纳入投资组合",
	}, lines)
}

func TestSummaryMessage(t *testing.T) {
	tests := []struct {
		level  domain.RiskLevel
		advice string
	}{
		{domain.RiskLow, "市场风险较低"},
		{domain.RiskMedium, "市场风险中等"},
		{domain.RiskHigh, "市场风险较高"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			risk := domain.RiskSnapshot{PortfolioVolatility: 0.12345, VaR1D: 0.0123, OverallLevel: tt.level, Alert: "无"}
			msg := SummaryMessage(nil, risk)

			assert.Contains(t, msg, "【机会发现与风险汇总】\n• 机会池中无ETF，无需关注")
			assert.Contains(t, msg, "• 组合波动率: 0.1235\n")
			assert.Contains(t, msg, "• 1日VaR: 0.0123\n")
			assert.Contains(t, msg, "• 综合风险水平: "+strings.ToUpper(string(tt.level)))
			assert.Contains(t, msg, "• 风险提示: 无\n")
			assert.Contains(t, msg, tt.advice)
		})
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "3.80", money(3.8))
	assert.Equal(t, "0.01", money(0.005))
	assert.Equal(t, "-1.25", money(-1.245))
}
