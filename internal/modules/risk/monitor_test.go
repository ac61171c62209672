package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

type stubPrices struct {
	series map[string]domain.PriceSeries
	err    map[string]error
	panics bool
}

func (s *stubPrices) GetPriceSeries(code string) (domain.PriceSeries, error) {
	if s.panics {
		panic("corrupt price cache")
	}
	if err := s.err[code]; err != nil {
		return domain.PriceSeries{}, err
	}
	return s.series[code], nil
}

type recordingEmitter struct {
	data []events.EventData
}

func (r *recordingEmitter) EmitTyped(module string, data events.EventData) {
	r.data = append(r.data, data)
}

var fixedNow = time.Date(2024, 6, 3, 6, 50, 0, 0, time.UTC)

func newMonitor(prices SeriesProvider, emitter EventEmitter) *Monitor {
	m := NewMonitor(prices, emitter, nil, zerolog.Nop())
	m.SetClock(func() time.Time { return fixedNow })
	return m
}

func TestAssess_EmptyHoldings(t *testing.T) {
	emitter := &recordingEmitter{}
	snapshot := newMonitor(&stubPrices{}, emitter).Assess([]domain.BucketHolding{{Bucket: domain.BucketStable}})

	assert.Equal(t, domain.RiskLow, snapshot.OverallLevel)
	assert.Equal(t, AlertNoHoldings, snapshot.Alert)
	assert.False(t, snapshot.Failed)
	assert.Zero(t, snapshot.PortfolioVolatility)
	assert.Zero(t, snapshot.VaR1D)
	assert.Zero(t, snapshot.MaxDrawdownWarning)
	assert.Zero(t, snapshot.LiquidityRisk)
	assert.Zero(t, snapshot.TrackingRisk)
	assert.Zero(t, snapshot.CorrelationRisk)
	assert.Zero(t, snapshot.RiskScore)
	assert.NotEmpty(t, snapshot.ID)
	assert.Equal(t, fixedNow, snapshot.Time)

	require.Len(t, emitter.data, 1)
	assert.Equal(t, &events.RiskAssessedData{Level: "low"}, emitter.data[0])
}

func TestAssess_FlatHoldings(t *testing.T) {
	prices := &stubPrices{series: map[string]domain.PriceSeries{
		"510300": testingpkg.SeriesFromCloses("510300", testingpkg.FlatCloses(4, 60)),
		"510500": testingpkg.SeriesFromCloses("510500", testingpkg.FlatCloses(6, 60)),
	}}
	holdings := []domain.BucketHolding{
		{Bucket: domain.BucketStable, Holdings: []domain.Holding{{Code: "510300"}, {Code: "510500"}}},
		{Bucket: domain.BucketArbitrage, Holdings: []domain.Holding{{Code: "510300"}}},
	}

	snapshot := newMonitor(prices, nil).Assess(holdings)

	assert.Zero(t, snapshot.PortfolioVolatility)
	assert.Zero(t, snapshot.VaR1D)
	assert.Zero(t, snapshot.MaxDrawdownWarning)
	// amount 50M → 100, spread 60, depth 50, turnover 50 → 73
	assert.InDelta(t, 0.27, snapshot.LiquidityRisk, 1e-9)
	assert.Equal(t, DefaultTrackingError, snapshot.TrackingRisk)
	assert.Zero(t, snapshot.CorrelationRisk)
	assert.InDelta(t, 0.15*0.27+0.15*0.05, snapshot.RiskScore, 1e-4)
	assert.Equal(t, domain.RiskLow, snapshot.OverallLevel)
	assert.Equal(t, AlertLow, snapshot.Alert)
}

func TestAssess_MissingDataUsesDefaults(t *testing.T) {
	prices := &stubPrices{err: map[string]error{"159915": errors.New("disk gone")}}

	snapshot := newMonitor(prices, nil).AssessCodes([]string{"159915", "159919"})

	assert.False(t, snapshot.Failed)
	assert.Equal(t, DefaultVolatility, snapshot.PortfolioVolatility)
	assert.InDelta(t, DefaultVolatility*1.645, snapshot.VaR1D, 1e-12)
	assert.Equal(t, DefaultMaxDrawdown, snapshot.MaxDrawdownWarning)
	assert.Equal(t, DefaultLiquidityRisk, snapshot.LiquidityRisk)
	assert.Equal(t, DefaultTrackingError, snapshot.TrackingRisk)
	assert.Zero(t, snapshot.CorrelationRisk)
}

func TestAssess_CorrelatedHoldings(t *testing.T) {
	walk := testingpkg.RandomWalkCloses(21, 10, 0, 0.03, 80)
	doubled := make([]float64, len(walk))
	for i, v := range walk {
		doubled[i] = 2 * v
	}
	prices := &stubPrices{series: map[string]domain.PriceSeries{
		"A": testingpkg.SeriesFromCloses("A", walk),
		"B": testingpkg.SeriesFromCloses("B", doubled),
	}}

	snapshot := newMonitor(prices, nil).AssessCodes([]string{"A", "B"})

	assert.InDelta(t, 1.0, snapshot.CorrelationRisk, 1e-9)
	assert.Greater(t, snapshot.PortfolioVolatility, 0.2)
	assert.InDelta(t, snapshot.PortfolioVolatility*1.645, snapshot.VaR1D, 1e-12)

	expected := CompositeScore(snapshot.PortfolioVolatility, snapshot.VaR1D, snapshot.MaxDrawdownWarning,
		snapshot.LiquidityRisk, snapshot.TrackingRisk, snapshot.CorrelationRisk)
	assert.InDelta(t, expected, snapshot.RiskScore, 1e-4)
	assert.Equal(t, LevelFor(snapshot.RiskScore), snapshot.OverallLevel)
}

func TestAssess_FailureIsHighRisk(t *testing.T) {
	tests := []struct {
		name   string
		prices SeriesProvider
	}{
		{"no provider", nil},
		{"provider panics", &stubPrices{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter := &recordingEmitter{}
			snapshot := newMonitor(tt.prices, emitter).AssessCodes([]string{"510300"})

			assert.Equal(t, domain.RiskHigh, snapshot.OverallLevel)
			assert.Equal(t, AlertFailure, snapshot.Alert)
			assert.True(t, snapshot.Failed)

			require.Len(t, emitter.data, 2)
			assert.IsType(t, &events.ErrorEventData{}, emitter.data[0])
			assert.Equal(t, &events.RiskAssessedData{Level: "high", Score: 1, Failed: true}, emitter.data[1])
		})
	}
}

func TestCompositeScoreAndLevel(t *testing.T) {
	tests := []struct {
		name    string
		metrics [6]float64
		score   float64
		level   domain.RiskLevel
	}{
		{"all zero", [6]float64{}, 0, domain.RiskLow},
		{"all one", [6]float64{1, 1, 1, 1, 1, 1}, 1, domain.RiskHigh},
		{"clamped above one", [6]float64{5, 5, 5, 5, 5, 5}, 1, domain.RiskHigh},
		{"clamped below zero", [6]float64{-1, -1, -1, -1, -1, -1}, 0, domain.RiskLow},
		{"exactly medium boundary", [6]float64{0.4, 0.4, 0.4, 0.4, 0.4, 0.4}, 0.4, domain.RiskLow},
		{"medium", [6]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, 0.5, domain.RiskMedium},
		{"weights", [6]float64{1, 0, 0, 0, 0, 0}, 0.2, domain.RiskLow},
		{"correlation weight", [6]float64{0, 0, 0, 0, 0, 1}, 0.1, domain.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.metrics
			score := CompositeScore(m[0], m[1], m[2], m[3], m[4], m[5])
			assert.InDelta(t, tt.score, score, 1e-9)
			assert.Equal(t, tt.level, LevelFor(formulas.Round4(score)))
		})
	}
}

func TestAlertFor(t *testing.T) {
	assert.Equal(t, AlertHigh, AlertFor(domain.RiskHigh))
	assert.Equal(t, AlertMedium, AlertFor(domain.RiskMedium))
	assert.Equal(t, AlertLow, AlertFor(domain.RiskLow))
}
