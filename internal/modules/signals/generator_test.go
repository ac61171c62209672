package signals

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
)

type recordingEmitter struct {
	data []events.EventData
}

func (r *recordingEmitter) EmitTyped(module string, data events.EventData) {
	r.data = append(r.data, data)
}

// flatThen is a flat series at 10 closing on last
func flatThen(last float64) []float64 {
	return append(testingpkg.FlatCloses(10, 40), last)
}

func TestConfirmThreshold(t *testing.T) {
	assert.Equal(t, 3, ConfirmThreshold(1))
	assert.Equal(t, 3, ConfirmThreshold(0))
	assert.Equal(t, 4, ConfirmThreshold(2))
	assert.Equal(t, 4, ConfirmThreshold(3))
}

func TestAggregate(t *testing.T) {
	neutral := None("X").Components

	tests := []struct {
		name        string
		mutate      func(c *Components)
		confirmDays int
		wantType    Type
		wantBuy     int
		wantSell    int
	}{
		{"nothing fires", func(c *Components) {}, 1, TypeNone, 0, 0},
		{"ma and macd cross bullish", func(c *Components) {
			c.MA, c.MACD = CrossBullish, CrossBullish
		}, 1, TypeBuy, 4, 0},
		{"ma and macd need one more under multi-day confirmation", func(c *Components) {
			c.MA, c.MACD = CrossBullish, CrossBearish
			c.RSI = ZoneOversold
		}, 3, TypeNone, 3, 2},
		{"full confluence", func(c *Components) {
			c.MA, c.MACD = CrossBullish, CrossBullish
			c.RSI, c.Volume, c.Bollinger, c.TrendStrength = ZoneOversold, VolumeBullish, BandLower, 0.9
		}, 3, TypeBuy, 8, 0},
		{"bearish confluence", func(c *Components) {
			c.MA, c.MACD = CrossBearish, CrossBearish
			c.Volume, c.TrendStrength = VolumeBearish, 0.1
		}, 2, TypeSell, 0, 6},
		{"weak trend alone", func(c *Components) { c.TrendStrength = 0.2 }, 1, TypeNone, 0, 1},
		{"buy wins when both sides confirm", func(c *Components) {
			c.MA, c.MACD = CrossBullish, CrossBearish
			c.RSI, c.Volume = ZoneOversold, VolumeBearish
		}, 1, TypeBuy, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := neutral
			tt.mutate(&c)
			sig := Aggregate("X", c, tt.confirmDays)
			assert.Equal(t, tt.wantType, sig.Type)
			assert.Equal(t, tt.wantBuy, sig.BuyStrength)
			assert.Equal(t, tt.wantSell, sig.SellStrength)
			switch sig.Type {
			case TypeBuy:
				assert.Equal(t, sig.BuyStrength, sig.Strength)
			case TypeSell:
				assert.Equal(t, sig.SellStrength, sig.Strength)
			default:
				assert.Zero(t, sig.Strength)
			}
		})
	}
}

func TestDetectors_BreakoutBar(t *testing.T) {
	up := flatThen(11)
	assert.Equal(t, CrossBullish, MACross(up))
	assert.Equal(t, CrossBullish, MACDCross(up))
	assert.Equal(t, ZoneOverbought, RSISignal(up))
	assert.Equal(t, BandUpper, BollingerSignal(up))
	assert.InDelta(t, 1.0, TrendStrength(up), 1e-9)

	down := flatThen(9)
	assert.Equal(t, CrossBearish, MACross(down))
	assert.Equal(t, CrossBearish, MACDCross(down))
	assert.Equal(t, ZoneOversold, RSISignal(down))
	assert.Equal(t, BandLower, BollingerSignal(down))
}

func TestDetectors_InsufficientData(t *testing.T) {
	short := testingpkg.GeometricCloses(10, 0.01, 10)
	assert.Equal(t, CrossNone, MACross(short))
	assert.Equal(t, CrossNone, MACDCross(short))
	assert.Equal(t, ZoneNeutral, RSISignal(short))
	assert.Equal(t, BandMiddle, BollingerSignal(short))
	assert.Equal(t, VolumeNeutral, VolumeSignal(short))
	assert.Equal(t, NeutralTrend, TrendStrength(short))
}

func TestRSISignal_FlatWindowIsNeutral(t *testing.T) {
	assert.Equal(t, ZoneNeutral, RSISignal(testingpkg.FlatCloses(10, 40)))
}

func TestVolumeSignal(t *testing.T) {
	base := testingpkg.FlatCloses(1e6, 19)

	tests := []struct {
		name     string
		latest   float64
		expected VolumeState
	}{
		{"surge", 2e6, VolumeBullish},
		{"dry", 0.5e6, VolumeBearish},
		{"normal", 1.1e6, VolumeNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volumes := append(append([]float64(nil), base...), tt.latest)
			assert.Equal(t, tt.expected, VolumeSignal(volumes))
		})
	}
}

func TestGenerate_MAAndMACDCrossConfirmBuy(t *testing.T) {
	g := NewGenerator(nil, zerolog.Nop())
	series := testingpkg.SeriesFromCloses("510300", flatThen(11))

	sig := g.Generate(series, domain.BucketParams{ConfirmDays: 1})

	assert.Equal(t, TypeBuy, sig.Type)
	assert.GreaterOrEqual(t, sig.Strength, 4)
	assert.Equal(t, CrossBullish, sig.Components.MA)
	assert.Equal(t, CrossBullish, sig.Components.MACD)
	assert.Equal(t, "510300", sig.Code)
}

func TestGenerate_BreakdownConfirmsSellUnderMultiDayConfirmation(t *testing.T) {
	g := NewGenerator(nil, zerolog.Nop())
	series := testingpkg.SeriesFromCloses("510300", flatThen(9))

	sig := g.Generate(series, domain.BucketParams{ConfirmDays: 3})

	assert.Equal(t, TypeSell, sig.Type)
	assert.Equal(t, 4, sig.SellStrength)
	assert.Equal(t, 3, sig.BuyStrength)
}

func TestGenerate_EmptySeries(t *testing.T) {
	g := NewGenerator(nil, zerolog.Nop())
	sig := g.Generate(domain.PriceSeries{Code: "X"}, domain.BucketParams{ConfirmDays: 1})
	assert.Equal(t, None("X"), sig)
}

func TestGenerate_DoesNotMutateInput(t *testing.T) {
	g := NewGenerator(nil, zerolog.Nop())
	series := testingpkg.SeriesFromCloses("X", testingpkg.RandomWalkCloses(11, 10, 0, 0.02, 60))
	before := series.Tail(series.Len())

	first := g.Generate(series, domain.BucketParams{ConfirmDays: 2})
	second := g.Generate(series, domain.BucketParams{ConfirmDays: 2})

	assert.Equal(t, before, series)
	assert.Equal(t, first, second)
}

func TestGenerate_SingleBarIsNotAFailure(t *testing.T) {
	emitter := &recordingEmitter{}
	g := NewGenerator(emitter, zerolog.Nop())

	series := testingpkg.SeriesFromCloses("X", []float64{10})
	sig := g.Generate(series, domain.BucketParams{ConfirmDays: 1})

	require.Equal(t, TypeNone, sig.Type)
	assert.Empty(t, emitter.data)
}
