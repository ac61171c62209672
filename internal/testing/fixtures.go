package testing

import (
	"math"
	"math/rand"
	"time"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// FixtureStart is the first bar date of generated series
var FixtureStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// SeriesFromCloses builds a series whose bars carry the given closes.
// High/Low bracket the close by 1%, volume and amount are constant.
func SeriesFromCloses(code string, closes []float64) domain.PriceSeries {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Date:   FixtureStart.AddDate(0, 0, i),
			Open:   c,
			Close:  c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Volume: 1_000_000,
			Amount: 50_000_000,
		}
	}
	return domain.PriceSeries{Code: code, Bars: bars}
}

// FlatCloses returns n identical closes
func FlatCloses(price float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// GeometricCloses grows from start by rate per step
func GeometricCloses(start, rate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start * math.Pow(1+rate, float64(i))
	}
	return out
}

// RandomWalkCloses is a seeded multiplicative random walk with daily sigma
func RandomWalkCloses(seed int64, start, drift, sigma float64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := start
	for i := range out {
		out[i] = price
		price *= 1 + drift + sigma*rng.NormFloat64()
		if price <= 0.01 {
			price = 0.01
		}
	}
	return out
}

// Ptr returns a pointer to v
func Ptr(v float64) *float64 {
	return &v
}

// NewCatalogueEntry returns a catalogue row listed years ago with the given size
func NewCatalogueEntry(code string, fundSize float64, listedYearsAgo int, now time.Time) domain.CatalogueEntry {
	return domain.CatalogueEntry{
		Code:        code,
		Name:        "ETF" + code,
		FullCode:    domain.FullCode(code),
		FundSize:    fundSize,
		ListingDate: now.AddDate(-listedYearsAgo, 0, 0),
		UpdatedAt:   now,
	}
}
