package universe

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const (
	maxPriceChangePercent = 1000.0 // >1000% day-over-day is a spike
	minPriceChangePercent = -90.0  // <-90% day-over-day is a crash
)

// Rejection reasons
const (
	ReasonNonPositiveClose = "non_positive_close"
	ReasonDuplicateDate    = "duplicate_date"
	ReasonSpike            = "spike_detected"
	ReasonCrash            = "crash_detected"
)

// Rejection records a bar dropped by the validator
type Rejection struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Reason string  `json:"reason"`
}

// ValidationReport summarises one Clean call
type ValidationReport struct {
	Accepted   int         `json:"accepted"`
	Repaired   int         `json:"repaired"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// PriceValidator cleans imported bars before they reach the price table
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// Clean sorts bars by date and drops the ones that cannot be trusted.
// A later duplicate of a date wins. High and low are widened to cover open
// and close. Day-over-day moves are measured against the last accepted close.
func (v *PriceValidator) Clean(code string, bars []domain.PriceBar) ([]domain.PriceBar, ValidationReport) {
	report := ValidationReport{}
	if len(bars) == 0 {
		return []domain.PriceBar{}, report
	}

	sorted := make([]domain.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := make([]domain.PriceBar, 0, len(sorted))
	for _, b := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(b.Date) {
			report.Rejections = append(report.Rejections, Rejection{
				Date: deduped[n-1].Date.Format(dateLayout), Close: deduped[n-1].Close, Reason: ReasonDuplicateDate,
			})
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	clean := make([]domain.PriceBar, 0, len(deduped))
	for _, b := range deduped {
		if reason := v.check(b, clean); reason != "" {
			report.Rejections = append(report.Rejections, Rejection{
				Date: b.Date.Format(dateLayout), Close: b.Close, Reason: reason,
			})
			continue
		}

		if repaired, changed := ensureOHLCConsistency(b); changed {
			b = repaired
			report.Repaired++
		}
		clean = append(clean, b)
	}

	report.Accepted = len(clean)
	if len(report.Rejections) > 0 {
		v.log.Warn().
			Str("code", code).
			Int("rejected", len(report.Rejections)).
			Int("accepted", report.Accepted).
			Msg("Dropped invalid bars")
	}
	return clean, report
}

func (v *PriceValidator) check(b domain.PriceBar, accepted []domain.PriceBar) string {
	if !(b.Close > 0) || math.IsInf(b.Close, 0) {
		return ReasonNonPositiveClose
	}
	if len(accepted) == 0 {
		return ""
	}

	prevClose := accepted[len(accepted)-1].Close
	changePercent := (b.Close - prevClose) / prevClose * 100.0
	if changePercent > maxPriceChangePercent {
		return ReasonSpike
	}
	if changePercent < minPriceChangePercent {
		return ReasonCrash
	}
	return ""
}

// ensureOHLCConsistency fills missing open/high/low from the close and
// widens the range so low <= open, close <= high
func ensureOHLCConsistency(b domain.PriceBar) (domain.PriceBar, bool) {
	orig := b

	if b.Open <= 0 {
		b.Open = b.Close
	}
	if b.High <= 0 {
		b.High = math.Max(b.Open, b.Close)
	}
	if b.Low <= 0 {
		b.Low = math.Min(b.Open, b.Close)
	}

	b.High = math.Max(b.High, math.Max(b.Open, b.Close))
	b.Low = math.Min(b.Low, math.Min(b.Open, b.Close))

	changed := b.Open != orig.Open || b.High != orig.High || b.Low != orig.Low
	return b, changed
}
