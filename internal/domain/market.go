package domain

import (
	"fmt"
	"strings"
	"time"
)

// Regime is the classified market condition
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
)

// Label returns the display name used in notifications
func (r Regime) Label() string {
	switch r {
	case RegimeBull:
		return "牛市"
	case RegimeBear:
		return "熊市"
	default:
		return "震荡市"
	}
}

// ParseRegime maps a string to a Regime, defaulting to sideways
func ParseRegime(s string) Regime {
	switch Regime(strings.ToLower(strings.TrimSpace(s))) {
	case RegimeBull:
		return RegimeBull
	case RegimeBear:
		return RegimeBear
	default:
		return RegimeSideways
	}
}

// PriceBar is one daily observation. Optional columns are nil when the
// data source did not provide them.
type PriceBar struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	Close         float64   `json:"close"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	Amount        float64   `json:"amount"`
	IndexClose    *float64  `json:"index_close,omitempty"`
	TrackingError *float64  `json:"tracking_error,omitempty"`
	Spread        *float64  `json:"spread,omitempty"`
	BidVolume     *float64  `json:"bid_volume,omitempty"`
	AskVolume     *float64  `json:"ask_volume,omitempty"`
	Turnover      *float64  `json:"turnover,omitempty"`
}

// PriceSeries is a date-ordered sequence of bars for one instrument.
// Consumers treat it as read-only; helpers return fresh slices.
type PriceSeries struct {
	Code string     `json:"code"`
	Bars []PriceBar `json:"bars"`
}

// Len returns the number of bars
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Empty reports whether the series has no bars
func (s PriceSeries) Empty() bool {
	return len(s.Bars) == 0
}

// Tail returns a copy holding the last n bars
func (s PriceSeries) Tail(n int) PriceSeries {
	if n < 0 {
		n = 0
	}
	start := 0
	if len(s.Bars) > n {
		start = len(s.Bars) - n
	}
	bars := make([]PriceBar, len(s.Bars)-start)
	copy(bars, s.Bars[start:])
	return PriceSeries{Code: s.Code, Bars: bars}
}

// Last returns the latest bar and false when the series is empty
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns the close column
func (s PriceSeries) Closes() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Close })
}

// Highs returns the high column
func (s PriceSeries) Highs() []float64 {
	return s.column(func(b PriceBar) float64 { return b.High })
}

// Lows returns the low column
func (s PriceSeries) Lows() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Low })
}

// Volumes returns the volume column
func (s PriceSeries) Volumes() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Volume })
}

// Amounts returns the turnover-amount column
func (s PriceSeries) Amounts() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Amount })
}

// Optional collects the non-nil values of an optional column.
// ok is false when no bar carries the column.
func (s PriceSeries) Optional(get func(PriceBar) *float64) (values []float64, ok bool) {
	for _, b := range s.Bars {
		if v := get(b); v != nil {
			values = append(values, *v)
		}
	}
	return values, len(values) > 0
}

func (s PriceSeries) column(get func(PriceBar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = get(b)
	}
	return out
}

// Validate checks that dates are strictly increasing
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("series %s: date %s not after %s", s.Code,
				s.Bars[i].Date.Format("2006-01-02"), s.Bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// CatalogueEntry is one tradable ETF in the market-wide catalogue
type CatalogueEntry struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	FullCode    string    `json:"full_code"`
	FundSize    float64   `json:"fund_size"` // 亿元
	ListingDate time.Time `json:"listing_date"`
	Sector      string    `json:"sector,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListingDays returns the age of the fund in days at now; 0 if unknown
func (c CatalogueEntry) ListingDays(now time.Time) int {
	if c.ListingDate.IsZero() {
		return 0
	}
	days := int(now.Sub(c.ListingDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// CodeWidth is the fixed width of exchange ETF codes
const CodeWidth = 6

// CanonicalCode trims the input, strips an exchange prefix or suffix
// (sh510300, 510300.SH) and left-pads with zeros to CodeWidth.
func CanonicalCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	code = strings.TrimPrefix(code, "sh")
	code = strings.TrimPrefix(code, "sz")
	if i := strings.IndexByte(code, '.'); i >= 0 {
		code = code[:i]
	}
	if len(code) >= CodeWidth {
		return code
	}
	return strings.Repeat("0", CodeWidth-len(code)) + code
}

// FullCode returns the exchange-qualified code (sh for 5xxxxx, sz otherwise)
func FullCode(code string) string {
	code = CanonicalCode(code)
	if strings.HasPrefix(code, "5") {
		return "sh" + code
	}
	return "sz" + code
}
