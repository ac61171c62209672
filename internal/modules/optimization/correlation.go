package optimization

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// DefaultLookbackDays is the return window used for selection correlations
const DefaultLookbackDays = 60

// CorrelationMatrix is a symmetric, unit-diagonal correlation matrix keyed by code
type CorrelationMatrix struct {
	codes []string
	index map[string]int
	m     *mat.SymDense
}

// Codes returns the codes covered by the matrix, in column order
func (c *CorrelationMatrix) Codes() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.codes...)
}

// Between returns the correlation of a and b. ok is false when either code
// has no return history in the matrix.
func (c *CorrelationMatrix) Between(a, b string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	i, okA := c.index[a]
	j, okB := c.index[b]
	if !okA || !okB {
		return 0, false
	}
	return c.m.At(i, j), true
}

// MeanPairwise averages the off-diagonal correlations among codes that the
// matrix covers. Fewer than two covered codes give 0.
func (c *CorrelationMatrix) MeanPairwise(codes []string) float64 {
	var sum float64
	var n int
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			if v, ok := c.Between(codes[i], codes[j]); ok {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// BuildCorrelationMatrix correlates the daily returns of the trailing
// lookback observations of each series. Series are aligned on the union of
// their dates with forward-fill then back-fill; series with fewer than two
// observations are left out of the matrix.
func BuildCorrelationMatrix(series []domain.PriceSeries, lookback int) (*CorrelationMatrix, error) {
	if lookback <= 1 {
		lookback = DefaultLookbackDays
	}

	usable := make([]domain.PriceSeries, 0, len(series))
	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if s.Len() < 2 || seen[s.Code] {
			continue
		}
		seen[s.Code] = true
		usable = append(usable, s.Tail(lookback))
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("correlation matrix: %w", domain.ErrInsufficientData)
	}

	dates, aligned := alignCloses(usable)
	if len(dates) < 2 {
		return nil, fmt.Errorf("correlation matrix: %w", domain.ErrInsufficientData)
	}

	returns := make([][]float64, len(aligned))
	for i, closes := range aligned {
		returns[i] = formulas.CalculateReturns(closes)
	}

	m, err := formulas.CorrelationMatrix(returns)
	if err != nil {
		return nil, fmt.Errorf("correlation matrix: %w", err)
	}

	out := &CorrelationMatrix{
		codes: make([]string, len(usable)),
		index: make(map[string]int, len(usable)),
		m:     m,
	}
	for i, s := range usable {
		out.codes[i] = s.Code
		out.index[s.Code] = i
	}
	return out, nil
}

// alignCloses places every series on the sorted union of dates. Gaps are
// forward-filled, leading gaps back-filled.
func alignCloses(series []domain.PriceSeries) ([]string, [][]float64) {
	dateSet := make(map[string]bool)
	byCode := make([]map[string]float64, len(series))
	for i, s := range series {
		byCode[i] = make(map[string]float64, s.Len())
		for _, b := range s.Bars {
			d := b.Date.Format("2006-01-02")
			byCode[i][d] = b.Close
			dateSet[d] = true
		}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	aligned := make([][]float64, len(series))
	for i := range series {
		closes := make([]float64, len(dates))
		for j, d := range dates {
			if v, ok := byCode[i][d]; ok {
				closes[j] = v
			} else {
				closes[j] = math.NaN()
			}
		}
		aligned[i] = fillGaps(closes)
	}
	return dates, aligned
}

func fillGaps(values []float64) []float64 {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}

	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}
	return values
}
