package scoring

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring/scorers"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// WindowSize is the trailing window every factor is computed on
const WindowSize = 30

// Instrument bundles what the engine needs to score one ETF
type Instrument struct {
	Entry       domain.CatalogueEntry
	Series      domain.PriceSeries
	SizeHistory []float64 // chronological fund sizes in 亿, may be empty
}

// EventEmitter receives computation failures
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Summary counts the outcome of a ComputeScores pass
type Summary struct {
	Scored  int
	Skipped int // fewer than WindowSize observations
	Failed  int // instrument-level failures
}

// Engine computes composite scores
type Engine struct {
	liquidity *scorers.LiquidityScorer
	risk      *scorers.RiskScorer
	returns   *scorers.ReturnScorer
	sentiment *scorers.SentimentScorer
	tracking  *scorers.TrackingScorer
	stability *scorers.StabilityScorer

	events  EventEmitter
	metrics *metrics.Metrics
	workers int
	log     zerolog.Logger
}

// NewEngine creates a new scoring engine. emitter and m may be nil.
func NewEngine(emitter EventEmitter, m *metrics.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		liquidity: scorers.NewLiquidityScorer(),
		risk:      scorers.NewRiskScorer(),
		returns:   scorers.NewReturnScorer(),
		sentiment: scorers.NewSentimentScorer(),
		tracking:  scorers.NewTrackingScorer(),
		stability: scorers.NewStabilityScorer(),
		events:    emitter,
		metrics:   m,
		workers:   runtime.NumCPU(),
		log:       log.With().Str("component", "scoring_engine").Logger(),
	}
}

// SetWorkers bounds the number of instruments scored concurrently
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.workers = n
}

// Score computes the composite score of one instrument. An instrument with
// fewer than WindowSize observations scores 0. weights are expected to sum to 1.
func (e *Engine) Score(inst Instrument, weights domain.Weights) domain.Score {
	code := inst.Entry.Code
	if code == "" {
		code = inst.Series.Code
	}

	result := domain.Score{
		Code:        code,
		Name:        inst.Entry.Name,
		FundSize:    inst.Entry.FundSize,
		ListingDate: inst.Entry.ListingDate,
	}

	if inst.Series.Len() < WindowSize {
		e.log.Warn().
			Str("code", code).
			Int("observations", inst.Series.Len()).
			Msg("Insufficient history, score set to 0")
		return result
	}

	if math.Abs(weights.Sum()-1) > 1e-6 {
		e.log.Warn().Str("code", code).Float64("sum", weights.Sum()).Msg("Weights do not sum to 1, normalizing")
		weights = weights.Normalize()
	}

	window := inst.Series.Tail(WindowSize)

	factors := []struct {
		name   string
		result scorers.Result
		target *float64
	}{
		{"liquidity", scorers.Safe("liquidity", scorers.NeutralLiquidity, func() scorers.Result { return e.liquidity.Calculate(window) }), &result.Components.Liquidity},
		{"risk", scorers.Safe("risk", scorers.NeutralRisk, func() scorers.Result { return e.risk.Calculate(window) }), &result.Components.Risk},
		{"return", scorers.Safe("return", scorers.NeutralReturn, func() scorers.Result { return e.returns.Calculate(window) }), &result.Components.Return},
		{"sentiment", scorers.Safe("sentiment", scorers.NeutralSentiment, func() scorers.Result { return e.sentiment.Calculate(window) }), &result.Components.Sentiment},
		{"tracking", scorers.Safe("tracking", scorers.NeutralTracking, func() scorers.Result { return e.tracking.Calculate(window, inst.Entry.FundSize) }), &result.Components.Tracking},
		{"stability", scorers.Safe("stability", scorers.NeutralStability, func() scorers.Result { return e.stability.Calculate(inst.SizeHistory) }), &result.Components.Stability},
	}

	for _, f := range factors {
		*f.target = f.result.Value
		if !f.result.Fallback {
			continue
		}
		result.Degraded = append(result.Degraded, f.name)
		if f.result.Failed() {
			e.reportFailure(code, f.name, f.result.Err)
		} else if f.result.Err != nil {
			e.log.Debug().Err(f.result.Err).Str("code", code).Str("factor", f.name).Msg("Factor degraded to default")
		}
	}

	result.Composite = formulas.Round2(formulas.ClampScore(weights.Apply(result.Components)))
	result.AvgVolume = formulas.Mean(window.Amounts()) / 10000
	result.Volatility = formulas.VolatilityFromPrices(window.Closes())

	e.log.Debug().
		Str("code", code).
		Float64("liquidity", result.Components.Liquidity).
		Float64("risk", result.Components.Risk).
		Float64("return", result.Components.Return).
		Float64("sentiment", result.Components.Sentiment).
		Float64("tracking", result.Components.Tracking).
		Float64("stability", result.Components.Stability).
		Float64("composite", result.Composite).
		Msg("Instrument scored")

	return result
}

func (e *Engine) reportFailure(code, factor string, err error) {
	e.log.Error().Err(err).Str("code", code).Str("factor", factor).Msg("Factor calculation failed, using neutral value")
	e.metrics.ScoringFailed(factor)
	if e.events != nil {
		e.events.EmitTyped("scoring", &events.ComputationFailedData{
			Code:   code,
			Factor: factor,
			Error:  err.Error(),
		})
	}
}

// safeScore isolates one instrument from a panic outside the factor scorers
func (e *Engine) safeScore(inst Instrument, weights domain.Weights) (score domain.Score, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scoring %s panicked: %v", inst.Entry.Code, p)
		}
	}()
	return e.Score(inst, weights), nil
}

// ComputeScores scores the universe in parallel and returns the instruments
// with enough history ranked by composite score (descending). Equal scores
// keep their universe order.
func (e *Engine) ComputeScores(ctx context.Context, universe []Instrument, weights domain.Weights) ([]domain.Score, Summary, error) {
	start := time.Now()

	type slot struct {
		score domain.Score
		ok    bool
		err   error
	}
	slots := make([]slot, len(universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range universe {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst := universe[i]
			if inst.Series.Len() < WindowSize {
				return nil
			}
			score, err := e.safeScore(inst, weights)
			slots[i] = slot{score: score, ok: err == nil, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Summary{}, fmt.Errorf("scoring cancelled: %w", err)
	}

	var summary Summary
	ranked := make([]domain.Score, 0, len(universe))
	for i, s := range slots {
		switch {
		case s.err != nil:
			summary.Failed++
			e.reportFailure(universe[i].Entry.Code, "composite", s.err)
		case s.ok:
			ranked = append(ranked, s.score)
		default:
			summary.Skipped++
		}
	}
	summary.Scored = len(ranked)

	Rank(ranked)

	e.metrics.ObserveScoring(time.Since(start), summary.Scored)
	e.log.Info().
		Int("universe", len(universe)).
		Int("scored", summary.Scored).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Universe scored")

	return ranked, summary, nil
}

// Rank sorts scores by composite descending (stable) and assigns 1-based ranks
func Rank(scores []domain.Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Composite > scores[j].Composite
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

// Shortlist keeps scores at or above minScore, then the best
// max(10, ⌊n × topPercent / 100⌋) of them. Input must be ranked.
func Shortlist(ranked []domain.Score, minScore, topPercent float64) []domain.Score {
	eligible := make([]domain.Score, 0, len(ranked))
	for _, s := range ranked {
		if s.Composite >= minScore {
			eligible = append(eligible, s)
		}
	}

	keep := int(float64(len(eligible)) * topPercent / 100)
	if keep < 10 {
		keep = 10
	}
	if keep < len(eligible) {
		eligible = eligible[:keep]
	}
	return eligible
}
