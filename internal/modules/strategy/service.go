package strategy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/database"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/optimization"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/risk"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring/scorers"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/signals"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/sizing"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/thresholds"
)

// Options are the run-level settings of a strategy pass
type Options struct {
	Benchmark  string
	MinScore   float64
	TopPercent float64
}

// Deps are the collaborators of the service. Recorders may be nil.
// Holdings and trade actions are written together in one transaction on DB.
type Deps struct {
	DB        *sql.DB
	Catalogue CatalogueReader
	Prices    PriceReader
	Holdings  HoldingsStore
	Trades    TradeRecorder
	Scores    ScoreRecorder
	RiskLog   RiskRecorder
	Regimes   RegimeRecorder
	Events    EventEmitter
	Metrics   *metrics.Metrics
}

// Result is the outcome of one strategy pass
type Result struct {
	RunID         string                       `json:"run_id"`
	Regime        market_regime.Classification `json:"regime"`
	Risk          domain.RiskSnapshot          `json:"risk"`
	Plans         []Plan                       `json:"plans"`
	Opportunities []Opportunity                `json:"opportunities"`
	Actions       []domain.TradeAction         `json:"actions"`
	Messages      []string                     `json:"-"`
	Scored        scoring.Summary              `json:"scored"`
}

// Service runs the daily position calculation
type Service struct {
	strategy config.Strategy
	opts     Options
	deps     Deps

	classifier *market_regime.Classifier
	engine     *scoring.Engine
	adapter    *thresholds.Adapter
	selector   *optimization.Selector
	signals    *signals.Generator
	sizer      *sizing.Sizer
	monitor    *risk.Monitor

	now domain.Clock
	log zerolog.Logger
}

// NewService wires the engine components around deps
func NewService(strategy config.Strategy, opts Options, deps Deps, log zerolog.Logger) *Service {
	s := &Service{
		strategy:   strategy,
		opts:       opts,
		deps:       deps,
		classifier: market_regime.NewClassifier(strategy.Regime, log),
		engine:     scoring.NewEngine(deps.Events, deps.Metrics, log),
		adapter:    thresholds.NewAdapter(strategy, log),
		selector:   optimization.NewSelector(log),
		signals:    signals.NewGenerator(deps.Events, log),
		sizer:      sizing.NewSizer(log),
		monitor:    risk.NewMonitor(deps.Prices, deps.Events, deps.Metrics, log),
		now:        time.Now,
		log:        log.With().Str("service", "strategy").Logger(),
	}
	return s
}

// SetClock overrides the time source of the service and its monitor
func (s *Service) SetClock(now domain.Clock) {
	s.now = now
	s.monitor.SetClock(now)
}

// SetScoringWorkers bounds scoring concurrency
func (s *Service) SetScoringWorkers(n int) {
	s.engine.SetWorkers(n)
}

// snapshot is the per-pass market data shared by every bucket
type snapshot struct {
	regime   domain.Regime
	summary  scoring.Summary
	ranked   []domain.Score
	scores   map[string]float64
	profiles map[string]thresholds.Profile
	entries  map[string]domain.CatalogueEntry
	series   map[string]domain.PriceSeries
	risk     domain.RiskSnapshot
	target   float64
}

// Run executes one calculate_position pass: classify, score, plan every
// bucket, persist holdings and logs, and render the messages
func (s *Service) Run(ctx context.Context) (*Result, error) {
	now := s.now()
	result := &Result{RunID: uuid.NewString()}
	logger := s.log.With().Str("run_id", result.RunID).Logger()

	result.Regime = s.classifier.ClassifyBenchmark(s.deps.Prices, s.opts.Benchmark)
	s.deps.Metrics.SetRegime(result.Regime.Regime)
	s.emit(&events.RegimeClassifiedData{
		Benchmark: s.opts.Benchmark,
		Regime:    string(result.Regime.Regime),
		Rule:      result.Regime.Rule,
	})
	if s.deps.Regimes != nil {
		if err := s.deps.Regimes.Record(s.opts.Benchmark, result.Regime, now); err != nil {
			logger.Warn().Err(err).Msg("Failed to record regime")
		}
	}

	snap, err := s.loadSnapshot(ctx, result.Regime.Regime, now)
	if err != nil {
		return nil, err
	}
	result.Scored = snap.summary

	holdings, err := s.deps.Holdings.All()
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	snap.risk = s.monitor.Assess(holdings)
	snap.target = sizing.TargetExposure(snap.risk.OverallLevel, snap.regime, snap.risk.PortfolioVolatility)
	result.Risk = snap.risk

	for _, bh := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plan, err := s.planBucket(snap, bh, result.RunID, now)
		if err != nil {
			logger.Error().Err(err).Str("bucket", string(bh.Bucket)).Msg("Failed to plan bucket")
			s.emit(&events.ErrorEventData{
				Error:   err.Error(),
				Context: map[string]interface{}{"bucket": string(bh.Bucket), "run_id": result.RunID},
			})
			result.Messages = append(result.Messages, Header+"\n\n"+
				fmt.Sprintf("【%s】\n• %s：生成建议时发生错误\n", bh.Bucket.Label(), bh.Bucket.Label()))
			continue
		}

		result.Plans = append(result.Plans, plan)
		result.Actions = append(result.Actions, plan.Actions...)
		result.Messages = append(result.Messages, BucketMessage(plan, s.details(snap, plan.Holdings)))
	}

	base, _ := s.adapter.TierThresholds(domain.TierBase, snap.regime)
	result.Opportunities = OpportunityPool(snap.ranked, snap.profiles, snap.entries, base,
		s.opts.MinScore, s.strategy.OpportunityPoolSize, now)
	result.Messages = append(result.Messages, SummaryMessage(result.Opportunities, snap.risk))

	if err := s.persist(result); err != nil {
		return nil, err
	}

	logger.Info().
		Str("regime", string(snap.regime)).
		Str("risk_level", string(snap.risk.OverallLevel)).
		Int("actions", len(result.Actions)).
		Int("messages", len(result.Messages)).
		Msg("Strategy pass completed")

	return result, nil
}

// loadSnapshot builds the universe and scores it with regime weights.
// Instruments whose data cannot be read are skipped.
func (s *Service) loadSnapshot(ctx context.Context, regime domain.Regime, now time.Time) (*snapshot, error) {
	entries, err := s.deps.Catalogue.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}

	snap := &snapshot{
		regime:   regime,
		scores:   make(map[string]float64, len(entries)),
		profiles: make(map[string]thresholds.Profile, len(entries)),
		entries:  make(map[string]domain.CatalogueEntry, len(entries)),
		series:   make(map[string]domain.PriceSeries, len(entries)),
	}

	universe := make([]scoring.Instrument, 0, len(entries))
	sizes := make(map[string][]float64, len(entries))
	for _, e := range entries {
		series, err := s.deps.Prices.GetPriceSeries(e.Code)
		if err != nil {
			s.log.Warn().Err(err).Str("code", e.Code).Msg("Failed to load price series, skipping")
			continue
		}
		history, err := s.deps.Prices.SizeHistory(e.Code)
		if err != nil {
			s.log.Warn().Err(err).Str("code", e.Code).Msg("Failed to load size history")
			history = nil
		}

		snap.entries[e.Code] = e
		snap.series[e.Code] = series
		sizes[e.Code] = history
		universe = append(universe, scoring.Instrument{Entry: e, Series: series, SizeHistory: history})
	}

	weights := scoring.AdjustWeights(s.strategy.BaseWeights, regime)
	ranked, summary, err := s.engine.ComputeScores(ctx, universe, weights)
	if err != nil {
		return nil, err
	}
	snap.ranked = ranked
	snap.summary = summary

	s.emit(&events.ScoresComputedData{
		Scored:  summary.Scored,
		Skipped: summary.Skipped,
		Failed:  summary.Failed,
		Regime:  string(regime),
	})
	if s.deps.Scores != nil {
		if err := s.deps.Scores.Record(now, ranked); err != nil {
			s.log.Warn().Err(err).Msg("Failed to record score history")
		}
	}

	for _, sc := range ranked {
		snap.scores[sc.Code] = sc.Composite
		snap.profiles[sc.Code] = profileOf(sc, snap.entries[sc.Code], snap.series[sc.Code], sizes[sc.Code])
	}
	return snap, nil
}

func profileOf(sc domain.Score, entry domain.CatalogueEntry, series domain.PriceSeries, sizes []float64) thresholds.Profile {
	p := thresholds.Profile{
		Code:        sc.Code,
		FundSize:    sc.FundSize,
		AvgVolume:   sc.AvgVolume,
		ListingDate: sc.ListingDate,
		Sector:      entry.Sector,
	}
	if te, err := scorers.TrackingError(series.Tail(scoring.WindowSize)); err == nil {
		p.TrackingError = &te
	}
	if growth, ok := scorers.SizeGrowth(sizes); ok {
		p.SizeGrowth = &growth
	}
	return p
}

func (s *Service) planBucket(snap *snapshot, current domain.BucketHolding, runID string, now time.Time) (Plan, error) {
	base, ok := s.strategy.Bucket(current.Bucket)
	if !ok {
		return Plan{}, fmt.Errorf("no parameters for bucket %s", current.Bucket)
	}
	params := s.adapter.DynamicParams(base, snap.regime)

	admitted := make([]domain.Score, 0, len(snap.ranked))
	for _, sc := range snap.ranked {
		if ok, _ := s.adapter.Admits(current.Bucket, snap.regime, snap.profiles[sc.Code], now); ok {
			admitted = append(admitted, sc)
		}
	}
	candidates := scoring.Shortlist(admitted, s.opts.MinScore, s.opts.TopPercent)

	series := make([]domain.PriceSeries, 0, len(candidates))
	for _, c := range candidates {
		series = append(series, snap.series[c.Code])
	}
	corr, err := optimization.BuildCorrelationMatrix(series, optimization.DefaultLookbackDays)
	if err != nil {
		s.log.Warn().Err(err).Str("bucket", string(current.Bucket)).Msg("No correlation data, pairs admitted")
	}
	optimal := s.selector.Select(current.Bucket, params, candidates, corr)

	in := PlanInput{
		Bucket:      current.Bucket,
		Params:      params,
		Candidates:  candidates,
		Optimal:     optimal,
		Current:     current,
		Scores:      snap.scores,
		Signals:     make(map[string]signals.Signal, len(optimal.Members)),
		Stops:       make(map[string]sizing.StopLoss, len(current.Holdings)),
		Prices:      make(map[string]float64),
		Target:      snap.target,
		Risk:        snap.risk,
		SwitchFloor: s.strategy.SwitchScoreFloor,
		Tolerance:   s.strategy.ExposureTolerance,
		RunID:       runID,
		Now:         now,
	}

	for _, m := range optimal.Members {
		ps := s.seriesFor(snap, m.Code)
		in.Signals[m.Code] = s.signals.Generate(ps, params)
		if last, ok := ps.Last(); ok {
			in.Prices[m.Code] = last.Close
		}
	}
	for _, h := range current.Holdings {
		ps := s.seriesFor(snap, h.Code)
		in.Stops[h.Code] = s.sizer.DynamicStopLoss(ps, params)
		if last, ok := ps.Last(); ok {
			in.Prices[h.Code] = last.Close
		}
	}

	return BuildPlan(in), nil
}

// seriesFor returns the cached series of code, loading held codes that are
// no longer in the catalogue
func (s *Service) seriesFor(snap *snapshot, code string) domain.PriceSeries {
	if ps, ok := snap.series[code]; ok {
		return ps
	}
	ps, err := s.deps.Prices.GetPriceSeries(code)
	if err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("Failed to load price series")
		ps = domain.PriceSeries{Code: code}
	}
	snap.series[code] = ps
	return ps
}

func (s *Service) details(snap *snapshot, holdings []domain.Holding) []HoldingDetail {
	details := make([]HoldingDetail, 0, len(holdings))
	for _, h := range holdings {
		details = append(details, DetailFor(h, s.seriesFor(snap, h.Code)))
	}
	return details
}

// persist appends the risk snapshot, then commits the trade actions and the
// post-action holdings of every planned bucket in one transaction
func (s *Service) persist(result *Result) error {
	if s.deps.RiskLog != nil {
		if err := s.deps.RiskLog.Record(result.Risk); err != nil {
			return fmt.Errorf("failed to record risk snapshot: %w", err)
		}
	}

	stored := result.Actions
	err := database.WithTransaction(s.deps.DB, func(tx *sql.Tx) error {
		if s.deps.Trades != nil && len(result.Actions) > 0 {
			var err error
			stored, err = s.deps.Trades.RecordTx(tx, result.Actions)
			if err != nil {
				return fmt.Errorf("failed to record trade actions: %w", err)
			}
		}
		for _, plan := range result.Plans {
			if err := s.deps.Holdings.SaveTx(tx, plan.Bucket, plan.Holdings); err != nil {
				return fmt.Errorf("failed to save %s holdings: %w", plan.Bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	result.Actions = stored
	s.log.Info().
		Str("run_id", result.RunID).
		Int("buckets", len(result.Plans)).
		Int("actions", len(stored)).
		Msg("Holdings and trade actions committed")

	if s.deps.Trades == nil {
		return nil
	}
	for _, a := range stored {
		s.emit(&events.TradeActionRecordedData{
			Bucket: string(a.Bucket),
			Code:   a.Code,
			Action: string(a.Action),
			RunID:  a.RunID,
		})
	}
	return nil
}

func (s *Service) emit(data events.EventData) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.EmitTyped("strategy", data)
}
