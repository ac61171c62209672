package strategy

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/ledger"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/portfolio"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/risk"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/universe"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
)

type serviceFixture struct {
	service  *Service
	holdings *portfolio.HoldingsRepository
	trades   *ledger.Repository
	risks    *risk.Repository
	scores   *scoring.HistoryRepository
	regimes  *market_regime.History
	events   *events.Manager
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t)
	t.Cleanup(cleanup)
	conn := db.Conn()
	log := zerolog.Nop()

	now := testingpkg.FixtureStart.AddDate(0, 0, 300)
	catalogue := universe.NewCatalogueRepository(conn, log)
	prices := universe.NewPriceRepository(conn, log)

	codes := []string{"510300", "510500", "159915", "512880", "512100", "159949"}
	entries := make([]domain.CatalogueEntry, 0, len(codes))
	for i, code := range codes {
		entries = append(entries, testingpkg.NewCatalogueEntry(code, 50, 5, now))
		closes := testingpkg.RandomWalkCloses(int64(i+1), 3+float64(i), 0.0005, 0.012, 300)
		series := testingpkg.SeriesFromCloses(code, closes)
		require.NoError(t, prices.UpsertBars(code, series.Bars))
	}
	require.NoError(t, catalogue.Upsert(entries))

	f := &serviceFixture{
		holdings: portfolio.NewHoldingsRepository(conn, log),
		trades:   ledger.NewRepository(conn, log),
		risks:    risk.NewRepository(conn, log),
		scores:   scoring.NewHistoryRepository(conn, log),
		regimes:  market_regime.NewHistory(conn, log),
		events:   events.NewManager(log),
	}
	require.NoError(t, f.holdings.Save(domain.BucketStable, []domain.Holding{
		{Code: "510300", CostPrice: 3, EntryDate: now.AddDate(0, -1, 0), Weight: 0.2},
		{Code: "588000", CostPrice: 1, EntryDate: now.AddDate(0, -1, 0), Weight: 0.1},
	}))

	f.service = NewService(config.DefaultStrategy(), Options{Benchmark: "510300", MinScore: 0, TopPercent: 100}, Deps{
		DB:        conn,
		Catalogue: catalogue,
		Prices:    prices,
		Holdings:  f.holdings,
		Trades:    f.trades,
		Scores:    f.scores,
		RiskLog:   f.risks,
		Regimes:   f.regimes,
		Events:    f.events,
	}, log)
	f.service.SetClock(func() time.Time { return now.Add(6*time.Hour + 50*time.Minute) })
	f.service.SetScoringWorkers(2)
	return f
}

func TestService_Run(t *testing.T) {
	f := newServiceFixture(t)

	var classified int
	f.events.Subscribe(events.RegimeClassified, func(events.Event) { classified++ })

	result, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 1, classified)
	assert.Equal(t, 6, result.Scored.Scored)
	require.Len(t, result.Plans, len(domain.AllBuckets))
	require.Len(t, result.Messages, len(domain.AllBuckets)+1)
	assert.Contains(t, result.Messages[len(result.Messages)-1], "【全仓风险汇总】")

	stored, err := f.holdings.All()
	require.NoError(t, err)
	for i, plan := range result.Plans {
		assert.Equal(t, domain.AllBuckets[i], plan.Bucket)
		assert.True(t, strings.HasPrefix(result.Messages[i], Header))
		assert.Contains(t, plan.Suggestion(), "• 风险提示: 当前风险水平")
		assert.ElementsMatch(t, domain.BucketHolding{Holdings: plan.Holdings}.Codes(), stored[i].Codes(),
			"holdings persisted for %s", plan.Bucket)
	}

	logged, err := f.trades.ForRun(result.RunID)
	require.NoError(t, err)
	require.Len(t, logged, len(result.Actions))
	for _, a := range logged {
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, result.RunID, a.RunID)
	}

	snapshot, err := f.risks.Latest()
	require.NoError(t, err)
	assert.Equal(t, result.Risk.OverallLevel, snapshot.OverallLevel)

	regime, err := f.regimes.Latest()
	require.NoError(t, err)
	require.NotNil(t, regime)
	assert.Equal(t, result.Regime.Regime, regime.Regime)

	scores, err := f.scores.Latest()
	require.NoError(t, err)
	assert.Len(t, scores, 6)
}

type failingCatalogue struct{}

func (failingCatalogue) GetAll() ([]domain.CatalogueEntry, error) {
	return nil, errors.New("disk full")
}

func TestService_Run_CatalogueFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.service.deps.Catalogue = failingCatalogue{}

	_, err := f.service.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalogue")
}

func TestService_Run_BucketFailureContinues(t *testing.T) {
	f := newServiceFixture(t)
	st := config.DefaultStrategy()
	delete(st.Buckets, domain.BucketArbitrage)
	f.service.strategy = st

	var failures int
	f.events.Subscribe(events.ErrorOccurred, func(e events.Event) {
		if e.Module == "strategy" {
			failures++
		}
	})

	result, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Plans, len(domain.AllBuckets)-1)
	assert.Len(t, result.Messages, len(domain.AllBuckets)+1)
	assert.Contains(t, result.Messages[2], "套利仓：生成建议时发生错误")
	assert.Equal(t, 1, failures)
}

type failingTrades struct{}

func (failingTrades) RecordTx(*sql.Tx, []domain.TradeAction) ([]domain.TradeAction, error) {
	return nil, errors.New("disk full")
}

type failingHoldings struct {
	HoldingsStore
	failing domain.BucketType
}

func (b failingHoldings) SaveTx(tx *sql.Tx, bucket domain.BucketType, holdings []domain.Holding) error {
	if bucket == b.failing {
		return errors.New("constraint failed")
	}
	return b.HoldingsStore.SaveTx(tx, bucket, holdings)
}

func TestService_Run_CommitFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *serviceFixture)
		wantErr string
	}{
		{
			name:    "trade log write fails",
			setup:   func(f *serviceFixture) { f.service.deps.Trades = failingTrades{} },
			wantErr: "failed to record trade actions: disk full",
		},
		{
			name: "holdings write fails after trades",
			setup: func(f *serviceFixture) {
				f.service.deps.Holdings = failingHoldings{HoldingsStore: f.holdings, failing: domain.BucketSector}
			},
			wantErr: "failed to save sector holdings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			before, err := f.holdings.All()
			require.NoError(t, err)
			tt.setup(f)

			_, err = f.service.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			after, err := f.holdings.All()
			require.NoError(t, err)
			require.Len(t, after, len(before))
			for i := range before {
				assert.Equal(t, before[i].Codes(), after[i].Codes(), "holdings of %s", before[i].Bucket)
			}

			logged, err := f.trades.Recent(1000)
			require.NoError(t, err)
			assert.Empty(t, logged, "no trade action survives a failed commit")
		})
	}
}

func TestService_Run_Cancelled(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
