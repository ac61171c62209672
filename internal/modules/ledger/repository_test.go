package ledger

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/database"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

func setupLedgerDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Apply(db))
	t.Cleanup(func() { db.Close() })
	return db
}

var ledgerNow = time.Date(2024, 6, 3, 6, 50, 0, 0, time.UTC)

func TestRepository_RecordAndRecent(t *testing.T) {
	repo := NewRepository(setupLedgerDB(t), zerolog.Nop())

	stored, err := repo.Record([]domain.TradeAction{
		{RunID: "run-1", TimeUTC: ledgerNow, Bucket: domain.BucketStable, Code: "510300", Name: "沪深300ETF",
			Price: 3.8765, Quantity: domain.QuantityAll, Action: domain.ActionSell, Note: "调仓"},
		{ID: "fixed", RunID: "run-1", TimeUTC: ledgerNow, Bucket: domain.BucketStable, Code: "510500",
			Price: 5.8, Quantity: domain.QuantityByWeight, Action: domain.ActionBuy},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.NotEmpty(t, stored[0].ID, "generated id")
	assert.Equal(t, "fixed", stored[1].ID)
	assert.Equal(t, ledgerNow.In(domain.Beijing), stored[0].TimeBeijing)

	_, err = repo.Record([]domain.TradeAction{
		{RunID: "run-2", TimeUTC: ledgerNow.Add(24 * time.Hour), Bucket: domain.BucketGrowth, Code: "159915",
			Price: 2, Quantity: domain.QuantityPartial, Action: domain.ActionReduce},
	})
	require.NoError(t, err)

	recent, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "159915", recent[0].Code, "newest first")
	assert.Equal(t, "510500", recent[1].Code, "later insert wins a time tie")

	run, err := repo.ForRun("run-1")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, 3.877, run[0].Price, "price stored with three decimals")
	assert.Equal(t, domain.ActionSell, run[0].Action)
	assert.Equal(t, domain.BucketStable, run[0].Bucket)
	assert.Equal(t, domain.QuantityAll, run[0].Quantity)
	assert.True(t, ledgerNow.Equal(run[0].TimeUTC))
	assert.True(t, ledgerNow.Equal(run[0].TimeBeijing))
}

func TestRepository_EmptyAndDuplicate(t *testing.T) {
	repo := NewRepository(setupLedgerDB(t), zerolog.Nop())

	stored, err := repo.Record(nil)
	require.NoError(t, err)
	assert.Empty(t, stored)

	recent, err := repo.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, recent)

	action := domain.TradeAction{ID: "dup", RunID: "r", TimeUTC: ledgerNow, Bucket: domain.BucketStable,
		Code: "510300", Action: domain.ActionBuy}
	_, err = repo.Record([]domain.TradeAction{action})
	require.NoError(t, err)
	_, err = repo.Record([]domain.TradeAction{action})
	assert.Error(t, err, "trade log is append-only")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "3.800", FormatPrice(3.8))
	assert.Equal(t, "0.001", FormatPrice(0.0005))
	assert.Equal(t, "12.346", FormatPrice(12.3456))
}
