package strategy

import (
	"database/sql"
	"time"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
)

// CatalogueReader lists the tradable universe
type CatalogueReader interface {
	GetAll() ([]domain.CatalogueEntry, error)
}

// PriceReader loads price series and fund size history
type PriceReader interface {
	GetPriceSeries(code string) (domain.PriceSeries, error)
	SizeHistory(code string) ([]float64, error)
}

// HoldingsStore reads bucket holdings and rewrites them inside a transaction
type HoldingsStore interface {
	All() ([]domain.BucketHolding, error)
	SaveTx(tx *sql.Tx, bucket domain.BucketType, holdings []domain.Holding) error
}

// TradeRecorder appends trade actions inside a transaction
type TradeRecorder interface {
	RecordTx(tx *sql.Tx, actions []domain.TradeAction) ([]domain.TradeAction, error)
}

// ScoreRecorder appends the day's ranked scores
type ScoreRecorder interface {
	Record(date time.Time, scores []domain.Score) error
}

// RiskRecorder appends risk snapshots
type RiskRecorder interface {
	Record(s domain.RiskSnapshot) error
}

// RegimeRecorder appends regime classifications
type RegimeRecorder interface {
	Record(benchmark string, c market_regime.Classification, at time.Time) error
}

// EventEmitter publishes pipeline events
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}
