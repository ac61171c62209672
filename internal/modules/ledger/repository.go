// Package ledger keeps the append-only log of intended trade actions.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karmyshunde-sudo/karmy-gold/internal/database"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// PricePlaces is the number of decimals stored for ETF prices
const PricePlaces = 3

// DefaultLimit caps Recent when the caller passes a non-positive limit
const DefaultLimit = 100

// Repository stores trade actions. Rows are never updated or deleted.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new trade log repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "trade_log").Logger(),
	}
}

// Record appends actions in one transaction. Actions without an ID get a
// fresh UUID; the returned slice carries the stored IDs.
func (r *Repository) Record(actions []domain.TradeAction) ([]domain.TradeAction, error) {
	if len(actions) == 0 {
		return []domain.TradeAction{}, nil
	}

	var stored []domain.TradeAction
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var err error
		stored, err = r.RecordTx(tx, actions)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Int("count", len(stored)).Str("run_id", stored[0].RunID).Msg("Trade actions recorded")
	return stored, nil
}

// RecordTx appends actions inside the caller's transaction
func (r *Repository) RecordTx(tx *sql.Tx, actions []domain.TradeAction) ([]domain.TradeAction, error) {
	stored := make([]domain.TradeAction, len(actions))
	copy(stored, actions)
	if len(stored) == 0 {
		return stored, nil
	}

	stmt, err := tx.Prepare(`INSERT INTO trade_log
		(id, run_id, time_utc, time_beijing, bucket, code, name, price, quantity, action, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for i := range stored {
		a := &stored[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.TimeBeijing.IsZero() {
			a.TimeUTC, a.TimeBeijing = domain.DualTime(a.TimeUTC)
		}

		_, err := stmt.Exec(
			a.ID, a.RunID,
			a.TimeUTC.UTC().Format(time.RFC3339),
			a.TimeBeijing.In(domain.Beijing).Format(time.RFC3339),
			string(a.Bucket), a.Code, a.Name,
			FormatPrice(a.Price), a.Quantity, string(a.Action), a.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert trade action %s: %w", a.Code, err)
		}
	}
	return stored, nil
}

// Recent returns up to limit actions, newest first
func (r *Repository) Recent(limit int) ([]domain.TradeAction, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.query(`SELECT id, run_id, time_utc, time_beijing, bucket, code, name, price, quantity, action, note
	                FROM trade_log ORDER BY time_utc DESC, rowid DESC LIMIT ?`, limit)
}

// ForRun returns the actions of one strategy pass in insertion order
func (r *Repository) ForRun(runID string) ([]domain.TradeAction, error) {
	return r.query(`SELECT id, run_id, time_utc, time_beijing, bucket, code, name, price, quantity, action, note
	                FROM trade_log WHERE run_id = ? ORDER BY rowid ASC`, runID)
}

func (r *Repository) query(q string, args ...interface{}) ([]domain.TradeAction, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade log: %w", err)
	}
	defer rows.Close()

	actions := make([]domain.TradeAction, 0)
	for rows.Next() {
		var a domain.TradeAction
		var timeUTC, timeBeijing, bucket, price, action string
		if err := rows.Scan(&a.ID, &a.RunID, &timeUTC, &timeBeijing, &bucket, &a.Code, &a.Name,
			&price, &a.Quantity, &action, &a.Note); err != nil {
			return nil, fmt.Errorf("failed to scan trade action: %w", err)
		}

		a.Bucket = domain.BucketType(bucket)
		a.Action = domain.ActionType(action)
		a.TimeUTC, _ = time.Parse(time.RFC3339, timeUTC)
		a.TimeBeijing, _ = time.Parse(time.RFC3339, timeBeijing)
		if d, err := decimal.NewFromString(price); err == nil {
			a.Price = d.InexactFloat64()
		} else {
			r.log.Warn().Str("id", a.ID).Str("price", price).Msg("Unparseable stored price")
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// FormatPrice renders a price with PricePlaces decimals
func FormatPrice(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(PricePlaces)
}
