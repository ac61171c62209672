// Package portfolio stores the current holdings of every bucket.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/database"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const dateLayout = "2006-01-02"

// HoldingsRepository handles holdings database operations
type HoldingsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingsRepository creates a new holdings repository
func NewHoldingsRepository(db *sql.DB, log zerolog.Logger) *HoldingsRepository {
	return &HoldingsRepository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
	}
}

// Get returns the holdings of bucket ordered by code. An empty bucket is
// returned with no holdings, not an error.
func (r *HoldingsRepository) Get(bucket domain.BucketType) (domain.BucketHolding, error) {
	rows, err := r.db.Query(`SELECT code, name, cost_price, entry_date, quantity, weight
	                         FROM holdings WHERE bucket = ? ORDER BY code`, string(bucket))
	if err != nil {
		return domain.BucketHolding{}, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	result := domain.BucketHolding{Bucket: bucket, Holdings: []domain.Holding{}}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return domain.BucketHolding{}, err
		}
		result.Holdings = append(result.Holdings, h)
	}
	return result, rows.Err()
}

// All returns the holdings of every known bucket in processing order
func (r *HoldingsRepository) All() ([]domain.BucketHolding, error) {
	all := make([]domain.BucketHolding, 0, len(domain.AllBuckets))
	for _, bucket := range domain.AllBuckets {
		h, err := r.Get(bucket)
		if err != nil {
			return nil, err
		}
		all = append(all, h)
	}
	return all, nil
}

// Save replaces the holdings of bucket in one transaction
func (r *HoldingsRepository) Save(bucket domain.BucketType, holdings []domain.Holding) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return r.SaveTx(tx, bucket, holdings)
	})
	if err != nil {
		return err
	}

	r.log.Info().Str("bucket", string(bucket)).Int("holdings", len(holdings)).Msg("Holdings saved")
	return nil
}

// SaveTx replaces the holdings of bucket inside the caller's transaction
func (r *HoldingsRepository) SaveTx(tx *sql.Tx, bucket domain.BucketType, holdings []domain.Holding) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	if _, err := tx.Exec("DELETE FROM holdings WHERE bucket = ?", string(bucket)); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	for _, h := range holdings {
		_, err := tx.Exec(`INSERT INTO holdings (bucket, code, name, cost_price, entry_date, quantity, weight)
		                   VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(bucket), domain.CanonicalCode(h.Code), h.Name, h.CostPrice,
			h.EntryDate.Format(dateLayout), h.Quantity, h.Weight)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Code, err)
		}
	}
	return nil
}

func scanHolding(rows *sql.Rows) (domain.Holding, error) {
	var h domain.Holding
	var entryDate string
	if err := rows.Scan(&h.Code, &h.Name, &h.CostPrice, &entryDate, &h.Quantity, &h.Weight); err != nil {
		return h, fmt.Errorf("failed to scan holding: %w", err)
	}
	if t, err := time.Parse(dateLayout, entryDate); err == nil {
		h.EntryDate = t
	}
	return h, nil
}
