package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// PriceRepository stores daily bars and fund size observations
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "etf_daily").Logger(),
	}
}

// UpsertBars writes bars for code, replacing existing rows on the same date
func (r *PriceRepository) UpsertBars(code string, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	code = domain.CanonicalCode(code)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO etf_daily
		(code, date, open, close, high, low, volume, amount,
		 index_close, tracking_error, spread, bid_volume, ask_volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(
			code,
			b.Date.Format(dateLayout),
			b.Open, b.Close, b.High, b.Low, b.Volume, b.Amount,
			nullable(b.IndexClose),
			nullable(b.TrackingError),
			nullable(b.Spread),
			nullable(b.BidVolume),
			nullable(b.AskVolume),
			nullable(b.Turnover),
		); err != nil {
			return fmt.Errorf("failed to upsert bar %s %s: %w", code, b.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}

	r.log.Debug().Str("code", code).Int("bars", len(bars)).Msg("Bars upserted")
	return nil
}

// GetPriceSeries returns all bars of code in date order. An unknown code
// yields an empty series, not an error.
func (r *PriceRepository) GetPriceSeries(code string) (domain.PriceSeries, error) {
	code = domain.CanonicalCode(code)

	rows, err := r.db.Query(`SELECT date, open, close, high, low, volume, amount,
	                                index_close, tracking_error, spread, bid_volume, ask_volume, turnover
	                         FROM etf_daily WHERE code = ? ORDER BY date ASC`, code)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to query bars for %s: %w", code, err)
	}
	defer rows.Close()

	series := domain.PriceSeries{Code: code, Bars: []domain.PriceBar{}}
	for rows.Next() {
		var b domain.PriceBar
		var date string
		var indexClose, trackingError, spread, bidVolume, askVolume, turnover sql.NullFloat64

		if err := rows.Scan(&date, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume, &b.Amount,
			&indexClose, &trackingError, &spread, &bidVolume, &askVolume, &turnover); err != nil {
			return domain.PriceSeries{}, fmt.Errorf("failed to scan bar: %w", err)
		}

		b.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			r.log.Warn().Str("code", code).Str("date", date).Msg("Skipping bar with malformed date")
			continue
		}
		b.IndexClose = optional(indexClose)
		b.TrackingError = optional(trackingError)
		b.Spread = optional(spread)
		b.BidVolume = optional(bidVolume)
		b.AskVolume = optional(askVolume)
		b.Turnover = optional(turnover)

		series.Bars = append(series.Bars, b)
	}

	return series, rows.Err()
}

// Codes returns every code with at least one bar
func (r *PriceRepository) Codes() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT code FROM etf_daily ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query price codes: %w", err)
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// RecordSize stores the fund size of code observed on date
func (r *PriceRepository) RecordSize(code string, date time.Time, fundSize float64) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO etf_size_history (code, date, fund_size) VALUES (?, ?, ?)`,
		domain.CanonicalCode(code), date.Format(dateLayout), fundSize)
	if err != nil {
		return fmt.Errorf("failed to record fund size: %w", err)
	}
	return nil
}

// SizeHistory returns the fund sizes of code in date order
func (r *PriceRepository) SizeHistory(code string) ([]float64, error) {
	rows, err := r.db.Query(`SELECT fund_size FROM etf_size_history WHERE code = ? ORDER BY date ASC`,
		domain.CanonicalCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to query size history: %w", err)
	}
	defer rows.Close()

	sizes := []float64{}
	for rows.Next() {
		var size float64
		if err := rows.Scan(&size); err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, rows.Err()
}

// DeleteBarsBefore removes bars dated before cutoff
func (r *PriceRepository) DeleteBarsBefore(cutoff time.Time) (int64, error) {
	return r.deleteBefore("etf_daily", cutoff)
}

// DeleteSizesBefore removes size observations dated before cutoff
func (r *PriceRepository) DeleteSizesBefore(cutoff time.Time) (int64, error) {
	return r.deleteBefore("etf_size_history", cutoff)
}

func (r *PriceRepository) deleteBefore(table string, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM "+table+" WHERE date < ?", cutoff.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return result.RowsAffected()
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optional(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
