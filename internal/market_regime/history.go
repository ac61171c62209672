package market_regime

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// History records classified regimes so notifications and the API can show
// the current label and how it changed
type History struct {
	db  *sql.DB
	log zerolog.Logger
}

// HistoryEntry is a single regime record
type HistoryEntry struct {
	ID         int64         `json:"id"`
	RecordedAt time.Time     `json:"recorded_at"`
	Benchmark  string        `json:"benchmark"`
	Regime     domain.Regime `json:"regime"`
	Rule       string        `json:"rule"`
	Stats      Statistics    `json:"stats"`
}

// NewHistory creates a new regime history recorder
func NewHistory(db *sql.DB, log zerolog.Logger) *History {
	return &History{
		db:  db,
		log: log.With().Str("component", "regime_history").Logger(),
	}
}

// Record stores a classification
func (h *History) Record(benchmark string, c Classification, at time.Time) error {
	query := `INSERT INTO regime_history
	          (recorded_at, benchmark, regime, rule, short_trend, mid_trend, momentum, volatility, observations)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := h.db.Exec(query,
		at.Unix(),
		benchmark,
		string(c.Regime),
		c.Rule,
		c.Stats.ShortTrend,
		c.Stats.MidTrend,
		c.Stats.Momentum,
		c.Stats.Volatility,
		c.Stats.Observations,
	)
	if err != nil {
		return err
	}

	h.log.Debug().
		Str("benchmark", benchmark).
		Str("regime", string(c.Regime)).
		Msg("Recorded market regime")

	return nil
}

// Latest returns the most recent entry, nil if there is no history yet
func (h *History) Latest() (*HistoryEntry, error) {
	entries, err := h.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Changed reports whether the latest two entries carry different regimes
func (h *History) Changed() (bool, error) {
	entries, err := h.Recent(2)
	if err != nil {
		return false, err
	}
	if len(entries) < 2 {
		return false, nil
	}
	return entries[0].Regime != entries[1].Regime, nil
}

// Recent returns up to limit entries, newest first
func (h *History) Recent(limit int) ([]HistoryEntry, error) {
	query := `SELECT id, recorded_at, benchmark, regime, rule,
	                 short_trend, mid_trend, momentum, volatility, observations
	          FROM regime_history
	          ORDER BY id DESC
	          LIMIT ?`

	rows, err := h.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var recordedAtUnix sql.NullInt64
		var regime string

		if err := rows.Scan(
			&entry.ID,
			&recordedAtUnix,
			&entry.Benchmark,
			&regime,
			&entry.Rule,
			&entry.Stats.ShortTrend,
			&entry.Stats.MidTrend,
			&entry.Stats.Momentum,
			&entry.Stats.Volatility,
			&entry.Stats.Observations,
		); err != nil {
			return nil, err
		}

		entry.Regime = domain.ParseRegime(regime)
		if recordedAtUnix.Valid {
			entry.RecordedAt = time.Unix(recordedAtUnix.Int64, 0).UTC()
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
