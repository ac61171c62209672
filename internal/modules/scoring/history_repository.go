package scoring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const dateLayout = "2006-01-02"

// HistoryRepository persists daily score snapshots
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new score history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "score_history").Logger(),
	}
}

// Record stores the ranked scores for date. A second call on the same date
// replaces that day's rows for the same codes.
func (r *HistoryRepository) Record(date time.Time, scores []domain.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO score_history (date, code, name, score, rank)
	                         VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer stmt.Close()

	day := date.Format(dateLayout)
	for _, s := range scores {
		if _, err := stmt.Exec(day, s.Code, s.Name, s.Composite, s.Rank); err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", s.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score history: %w", err)
	}

	r.log.Debug().Str("date", day).Int("count", len(scores)).Msg("Score history recorded")
	return nil
}

// Latest returns the rows of the most recent recorded date ordered by rank
func (r *HistoryRepository) Latest() ([]domain.ScoreRecord, error) {
	var day sql.NullString
	if err := r.db.QueryRow("SELECT MAX(date) FROM score_history").Scan(&day); err != nil {
		return nil, fmt.Errorf("failed to query latest score date: %w", err)
	}
	if !day.Valid {
		return []domain.ScoreRecord{}, nil
	}
	return r.ForDate(day.String)
}

// ForDate returns the rows recorded on day (YYYY-MM-DD) ordered by rank
func (r *HistoryRepository) ForDate(day string) ([]domain.ScoreRecord, error) {
	rows, err := r.db.Query(`SELECT date, code, name, score, rank FROM score_history
	                         WHERE date = ? ORDER BY rank ASC, code ASC`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ScoreRecord, 0)
	for rows.Next() {
		var rec domain.ScoreRecord
		var date string
		if err := rows.Scan(&date, &rec.Code, &rec.Name, &rec.Score, &rec.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan score history: %w", err)
		}
		rec.Date, _ = time.Parse(dateLayout, date)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteBefore removes rows dated before cutoff and returns the count
func (r *HistoryRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM score_history WHERE date < ?", cutoff.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune score history: %w", err)
	}
	return res.RowsAffected()
}
