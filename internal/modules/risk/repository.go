package risk

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// Repository is the append-only risk history
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new risk history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "risk_log").Logger(),
	}
}

// Record appends a snapshot
func (r *Repository) Record(s domain.RiskSnapshot) error {
	query := `INSERT INTO risk_log
	          (id, recorded_at, portfolio_volatility, var_1d, max_drawdown_warning,
	           liquidity_risk, tracking_risk, correlation_risk, risk_score,
	           overall_level, alert, failed)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	failed := 0
	if s.Failed {
		failed = 1
	}

	_, err := r.db.Exec(query,
		s.ID,
		s.Time.Unix(),
		s.PortfolioVolatility,
		s.VaR1D,
		s.MaxDrawdownWarning,
		s.LiquidityRisk,
		s.TrackingRisk,
		s.CorrelationRisk,
		s.RiskScore,
		string(s.OverallLevel),
		s.Alert,
		failed,
	)
	if err != nil {
		return fmt.Errorf("failed to record risk snapshot: %w", err)
	}

	r.log.Debug().Str("id", s.ID).Str("level", string(s.OverallLevel)).Msg("Risk snapshot recorded")
	return nil
}

// Latest returns the newest snapshot or domain.ErrNotFound
func (r *Repository) Latest() (domain.RiskSnapshot, error) {
	snapshots, err := r.Recent(1)
	if err != nil {
		return domain.RiskSnapshot{}, err
	}
	if len(snapshots) == 0 {
		return domain.RiskSnapshot{}, domain.ErrNotFound
	}
	return snapshots[0], nil
}

// Recent returns up to limit snapshots, newest first
func (r *Repository) Recent(limit int) ([]domain.RiskSnapshot, error) {
	query := `SELECT id, recorded_at, portfolio_volatility, var_1d, max_drawdown_warning,
	                 liquidity_risk, tracking_risk, correlation_risk, risk_score,
	                 overall_level, alert, failed
	          FROM risk_log
	          ORDER BY recorded_at DESC, rowid DESC
	          LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk log: %w", err)
	}
	defer rows.Close()

	snapshots := []domain.RiskSnapshot{}
	for rows.Next() {
		var s domain.RiskSnapshot
		var recordedAt int64
		var level string
		var failed int

		if err := rows.Scan(
			&s.ID,
			&recordedAt,
			&s.PortfolioVolatility,
			&s.VaR1D,
			&s.MaxDrawdownWarning,
			&s.LiquidityRisk,
			&s.TrackingRisk,
			&s.CorrelationRisk,
			&s.RiskScore,
			&level,
			&s.Alert,
			&failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan risk snapshot: %w", err)
		}

		s.Time = time.Unix(recordedAt, 0).UTC()
		s.OverallLevel = domain.RiskLevel(level)
		s.Failed = failed != 0
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
