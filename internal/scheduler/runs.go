package scheduler

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
)

// Run is one row of the task run log
type Run struct {
	ID         int64          `json:"id"`
	Task       string         `json:"task"`
	RunDate    string         `json:"run_date"`
	Trigger    config.Trigger `json:"trigger"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// RunRepository records task executions for per-day idempotence
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new task run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "task_runs").Logger(),
	}
}

// Start inserts a running row and returns its id
func (r *RunRepository) Start(task, runDate string, trigger config.Trigger, at time.Time) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO task_runs (task, run_date, trigger, status, started_at)
	                       VALUES (?, ?, ?, ?, ?)`,
		task, runDate, string(trigger), string(StatusRunning), at.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to record task start: %w", err)
	}
	return res.LastInsertId()
}

// Finish stores the final status of run id
func (r *RunRepository) Finish(id int64, status Status, errMsg string, at time.Time) error {
	_, err := r.db.Exec(`UPDATE task_runs SET status = ?, finished_at = ?, error = ? WHERE id = ?`,
		string(status), at.Unix(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to record task finish: %w", err)
	}
	return nil
}

// Completed reports whether task already succeeded on runDate
func (r *RunRepository) Completed(task, runDate string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM task_runs WHERE task = ? AND run_date = ? AND status = ?`,
		task, runDate, string(StatusSuccess)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query task runs: %w", err)
	}
	return n > 0, nil
}

// Recent returns up to limit runs, newest first
func (r *RunRepository) Recent(limit int) ([]Run, error) {
	rows, err := r.db.Query(`SELECT id, task, run_date, trigger, status, started_at, finished_at, error
	                         FROM task_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query task runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var trigger, status string
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&run.ID, &run.Task, &run.RunDate, &trigger, &status, &started, &finished, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		run.Trigger = config.Trigger(trigger)
		run.Status = Status(status)
		run.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteBefore removes runs started before cutoff
func (r *RunRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM task_runs WHERE started_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune task runs: %w", err)
	}
	return res.RowsAffected()
}
