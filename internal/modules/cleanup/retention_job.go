// Package cleanup provides data retention and maintenance functionality.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/clients/wecom"
	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// Scheduled runs of the job are only allowed inside this Beijing window
const (
	WindowStartHour    = 1
	WindowLengthMinute = 30
)

// PriceStore prunes price and size history
type PriceStore interface {
	DeleteBarsBefore(cutoff time.Time) (int64, error)
	DeleteSizesBefore(cutoff time.Time) (int64, error)
}

// ScoreStore prunes score history
type ScoreStore interface {
	DeleteBefore(cutoff time.Time) (int64, error)
}

// RunStore prunes the task run log
type RunStore interface {
	DeleteBefore(cutoff time.Time) (int64, error)
}

// Checkpointer truncates the write-ahead log after large deletes
type Checkpointer interface {
	WALCheckpoint() error
}

// TableResult is the outcome of pruning one table
type TableResult struct {
	Table   string    `json:"table"`
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// Report is the outcome of one retention pass
type Report struct {
	Tables []TableResult `json:"tables"`
	Total  int64         `json:"total"`
}

// Deleted returns the rows removed from table
func (r Report) Deleted(table string) int64 {
	for _, t := range r.Tables {
		if t.Table == table {
			return t.Deleted
		}
	}
	return 0
}

// RetentionJob deletes history older than the configured retention.
// trade_log, risk_log and holdings are never pruned.
type RetentionJob struct {
	prices    PriceStore
	scores    ScoreStore
	runs      RunStore
	notifier  wecom.Notifier
	wal       Checkpointer
	retention config.RetentionDays
	now       domain.Clock
	log       zerolog.Logger
}

// NewRetentionJob creates the clean_data job. notifier may be nil.
func NewRetentionJob(prices PriceStore, scores ScoreStore, runs RunStore, notifier wecom.Notifier, retention config.RetentionDays, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		prices:    prices,
		scores:    scores,
		runs:      runs,
		notifier:  notifier,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("job", "clean_data").Logger(),
	}
}

// SetClock overrides the time source
func (j *RetentionJob) SetClock(now domain.Clock) {
	j.now = now
}

// SetCheckpointer enables a WAL checkpoint after rows were deleted
func (j *RetentionJob) SetCheckpointer(c Checkpointer) {
	j.wal = c
}

// Name returns the job name for scheduler
func (j *RetentionJob) Name() string {
	return "clean_data"
}

// InWindow reports whether now falls inside the 01:00-01:30 Beijing window
func (j *RetentionJob) InWindow(now time.Time) bool {
	b := now.In(domain.Beijing)
	return b.Hour() == WindowStartHour && b.Minute() < WindowLengthMinute
}

// Run prunes every table. A failing table does not stop the others.
func (j *RetentionJob) Run(ctx context.Context) (interface{}, error) {
	now := j.now()
	j.log.Info().Msg("Starting data retention job")

	steps := []struct {
		table string
		days  int
		prune func(time.Time) (int64, error)
	}{
		{"etf_daily", j.retention.Prices, j.prices.DeleteBarsBefore},
		{"etf_size_history", j.retention.Prices, j.prices.DeleteSizesBefore},
		{"score_history", j.retention.Scores, j.scores.DeleteBefore},
		{"task_runs", j.retention.TaskRun, j.runs.DeleteBefore},
	}

	report := &Report{}
	var errs []error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result := TableResult{Table: step.table, Cutoff: cutoff(now, step.days)}
		deleted, err := step.prune(result.Cutoff)
		if err != nil {
			j.log.Error().Err(err).Str("table", step.table).Msg("Failed to prune table")
			result.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", step.table, err))
		} else {
			result.Deleted = deleted
			report.Total += deleted
			j.log.Info().
				Str("table", step.table).
				Int64("rows_deleted", deleted).
				Str("cutoff", result.Cutoff.Format("2006-01-02")).
				Msg("Table pruned")
		}
		report.Tables = append(report.Tables, result)
	}

	if j.wal != nil && report.Total > 0 {
		if err := j.wal.WALCheckpoint(); err != nil {
			j.log.Warn().Err(err).Msg("WAL checkpoint after cleanup failed")
		}
	}

	err := errors.Join(errs...)
	j.notify(ctx, report, err, now)

	j.log.Info().
		Int64("total_deleted", report.Total).
		Int("errors", len(errs)).
		Msg("Data retention job completed")

	if err != nil {
		return report, fmt.Errorf("cleanup completed with %d errors: %w", len(errs), err)
	}
	return report, nil
}

// cutoff is the start of the Beijing day days before now
func cutoff(now time.Time, days int) time.Time {
	b := now.In(domain.Beijing).AddDate(0, 0, -days)
	y, m, d := b.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, domain.Beijing)
}

func (j *RetentionJob) notify(ctx context.Context, report *Report, err error, now time.Time) {
	if j.notifier == nil {
		return
	}
	j.notifier.Notify(ctx, Summary(report, err, now), wecom.CategoryDataCleaning)
}

// Summary renders the notification text of a retention pass
func Summary(report *Report, err error, now time.Time) string {
	var b strings.Builder
	if err != nil {
		b.WriteString("❌ 数据清理任务部分失败\n")
	} else {
		b.WriteString("✅ 数据清理任务执行成功\n")
	}
	for _, t := range report.Tables {
		if t.Error != "" {
			fmt.Fprintf(&b, "• %s: 失败 (%s)\n", t.Table, t.Error)
			continue
		}
		fmt.Fprintf(&b, "• %s: 删除 %d 行 (早于 %s)\n", t.Table, t.Deleted, t.Cutoff.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\n🕒 清理时间: %s", now.In(domain.Beijing).Format("2006-01-02 15:04:05"))
	return b.String()
}
