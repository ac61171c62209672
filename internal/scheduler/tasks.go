package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/clients/wecom"
	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/strategy"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/universe"
)

// BatchNotifier delivers a set of messages as one numbered batch
type BatchNotifier interface {
	wecom.Notifier
	NotifyAll(ctx context.Context, messages []string, category wecom.Category) bool
}

// StrategyRunner runs one strategy pass
type StrategyRunner interface {
	Run(ctx context.Context) (*strategy.Result, error)
}

// CatalogueImporter refreshes the catalogue and daily prices
type CatalogueImporter interface {
	Run(ctx context.Context, force bool) (*universe.ImportResult, error)
}

// PositionJob computes today's positions and pushes the advice
type PositionJob struct {
	strategy StrategyRunner
	notifier BatchNotifier
	log      zerolog.Logger
}

// NewPositionJob creates the calculate_position job
func NewPositionJob(s StrategyRunner, notifier BatchNotifier, log zerolog.Logger) *PositionJob {
	return &PositionJob{
		strategy: s,
		notifier: notifier,
		log:      log.With().Str("job", TaskCalculatePosition).Logger(),
	}
}

// Name returns the job name for scheduler
func (j *PositionJob) Name() string {
	return TaskCalculatePosition
}

// Run executes the strategy and sends every message. An undelivered push
// returns ErrNotDelivered together with the computed result.
func (j *PositionJob) Run(ctx context.Context) (interface{}, error) {
	result, err := j.strategy.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate positions: %w", err)
	}

	if !j.notifier.NotifyAll(ctx, result.Messages, wecom.CategoryPosition) {
		j.log.Warn().Int("messages", len(result.Messages)).Msg("Position advice was not delivered")
		return result, fmt.Errorf("%w: %d position messages", ErrNotDelivered, len(result.Messages))
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("messages", len(result.Messages)).
		Int("actions", len(result.Actions)).
		Msg("Position advice delivered")
	return result, nil
}

// CatalogueJob imports the ETF catalogue and daily prices
type CatalogueJob struct {
	importer CatalogueImporter
	notifier wecom.Notifier
	force    bool
	now      domain.Clock
	log      zerolog.Logger
}

// NewCatalogueJob creates the update_etf_list job. notifier may be nil.
func NewCatalogueJob(importer CatalogueImporter, notifier wecom.Notifier, log zerolog.Logger) *CatalogueJob {
	return &CatalogueJob{
		importer: importer,
		notifier: notifier,
		now:      time.Now,
		log:      log.With().Str("job", TaskUpdateCatalogue).Logger(),
	}
}

// SetClock overrides the time source
func (j *CatalogueJob) SetClock(now domain.Clock) {
	j.now = now
}

// SetForce makes every run refresh the catalogue regardless of its age
func (j *CatalogueJob) SetForce(force bool) {
	j.force = force
}

// Name returns the job name for scheduler
func (j *CatalogueJob) Name() string {
	return TaskUpdateCatalogue
}

// Run imports and reports the outcome as a task notification
func (j *CatalogueJob) Run(ctx context.Context) (interface{}, error) {
	result, err := j.importer.Run(ctx, j.force)
	if err != nil {
		j.notify(ctx, TaskFailureMessage(TaskUpdateCatalogue, err, j.now()))
		return nil, fmt.Errorf("failed to update catalogue: %w", err)
	}

	count := result.Files
	message := fmt.Sprintf("已导入 %d 个价格文件，共 %d 条日线", result.Files, result.Bars)
	if result.CatalogueRefreshed {
		count = result.Entries
		message = fmt.Sprintf("ETF列表已更新，%s", message)
	}
	if len(result.Failed) > 0 {
		message = fmt.Sprintf("%s，%d 个文件失败", message, len(result.Failed))
	}

	j.notify(ctx, TaskSuccessMessage(TaskUpdateCatalogue, message, count, j.now()))
	return result, nil
}

func (j *CatalogueJob) notify(ctx context.Context, message string) {
	if j.notifier == nil {
		return
	}
	j.notifier.Notify(ctx, message, wecom.CategoryTask)
}

// TaskSuccessMessage renders a task completion notification
func TaskSuccessMessage(task, message string, count int, at time.Time) string {
	return fmt.Sprintf("✅ %s 任务执行成功\n• 消息: %s\n• 数量: %d只\n\n🕒 通知时间: %s",
		task, message, count, at.In(domain.Beijing).Format("2006-01-02 15:04:05"))
}

// TaskFailureMessage renders a task failure notification
func TaskFailureMessage(task string, err error, at time.Time) string {
	return fmt.Sprintf("❌ %s 任务执行失败\n• 错误: %s\n\n🕒 通知时间: %s",
		task, err, at.In(domain.Beijing).Format("2006-01-02 15:04:05"))
}

// walWarnFrames is the WAL size above which a checkpoint is overdue
const walWarnFrames = 1000

// DatabaseStatus is the outcome of a database check
type DatabaseStatus struct {
	Integrity    string `json:"integrity"`
	WALFrames    int    `json:"wal_frames"`
	Checkpointed int    `json:"checkpointed"`
}

// DatabaseCheckJob verifies integrity of the SQLite database and reports WAL growth
type DatabaseCheckJob struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDatabaseCheckJob creates the check_database job
func NewDatabaseCheckJob(db *sql.DB, log zerolog.Logger) *DatabaseCheckJob {
	return &DatabaseCheckJob{
		db:  db,
		log: log.With().Str("job", TaskCheckDatabase).Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DatabaseCheckJob) Name() string {
	return TaskCheckDatabase
}

// Run executes PRAGMA integrity_check followed by a passive WAL checkpoint
func (j *DatabaseCheckJob) Run(ctx context.Context) (interface{}, error) {
	status := &DatabaseStatus{}

	rows, err := j.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("integrity check failed: %w", err)
	}
	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			rows.Close()
			return nil, fmt.Errorf("integrity check failed: %w", err)
		}
		problems = append(problems, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("integrity check failed: %w", err)
	}

	status.Integrity = strings.Join(problems, "; ")
	if status.Integrity != "ok" {
		// Corruption cannot be repaired automatically
		j.log.Error().Str("result", status.Integrity).Msg("Database integrity check failed")
		return status, fmt.Errorf("integrity check returned: %s", status.Integrity)
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy int
	err = j.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &status.WALFrames, &status.Checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to check WAL checkpoint")
		return status, nil
	}

	if status.WALFrames > walWarnFrames {
		j.log.Warn().
			Int("wal_frames", status.WALFrames).
			Int("checkpointed", status.Checkpointed).
			Msg("WAL file is large, checkpoint may be needed")
	} else {
		j.log.Info().Int("wal_frames", status.WALFrames).Msg("Database check passed")
	}
	return status, nil
}
