package di

import (
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/cleanup"
	"github.com/karmyshunde-sudo/karmy-gold/internal/scheduler"
)

// RegisterJobs creates the tasks and registers them with the runner and
// the cron scheduler
func RegisterJobs(container *Container, log zerolog.Logger) error {
	container.PositionJob = scheduler.NewPositionJob(container.StrategyService, container.Notifier, log)
	container.CatalogueJob = scheduler.NewCatalogueJob(container.Importer, container.Notifier, log)
	container.RetentionJob = cleanup.NewRetentionJob(
		container.PriceRepo,
		container.ScoreHistory,
		container.RunRepo,
		container.Notifier,
		container.Strategy.Retention,
		log,
	)
	container.RetentionJob.SetCheckpointer(container.DB)
	container.DBCheckJob = scheduler.NewDatabaseCheckJob(container.DB.Conn(), log)

	runner := scheduler.NewRunner(container.RunRepo, container.EventManager, container.Notifier, container.Metrics, log)
	// Only the position push is limited to one successful run per day
	runner.Register(container.PositionJob, scheduler.Policy{OncePerDay: true})
	runner.Register(container.CatalogueJob, scheduler.Policy{})
	runner.Register(container.RetentionJob, scheduler.Policy{})
	runner.Register(container.DBCheckJob, scheduler.Policy{})
	container.Runner = runner

	container.Scheduler = scheduler.New(runner, log)
	if err := container.Scheduler.AddSchedules(scheduler.DefaultSchedules); err != nil {
		return err
	}

	log.Debug().Strs("tasks", runner.Names()).Msg("Jobs registered")
	return nil
}
