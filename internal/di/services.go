package di

import (
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/clients/wecom"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/strategy"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/universe"
)

// InitializeServices creates the notifier, event plumbing, importer and
// strategy service
func InitializeServices(container *Container, log zerolog.Logger) {
	cfg := container.Config

	container.Metrics = metrics.New()
	container.EventManager = events.NewManager(log)

	container.Notifier = wecom.NewClient(cfg.WebhookURL, cfg.Environment, container.Metrics, log)
	if !container.Notifier.Enabled() {
		log.Warn().Msg("WECOM_WEBHOOK not set, notifications are disabled")
	}

	// Computation failures and errors reach the webhook through the forwarder
	container.Forwarder = wecom.NewForwarder(container.Notifier, log)
	container.Forwarder.Attach(container.EventManager)

	container.Importer = universe.NewImporter(
		cfg.ImportDir,
		cfg.CatalogueMaxAgeDay,
		container.CatalogueRepo,
		container.PriceRepo,
		log,
	)

	container.StrategyService = strategy.NewService(
		container.Strategy,
		strategy.Options{
			Benchmark:  cfg.BenchmarkCode,
			MinScore:   cfg.MinScore,
			TopPercent: cfg.ScoreTopPercent,
		},
		strategy.Deps{
			DB:        container.DB.Conn(),
			Catalogue: container.CatalogueRepo,
			Prices:    container.PriceRepo,
			Holdings:  container.HoldingsRepo,
			Trades:    container.LedgerRepo,
			Scores:    container.ScoreHistory,
			RiskLog:   container.RiskRepo,
			Regimes:   container.RegimeHistory,
			Events:    container.EventManager,
			Metrics:   container.Metrics,
		},
		log,
	)

	log.Debug().Msg("Services initialized")
}
