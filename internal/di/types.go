// Package di wires databases, repositories, services and tasks into a Container.
package di

import (
	"github.com/karmyshunde-sudo/karmy-gold/internal/clients/wecom"
	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/database"
	"github.com/karmyshunde-sudo/karmy-gold/internal/events"
	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/cleanup"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/ledger"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/portfolio"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/risk"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/strategy"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/universe"
	"github.com/karmyshunde-sudo/karmy-gold/internal/scheduler"
)

// Container holds all application dependencies. It is the single source of
// truth for service instances and is handed to the CLI and HTTP server.
type Container struct {
	Config   *config.Config
	Strategy config.Strategy

	// Database
	DB *database.DB

	// Repositories
	CatalogueRepo *universe.CatalogueRepository
	PriceRepo     *universe.PriceRepository
	HoldingsRepo  *portfolio.HoldingsRepository
	LedgerRepo    *ledger.Repository
	RiskRepo      *risk.Repository
	ScoreHistory  *scoring.HistoryRepository
	RegimeHistory *market_regime.History
	RunRepo       *scheduler.RunRepository

	// Services
	Metrics         *metrics.Metrics
	EventManager    *events.Manager
	Notifier        *wecom.Client
	Forwarder       *wecom.Forwarder
	Importer        *universe.Importer
	StrategyService *strategy.Service

	// Tasks
	PositionJob  *scheduler.PositionJob
	CatalogueJob *scheduler.CatalogueJob
	RetentionJob *cleanup.RetentionJob
	DBCheckJob   *scheduler.DatabaseCheckJob
	Runner       *scheduler.Runner
	Scheduler    *scheduler.Scheduler
}

// Close releases the database connection
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
