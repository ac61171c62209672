package di

import (
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/ledger"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/portfolio"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/risk"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/universe"
	"github.com/karmyshunde-sudo/karmy-gold/internal/scheduler"
)

// InitializeRepositories creates every repository on the container's database
func InitializeRepositories(container *Container, log zerolog.Logger) {
	conn := container.DB.Conn()

	container.CatalogueRepo = universe.NewCatalogueRepository(conn, log)
	container.PriceRepo = universe.NewPriceRepository(conn, log)
	container.HoldingsRepo = portfolio.NewHoldingsRepository(conn, log)
	container.LedgerRepo = ledger.NewRepository(conn, log)
	container.RiskRepo = risk.NewRepository(conn, log)
	container.ScoreHistory = scoring.NewHistoryRepository(conn, log)
	container.RegimeHistory = market_regime.NewHistory(conn, log)
	container.RunRepo = scheduler.NewRunRepository(conn, log)

	log.Debug().Msg("Repositories initialized")
}
