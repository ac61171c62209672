package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Load strategy parameters
// 2. Initialize database
// 3. Initialize repositories
// 4. Initialize services
// 5. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	strategyParams, err := config.LoadStrategy(cfg.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy parameters: %w", err)
	}

	db, err := InitializeDatabase(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Strategy: strategyParams,
		DB:       db,
	}

	InitializeRepositories(container, log)
	InitializeServices(container, log)

	if err := RegisterJobs(container, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
