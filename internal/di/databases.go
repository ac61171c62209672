package di

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/database"
)

// InitializeDatabase opens the sqlite database and applies the schema
func InitializeDatabase(cfg *config.Config, log zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Trade and risk logs are an audit trail, so the whole file uses the safest profile
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath,
		Profile: database.ProfileLedger,
		Name:    "karmy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
	return db, nil
}
