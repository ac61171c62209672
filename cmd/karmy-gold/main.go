// Package main is the entry point for karmy-gold, the ETF strategy engine.
//
// It runs as a one-shot task runner (run --task) for CI schedulers, or as a
// long-running service (serve) with its own cron scheduler and HTTP API.
package main

import (
	"os"

	"github.com/karmyshunde-sudo/karmy-gold/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log := logger.New(logger.Config{Level: "error", Output: os.Stderr})
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
