package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/di"
	"github.com/karmyshunde-sudo/karmy-gold/internal/scheduler"
	"github.com/karmyshunde-sudo/karmy-gold/internal/server"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/logger"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "karmy-gold",
		Short:         "ETF strategy engine: regime, scoring, position advice",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var task string
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task and print its outcome as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if task == "" {
				task = cfg.Task
			}
			if task == "" {
				return errors.New("no task given: use --task or the TASK environment variable")
			}

			// stdout carries the JSON outcome, logs go to stderr
			log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: os.Stderr})
			logger.SetGlobalLogger(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runTask(ctx, cfg, task, force, cmd.OutOrStdout(), log)
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task to run (calculate_position, update_etf_list, clean_data, check_database)")
	cmd.Flags().BoolVar(&force, "force", false, "refresh the ETF catalogue regardless of its age")
	return cmd
}

func runTask(ctx context.Context, cfg *config.Config, task string, force bool, out io.Writer, log zerolog.Logger) error {
	container, err := di.Wire(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	container.CatalogueJob.SetForce(force)
	container.Forwarder.Start(ctx)
	defer container.Forwarder.Stop()

	log.Info().Str("task", task).Str("trigger", string(cfg.Trigger)).Msg("Running task")
	outcome, err := container.Runner.Execute(ctx, task, cfg.Trigger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outcome); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}

	switch outcome.Status {
	case scheduler.StatusError, scheduler.StatusFailed:
		return fmt.Errorf("task %s finished with status %s: %s", task, outcome.Status, outcome.Message)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cron scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
			logger.SetGlobalLogger(log)
			log.Info().Str("version", version).Msg("Starting karmy-gold")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	container, err := di.Wire(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	container.Forwarder.Start(ctx)
	defer container.Forwarder.Stop()

	container.Scheduler.Start(ctx)
	defer container.Scheduler.Stop()

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.HTTPPort,
		Health:   container.DB,
		Metrics:  container.Metrics,
		Tasks:    container.Runner,
		Runs:     container.RunRepo,
		Regimes:  container.RegimeHistory,
		Holdings: container.HoldingsRepo,
		Trades:   container.LedgerRepo,
		Risk:     container.RiskRepo,
		Scores:   container.ScoreHistory,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("karmy-gold stopped")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
