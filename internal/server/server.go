// Package server provides the HTTP server and routing for karmy-gold.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	ledgerhandlers "github.com/karmyshunde-sudo/karmy-gold/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/karmyshunde-sudo/karmy-gold/internal/modules/portfolio/handlers"
	riskhandlers "github.com/karmyshunde-sudo/karmy-gold/internal/modules/risk/handlers"
	scoringhandlers "github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring/handlers"
	"github.com/karmyshunde-sudo/karmy-gold/internal/scheduler"
)

// HealthChecker reports whether the database is reachable
type HealthChecker interface {
	QuickCheck(ctx context.Context) error
}

// TaskExecutor runs registered tasks on demand
type TaskExecutor interface {
	Has(name string) bool
	Execute(ctx context.Context, name string, trigger config.Trigger) (*scheduler.Outcome, error)
}

// RunLister lists recent task runs
type RunLister interface {
	Recent(limit int) ([]scheduler.Run, error)
}

// RegimeReader reads the classified regime history
type RegimeReader interface {
	Latest() (*market_regime.HistoryEntry, error)
	Recent(limit int) ([]market_regime.HistoryEntry, error)
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	DevMode  bool
	Health   HealthChecker
	Metrics  *metrics.Metrics
	Tasks    TaskExecutor
	Runs     RunLister
	Regimes  RegimeReader
	Holdings portfoliohandlers.HoldingsReader
	Trades   ledgerhandlers.TradeReader
	Risk     riskhandlers.SnapshotReader
	Scores   scoringhandlers.ScoreReader
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config

	system *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}
	s.system = NewSystemHandlers(cfg.Health, cfg.Tasks, cfg.Runs, cfg.Regimes, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.system.HandleHealth)

	if s.cfg.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.cfg.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		s.system.RegisterRoutes(r)

		if s.cfg.Holdings != nil {
			portfoliohandlers.NewHandler(s.cfg.Holdings, s.log).RegisterRoutes(r)
		}
		if s.cfg.Trades != nil {
			ledgerhandlers.NewHandler(s.cfg.Trades, s.log).RegisterRoutes(r)
		}
		if s.cfg.Risk != nil {
			riskhandlers.NewHandler(s.cfg.Risk, s.log).RegisterRoutes(r)
		}
		if s.cfg.Scores != nil {
			scoringhandlers.NewHandler(s.cfg.Scores, s.log).RegisterRoutes(r)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and waits for tasks started
// through the API
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	err := s.server.Shutdown(ctx)
	s.system.Wait()
	return err
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// background tracks task goroutines started by handlers
type background struct {
	wg sync.WaitGroup
}

func (b *background) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *background) Wait() {
	b.wg.Wait()
}
