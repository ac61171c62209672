package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/config"
)

// taskTimeout bounds a task started through the API
const taskTimeout = 15 * time.Minute

// SystemHandlers serves health, regime and task endpoints
type SystemHandlers struct {
	health  HealthChecker
	tasks   TaskExecutor
	runs    RunLister
	regimes RegimeReader
	bg      background
	log     zerolog.Logger
}

// NewSystemHandlers creates the system handlers. Any dependency may be nil,
// in which case its routes are not registered.
func NewSystemHandlers(health HealthChecker, tasks TaskExecutor, runs RunLister, regimes RegimeReader, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		health:  health,
		tasks:   tasks,
		runs:    runs,
		regimes: regimes,
		log:     log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers the system API routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	if h.regimes != nil {
		r.Get("/regime", h.HandleGetRegime)
		r.Get("/regime/history", h.HandleGetRegimeHistory)
	}
	r.Route("/tasks", func(r chi.Router) {
		if h.runs != nil {
			r.Get("/runs", h.HandleGetRuns)
		}
		if h.tasks != nil {
			r.Post("/{name}/run", func(w http.ResponseWriter, r *http.Request) {
				h.HandleRunTask(w, r, chi.URLParam(r, "name"))
			})
		}
	})
}

// HandleHealth handles GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.health != nil {
		if err := h.health.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["error"] = err.Error()
		}
	}

	h.writeJSON(w, status, body)
}

// HandleGetRegime handles GET /api/regime
func (h *SystemHandlers) HandleGetRegime(w http.ResponseWriter, r *http.Request) {
	latest, err := h.regimes.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get market regime")
		http.Error(w, "Failed to get market regime", http.StatusInternalServerError)
		return
	}
	if latest == nil {
		http.Error(w, "No market regime recorded yet", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": latest,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRegimeHistory handles GET /api/regime/history
func (h *SystemHandlers) HandleGetRegimeHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 30)
	entries, err := h.regimes.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get regime history")
		http.Error(w, "Failed to get regime history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"entries": entries,
			"count":   len(entries),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRuns handles GET /api/tasks/runs
func (h *SystemHandlers) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.Recent(parseLimit(r, 50))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get task runs")
		http.Error(w, "Failed to get task runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRunTask handles POST /api/tasks/{name}/run. The task runs in the
// background as a manual trigger; the outcome is visible in /api/tasks/runs.
func (h *SystemHandlers) HandleRunTask(w http.ResponseWriter, r *http.Request, name string) {
	if !h.tasks.Has(name) {
		http.Error(w, "Unknown task", http.StatusNotFound)
		return
	}

	h.bg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		if _, err := h.tasks.Execute(ctx, name, config.TriggerManual); err != nil {
			h.log.Error().Err(err).Str("task", name).Msg("Manual task failed to start")
		}
	})

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{
			"task":    name,
			"trigger": config.TriggerManual,
			"status":  "accepted",
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// Wait blocks until background tasks have finished
func (h *SystemHandlers) Wait() {
	h.bg.Wait()
}

func parseLimit(r *http.Request, def int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			return parsed
		}
	}
	return def
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
