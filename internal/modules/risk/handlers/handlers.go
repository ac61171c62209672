// Package handlers provides HTTP handlers for risk snapshots.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// SnapshotReader reads recorded risk snapshots
type SnapshotReader interface {
	Latest() (domain.RiskSnapshot, error)
	Recent(limit int) ([]domain.RiskSnapshot, error)
}

// Handler handles risk HTTP requests
type Handler struct {
	snapshots SnapshotReader
	log       zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(snapshots SnapshotReader, log zerolog.Logger) *Handler {
	return &Handler{
		snapshots: snapshots,
		log:       log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetLatest handles GET /api/risk/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Latest()
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "No risk assessment recorded yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest risk snapshot")
		http.Error(w, "Failed to get risk snapshot", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": snapshot,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistory handles GET /api/risk/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 365 {
			limit = parsed
		}
	}

	snapshots, err := h.snapshots.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get risk history")
		http.Error(w, "Failed to get risk history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": snapshots,
			"count":     len(snapshots),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"limit":     limit,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
