// Package handlers provides HTTP handlers for the trade ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// TradeReader reads recorded trade actions
type TradeReader interface {
	Recent(limit int) ([]domain.TradeAction, error)
	ForRun(runID string) ([]domain.TradeAction, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	trades TradeReader
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(trades TradeReader, log zerolog.Logger) *Handler {
	return &Handler{
		trades: trades,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTrades handles GET /api/ledger/trades
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	var (
		actions []domain.TradeAction
		err     error
	)

	if runID := r.URL.Query().Get("run_id"); runID != "" {
		actions, err = h.trades.ForRun(runID)
	} else {
		actions, err = h.trades.Recent(parseLimit(r))
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades")
		http.Error(w, "Failed to query trades", http.StatusInternalServerError)
		return
	}

	bucket := domain.BucketType(r.URL.Query().Get("bucket"))
	if bucket != "" {
		if !bucket.Valid() {
			http.Error(w, "Invalid bucket", http.StatusBadRequest)
			return
		}
		filtered := make([]domain.TradeAction, 0, len(actions))
		for _, a := range actions {
			if a.Bucket == bucket {
				filtered = append(filtered, a)
			}
		}
		actions = filtered
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"trades": actions,
			"count":  len(actions),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
