// Package handlers provides HTTP handlers for the score history.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// ScoreReader reads recorded daily scores
type ScoreReader interface {
	Latest() ([]domain.ScoreRecord, error)
	ForDate(day string) ([]domain.ScoreRecord, error)
}

// Handler handles score HTTP requests
type Handler struct {
	scores ScoreReader
	log    zerolog.Logger
}

// NewHandler creates a new scoring handler
func NewHandler(scores ScoreReader, log zerolog.Logger) *Handler {
	return &Handler{
		scores: scores,
		log:    log.With().Str("handler", "scoring").Logger(),
	}
}

// HandleGetLatest handles GET /api/scores/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	records, err := h.scores.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest scores")
		http.Error(w, "Failed to get scores", http.StatusInternalServerError)
		return
	}
	h.writeScores(w, records)
}

// HandleGetByDate handles GET /api/scores/{date}
func (h *Handler) HandleGetByDate(w http.ResponseWriter, r *http.Request, date string) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	records, err := h.scores.ForDate(date)
	if err != nil {
		h.log.Error().Err(err).Str("date", date).Msg("Failed to get scores")
		http.Error(w, "Failed to get scores", http.StatusInternalServerError)
		return
	}
	h.writeScores(w, records)
}

func (h *Handler) writeScores(w http.ResponseWriter, records []domain.ScoreRecord) {
	date := ""
	if len(records) > 0 {
		date = records[0].Date.Format("2006-01-02")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"date":   date,
			"scores": records,
			"count":  len(records),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
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
