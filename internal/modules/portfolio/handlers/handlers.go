// Package handlers provides HTTP handlers for bucket holdings.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

// HoldingsReader reads the persisted bucket holdings
type HoldingsReader interface {
	Get(bucket domain.BucketType) (domain.BucketHolding, error)
	All() ([]domain.BucketHolding, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	holdings HoldingsReader
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(holdings HoldingsReader, log zerolog.Logger) *Handler {
	return &Handler{
		holdings: holdings,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

type bucketSummary struct {
	Bucket   domain.BucketType `json:"bucket"`
	Label    string            `json:"label"`
	Weight   float64           `json:"weight"`
	Holdings []domain.Holding  `json:"holdings"`
}

func summarize(b domain.BucketHolding) bucketSummary {
	s := bucketSummary{Bucket: b.Bucket, Label: b.Bucket.Label(), Holdings: b.Holdings}
	if s.Holdings == nil {
		s.Holdings = []domain.Holding{}
	}
	for _, h := range b.Holdings {
		s.Weight += h.Weight
	}
	return s
}

// HandleGetHoldings handles GET /api/portfolio/holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	all, err := h.holdings.All()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get holdings")
		http.Error(w, "Failed to get holdings", http.StatusInternalServerError)
		return
	}

	buckets := make([]bucketSummary, 0, len(all))
	total := 0.0
	for _, b := range all {
		s := summarize(b)
		total += s.Weight
		buckets = append(buckets, s)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"buckets":      buckets,
			"total_weight": total,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetBucket handles GET /api/portfolio/holdings/{bucket}
func (h *Handler) HandleGetBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	b := domain.BucketType(bucket)
	if !b.Valid() {
		http.Error(w, "Invalid bucket", http.StatusBadRequest)
		return
	}

	holding, err := h.holdings.Get(b)
	if err != nil {
		h.log.Error().Err(err).Str("bucket", bucket).Msg("Failed to get bucket holdings")
		http.Error(w, "Failed to get bucket holdings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summarize(holding),
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
