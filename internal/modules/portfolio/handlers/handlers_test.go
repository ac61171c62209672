package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/portfolio"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
)

type brokenHoldings struct{}

func (brokenHoldings) Get(domain.BucketType) (domain.BucketHolding, error) {
	return domain.BucketHolding{}, errors.New("database is locked")
}

func (brokenHoldings) All() ([]domain.BucketHolding, error) {
	return nil, errors.New("database is locked")
}

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	db, cleanup := testingpkg.NewTestDB(t)
	t.Cleanup(cleanup)

	repo := portfolio.NewHoldingsRepository(db.Conn(), logger)
	entry := time.Date(2024, 5, 6, 0, 0, 0, 0, domain.Beijing)
	require.NoError(t, repo.Save(domain.BucketStable, []domain.Holding{
		{Code: "510300", Name: "沪深300ETF", CostPrice: 4, EntryDate: entry, Weight: 0.3},
		{Code: "510500", Name: "中证500ETF", CostPrice: 6, EntryDate: entry, Weight: 0.2},
	}))

	router := chi.NewRouter()
	NewHandler(repo, logger).RegisterRoutes(router)
	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response, "metadata")
	return response["data"].(map[string]interface{})
}

func TestHandleGetHoldings(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/portfolio/holdings", nil))
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)
	assert.InDelta(t, 0.5, data["total_weight"], 1e-9)

	buckets := data["buckets"].([]interface{})
	require.Len(t, buckets, len(domain.AllBuckets))

	stable := buckets[0].(map[string]interface{})
	assert.Equal(t, "stable", stable["bucket"])
	assert.Equal(t, "稳健仓", stable["label"])
	assert.Len(t, stable["holdings"], 2)

	empty := buckets[1].(map[string]interface{})
	assert.Equal(t, []interface{}{}, empty["holdings"])
}

func TestHandleGetBucket(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name     string
		url      string
		status   int
		holdings int
	}{
		{"stable", "/portfolio/holdings/stable", http.StatusOK, 2},
		{"empty", "/portfolio/holdings/arbitrage", http.StatusOK, 0},
		{"invalid", "/portfolio/holdings/crypto", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", tt.url, nil))
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			data := decode(t, w)
			assert.Len(t, data["holdings"], tt.holdings)
		})
	}
}

func TestHandleGetHoldings_RepositoryError(t *testing.T) {
	handler := NewHandler(brokenHoldings{}, zerolog.Nop())

	w := httptest.NewRecorder()
	handler.HandleGetHoldings(w, httptest.NewRequest("GET", "/portfolio/holdings", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	handler.HandleGetBucket(w, httptest.NewRequest("GET", "/portfolio/holdings/stable", nil), "stable")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
