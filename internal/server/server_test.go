package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/market_regime"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/ledger"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/portfolio"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/risk"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/scoring"
	"github.com/karmyshunde-sudo/karmy-gold/internal/scheduler"
	testingpkg "github.com/karmyshunde-sudo/karmy-gold/internal/testing"
)

type countingTask struct {
	calls chan struct{}
}

func (c *countingTask) Name() string { return scheduler.TaskCleanData }

func (c *countingTask) Run(context.Context) (interface{}, error) {
	c.calls <- struct{}{}
	return nil, nil
}

type downDatabase struct{}

func (downDatabase) QuickCheck(context.Context) error { return errors.New("database is closed") }

type serverFixture struct {
	server  *Server
	regimes *market_regime.History
	runs    *scheduler.RunRepository
	task    *countingTask
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	db, cleanup := testingpkg.NewTestDB(t)
	t.Cleanup(cleanup)
	conn := db.Conn()

	f := &serverFixture{
		regimes: market_regime.NewHistory(conn, logger),
		runs:    scheduler.NewRunRepository(conn, logger),
		task:    &countingTask{calls: make(chan struct{}, 1)},
	}

	runner := scheduler.NewRunner(f.runs, nil, nil, nil, logger)
	runner.Register(f.task, scheduler.Policy{})

	f.server = New(Config{
		Log:      logger,
		Port:     0,
		DevMode:  true,
		Health:   db,
		Metrics:  metrics.New(),
		Tasks:    runner,
		Runs:     f.runs,
		Regimes:  f.regimes,
		Holdings: portfolio.NewHoldingsRepository(conn, logger),
		Trades:   ledger.NewRepository(conn, logger),
		Risk:     risk.NewRepository(conn, logger),
		Scores:   scoring.NewHistoryRepository(conn, logger),
	})
	return f
}

func (f *serverFixture) do(method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	f := newServerFixture(t)

	w := f.do("GET", "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_HealthUnavailable(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), DevMode: true, Health: downDatabase{}})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "database is closed", body["error"])
}

func TestServer_Metrics(t *testing.T) {
	f := newServerFixture(t)

	w := f.do("GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "karmy_instruments_scored_total")
}

func TestServer_ModuleRoutes(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		url    string
		status int
	}{
		{"/api/portfolio/holdings", http.StatusOK},
		{"/api/ledger/trades", http.StatusOK},
		{"/api/trades?limit=5", http.StatusOK},
		{"/api/risk/latest", http.StatusNotFound},
		{"/api/risk/history", http.StatusOK},
		{"/api/scores/latest", http.StatusOK},
		{"/api/tasks/runs", http.StatusOK},
		{"/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.status, f.do("GET", tt.url).Code)
		})
	}
}

func TestServer_Regime(t *testing.T) {
	f := newServerFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do("GET", "/api/regime").Code)

	at := time.Date(2024, 6, 3, 6, 50, 0, 0, time.UTC)
	require.NoError(t, f.regimes.Record("510300", market_regime.Classification{Regime: domain.RegimeSideways, Rule: "low volatility"}, at))
	require.NoError(t, f.regimes.Record("510300", market_regime.Classification{Regime: domain.RegimeBull, Rule: "trend"}, at.Add(time.Hour)))

	w := f.do("GET", "/api/regime")
	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "bull", data["regime"])
	assert.Equal(t, "510300", data["benchmark"])

	w = f.do("GET", "/api/regime/history?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["count"])
}

func TestServer_RunTask(t *testing.T) {
	f := newServerFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do("POST", "/api/tasks/rebalance/run").Code)

	w := f.do("POST", "/api/tasks/clean_data/run")
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-f.task.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed")
	}
	f.server.system.Wait()

	runs, err := f.runs.Recent(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, scheduler.StatusSuccess, runs[0].Status)
	assert.Equal(t, "manual", string(runs[0].Trigger))
}
