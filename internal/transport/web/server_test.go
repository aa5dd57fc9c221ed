package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
)

func seedResults(t *testing.T) store.ResultStore {
	t.Helper()
	rs := store.NewMemoryResultStore()
	ctx := context.Background()
	require.NoError(t, rs.PutRun(ctx, store.RunRecord{
		ID: "run-a", CreatedAt: time.UnixMilli(1705300000000),
		FutCode: "IC", IndexCode: "000905.SH", StrategyName: "smart_roll",
		StartDate: dateutil.MustParse("20240102"), EndDate: dateutil.MustParse("20240105"),
		InitialCapital: 10_000_000, FinalNAV: 1.03, TotalReturn: 0.03,
		AnnualReturn: 0.2, MaxDrawdown: -0.0294, SharpeRatio: 1.1,
		TradeCount: 2, TotalCommission: 4605,
	}))
	require.NoError(t, rs.PutNAVPoints(ctx, []store.NAVPointRecord{
		{RunID: "run-a", TradeDate: dateutil.MustParse("20240102"), NAV: 1.0, BenchmarkNAV: 1.0, MarginUsage: 0.12},
		{RunID: "run-a", TradeDate: dateutil.MustParse("20240103"), NAV: 1.03, BenchmarkNAV: 1.01, MarginUsage: 0.11},
	}))
	require.NoError(t, rs.PutTrades(ctx, []store.TradeRecord{
		{RunID: "run-a", TradeDate: dateutil.MustParse("20240102"), TsCode: "IC2401.CFX",
			Direction: "BUY", Volume: 10, Price: 5000, Amount: 1e7, Commission: 2300, Reason: "OPEN"},
	}))
	return rs
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(ServerConfig{Addr: ":0", Results: seedResults(t)})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIListRuns(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
		Runs  []struct {
			ID        string  `json:"id"`
			FinalNAV  float64 `json:"final_nav"`
			StartDate string  `json:"start_date"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "run-a", body.Runs[0].ID)
	assert.InDelta(t, 1.03, body.Runs[0].FinalNAV, 1e-9)
	assert.Equal(t, "20240102", body.Runs[0].StartDate)
}

func TestAPIGetRun(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/runs/run-a")
	require.Equal(t, http.StatusOK, rec.Code)
	var run struct {
		Strategy  string `json:"strategy"`
		IndexCode string `json:"index_code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "smart_roll", run.Strategy)
	assert.Equal(t, "000905.SH", run.IndexCode)

	rec = get(t, s, "/api/runs/run-x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIGetNAV(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/runs/run-a/nav")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Points []struct {
			Date        string  `json:"date"`
			NAV         float64 `json:"nav"`
			MarginUsage float64 `json:"margin_usage"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Points, 2)
	assert.Equal(t, "20240102", body.Points[0].Date)
	assert.InDelta(t, 0.12, body.Points[0].MarginUsage, 1e-9)
}

func TestAPIGetTrades(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/runs/run-a/trades")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trades []struct {
			TsCode    string `json:"ts_code"`
			Direction string `json:"direction"`
			Volume    int    `json:"volume"`
		} `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trades, 1)
	assert.Equal(t, "IC2401.CFX", body.Trades[0].TsCode)
	assert.Equal(t, "BUY", body.Trades[0].Direction)
}

func TestRunsPage(t *testing.T) {
	rec := get(t, newTestServer(t), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "run-a")
	assert.Contains(t, html, "smart_roll")
	assert.Contains(t, html, "1.0300")
}

func TestRunPage(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/runs/run-a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nav-chart")

	rec = get(t, s, "/runs/run-x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("服务未在取消后退出")
	}
}
