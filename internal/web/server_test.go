package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/infrastructure/storage"
	"github.com/vitos/momentum_backtest/internal/usecase"
	"github.com/vitos/momentum_backtest/internal/web"
	"go.uber.org/zap"
)

func day(n int) time.Time {
	return time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	result := &usecase.BacktestResult{
		Run: &domain.Run{ID: "current", Symbol: "SPY", Bars: 5, StartingCash: decimal.NewFromInt(10000)},
		Buys: []domain.SignalEvent{
			{Symbol: "SPY", Kind: domain.SideBuy, Date: day(1), Price: 105, Reason: "momentum"},
			{Symbol: "SPY", Kind: domain.SideBuy, Date: day(5), Price: 120, Reason: "momentum"},
		},
		Sells: []domain.SignalEvent{
			{Symbol: "SPY", Kind: domain.SideSell, Date: day(3), Price: 130, Reason: "take_profit"},
		},
		Fills: []domain.Fill{
			{OrderID: "o1", Symbol: "SPY", Side: domain.SideBuy, Qty: 1, Price: decimal.NewFromInt(104), Date: day(2)},
		},
	}

	srv := web.NewServer(0, result, []byte("<html>chart</html>"), store, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestChartIsServed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestSignalsAreDateOrdered(t *testing.T) {
	ts, _ := newTestServer(t)

	var events []domain.SignalEvent
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/signals", &events))
	require.Len(t, events, 3)
	assert.Equal(t, domain.SideBuy, events[0].Kind)
	assert.Equal(t, domain.SideSell, events[1].Kind)
	assert.Equal(t, 120.0, events[2].Price)
}

func TestStoredRunIsReadFromRepository(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, &domain.Run{ID: "old", Symbol: "QQQ", StartingCash: decimal.NewFromInt(1), StartedAt: day(0)}))
	require.NoError(t, store.SaveSignal(ctx, "old", &domain.SignalEvent{Symbol: "QQQ", Kind: domain.SideBuy, Date: day(0), Price: 300}))

	var run domain.Run
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/run?run=old", &run))
	assert.Equal(t, "QQQ", run.Symbol)

	var events []domain.SignalEvent
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/signals?run=old", &events))
	require.Len(t, events, 1)
	assert.Equal(t, 300.0, events[0].Price)

	var missing domain.Run
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/run?run=nope", &missing))
}

func TestFillsAndStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	var fills []domain.Fill
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/fills", &fills))
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(decimal.NewFromInt(104)))

	var status map[string]interface{}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/status", &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "current", status["run"])
}

func TestListRunsValidatesLimit(t *testing.T) {
	ts, _ := newTestServer(t)

	var runs []domain.Run
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/runs", &runs))
	assert.Empty(t, runs)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/runs?limit=x", &runs))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignalReplay(t *testing.T) {
	ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/signals"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []domain.SignalEvent
	for {
		var e domain.SignalEvent
		err := conn.ReadJSON(&e)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		got = append(got, e)
	}

	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Equal(day(1)))
	assert.True(t, got[1].Date.Equal(day(3)))
	assert.True(t, got[2].Date.Equal(day(5)))
}
