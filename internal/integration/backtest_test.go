package integration_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/infrastructure/broker"
	"github.com/vitos/momentum_backtest/internal/infrastructure/chart"
	"github.com/vitos/momentum_backtest/internal/infrastructure/feed"
	"github.com/vitos/momentum_backtest/internal/infrastructure/storage"
	"github.com/vitos/momentum_backtest/internal/usecase"
	"go.uber.org/zap"
)

// writeHistory writes a CSV with a saw-tooth close series long enough for
// both default moving averages.
func writeHistory(t *testing.T, days int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Adj Close,Volume\n")
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		c := 400 + float64(i%30)*3 - float64(i%7)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%.2f,1000\n",
			start.AddDate(0, 0, i).Format("2006-01-02"), c-1, c+2, c-2, c, c)
	}
	path := filepath.Join(t.TempDir(), "spy.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestBacktestEndToEnd(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	raw, err := feed.NewCSVFeed(writeHistory(t, 260)).FetchHistory(ctx, "SPY", start, end)
	require.NoError(t, err)

	series, err := usecase.Reshape(raw, "SPY")
	require.NoError(t, err)
	require.NoError(t, usecase.ComputeMovingAverages(series))
	bars, err := usecase.Bars(series)
	require.NoError(t, err)
	require.Len(t, bars, 260)

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	paper := broker.NewPaperBroker(broker.PaperConfig{StartingCash: decimal.NewFromInt(10000)})
	svc := usecase.NewBacktestService(usecase.NewSignalEngine(usecase.DefaultSignalParams()), paper, store, log)

	result, err := svc.Run(ctx, usecase.BacktestRequest{Symbol: "SPY", Start: start, End: end, Bars: bars})
	require.NoError(t, err)
	require.NotEmpty(t, result.Buys)

	// buys and sells alternate, starting with a buy
	table := usecase.SignalTable(result.Buys, result.Sells)
	for i, e := range table {
		want := domain.SideBuy
		if i%2 == 1 {
			want = domain.SideSell
		}
		assert.Equal(t, want, e.Kind, "event %d", i)
	}

	stored, err := store.ListSignals(ctx, result.Run.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(table))

	run, err := store.GetRun(ctx, result.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 260, run.Bars)
	assert.True(t, run.FinalValue.Equal(result.Run.FinalValue))

	out := filepath.Join(t.TempDir(), usecase.DefaultChartFile)
	presenter := usecase.NewPresenter(chart.NewEChartsRenderer(), "", log)
	require.NoError(t, presenter.RenderFile(out, series, "SPY", result.Buys, result.Sells))

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	for _, want := range []string{"50-Day MA", "200-Day MA", "Buy Signal", "Sell Signal"} {
		assert.Contains(t, string(html), want)
	}
}
