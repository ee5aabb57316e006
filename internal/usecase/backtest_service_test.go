package usecase_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/infrastructure/broker"
	"github.com/vitos/momentum_backtest/internal/infrastructure/metrics"
	"github.com/vitos/momentum_backtest/internal/usecase"
	"go.uber.org/zap"
)

type MockRunRepository struct {
	Runs      map[string]domain.Run
	Signals   map[string][]*domain.SignalEvent
	Fills     map[string][]*domain.Fill
	SignalErr error
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{
		Runs:    make(map[string]domain.Run),
		Signals: make(map[string][]*domain.SignalEvent),
		Fills:   make(map[string][]*domain.Fill),
	}
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	m.Runs[run.ID] = *run
	return nil
}

func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	r, ok := m.Runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &r, nil
}

func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	var out []*domain.Run
	for _, r := range m.Runs {
		r := r
		out = append(out, &r)
	}
	return out, nil
}

func (m *MockRunRepository) SaveSignal(ctx context.Context, runID string, event *domain.SignalEvent) error {
	if m.SignalErr != nil {
		return m.SignalErr
	}
	e := *event
	m.Signals[runID] = append(m.Signals[runID], &e)
	return nil
}

func (m *MockRunRepository) ListSignals(ctx context.Context, runID string) ([]*domain.SignalEvent, error) {
	return m.Signals[runID], nil
}

func (m *MockRunRepository) SaveFill(ctx context.Context, runID string, fill *domain.Fill) error {
	f := *fill
	m.Fills[runID] = append(m.Fills[runID], &f)
	return nil
}

func (m *MockRunRepository) ListFills(ctx context.Context, runID string) ([]*domain.Fill, error) {
	return m.Fills[runID], nil
}

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		open := c - 1
		if math.IsNaN(c) {
			open = math.NaN()
		}
		bars[i] = domain.Bar{Date: day0.AddDate(0, 0, i), Open: open, High: c, Low: open, Close: c}
	}
	return bars
}

func newService(b domain.Broker, repo domain.RunRepository) *usecase.BacktestService {
	return usecase.NewBacktestService(
		usecase.NewSignalEngine(usecase.DefaultSignalParams()),
		b, repo, zap.NewNop(),
	)
}

func TestBacktestService_RunWithPaperBroker(t *testing.T) {
	repo := NewMockRunRepository()
	paper := broker.NewPaperBroker(broker.PaperConfig{StartingCash: decimal.NewFromInt(10000)})
	svc := newService(paper, repo)

	bars := barsFromCloses([]float64{100, 105, 103, 130, 130, 128})
	result, err := svc.Run(context.Background(), usecase.BacktestRequest{
		Symbol: "SPY",
		Start:  bars[0].Date,
		End:    bars[len(bars)-1].Date.AddDate(0, 0, 1),
		Bars:   bars,
	})
	require.NoError(t, err)

	require.Len(t, result.Buys, 1)
	require.Len(t, result.Sells, 1)
	assert.Equal(t, 105.0, result.Buys[0].Price)
	assert.Equal(t, 130.0, result.Sells[0].Price)

	// buy signalled on bar 1 fills at bar 2 open, sell on bar 3 fills at bar 4 open
	require.Len(t, result.Fills, 2)
	assert.True(t, result.Fills[0].Price.Equal(decimal.NewFromInt(102)))
	assert.True(t, result.Fills[0].Date.Equal(bars[2].Date))
	assert.True(t, result.Fills[1].Price.Equal(decimal.NewFromInt(129)))
	assert.True(t, result.Run.FinalValue.Equal(decimal.NewFromInt(10027)))

	stored := repo.Runs[result.Run.ID]
	assert.Equal(t, 6, stored.Bars)
	assert.False(t, stored.FinishedAt.IsZero())
	assert.Len(t, repo.Signals[result.Run.ID], 2)
	assert.Len(t, repo.Fills[result.Run.ID], 2)
	assert.False(t, result.Positions["SPY"].Holding())
}

func TestBacktestService_SubmitsOrdersAndSkipsGaps(t *testing.T) {
	repo := NewMockRunRepository()
	mockBroker := &MockBroker{}
	svc := newService(mockBroker, repo)

	bars := barsFromCloses([]float64{100, math.NaN(), 101, 102})
	result, err := svc.Run(context.Background(), usecase.BacktestRequest{Symbol: "SPY", Bars: bars})
	require.NoError(t, err)

	// bar 2 follows a gap so only bar 3 can signal
	require.Len(t, mockBroker.Submitted, 1)
	assert.Equal(t, domain.SideBuy, mockBroker.Submitted[0].Side)
	assert.True(t, mockBroker.Submitted[0].Date.Equal(bars[3].Date))
	assert.Equal(t, 4, mockBroker.OnBarCalls)
	assert.True(t, result.Positions["SPY"].Holding())
}

func TestBacktestService_RejectsOutOfOrderBars(t *testing.T) {
	svc := newService(&MockBroker{}, NewMockRunRepository())

	bars := barsFromCloses([]float64{1, 2, 3})
	bars[1], bars[2] = bars[2], bars[1]
	_, err := svc.Run(context.Background(), usecase.BacktestRequest{Symbol: "SPY", Bars: bars})
	assert.ErrorContains(t, err, "out of order")
}

func TestBacktestService_AbortsOnStorageError(t *testing.T) {
	repo := NewMockRunRepository()
	repo.SignalErr = errors.New("disk full")
	svc := newService(&MockBroker{}, repo)

	_, err := svc.Run(context.Background(), usecase.BacktestRequest{Symbol: "SPY", Bars: barsFromCloses([]float64{1, 2})})
	assert.ErrorIs(t, err, repo.SignalErr)
}

func TestBacktestService_StopsOnCancelledContext(t *testing.T) {
	svc := newService(&MockBroker{}, NewMockRunRepository())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, usecase.BacktestRequest{Symbol: "SPY", Bars: barsFromCloses([]float64{1, 2})})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBacktestService_RefusedBuyReturnsEngineToFlat(t *testing.T) {
	repo := NewMockRunRepository()
	paper := broker.NewPaperBroker(broker.PaperConfig{StartingCash: decimal.NewFromInt(1000)})
	params := usecase.DefaultSignalParams()
	params.Stake = 100
	svc := usecase.NewBacktestService(usecase.NewSignalEngine(params), paper, repo, zap.NewNop())

	// every entry costs at least 100 x 105, far above the cash
	bars := barsFromCloses([]float64{100, 105, 106, 130, 131, 132})
	rejected := metrics.RejectedOrdersTotal.WithLabelValues("SPY", string(domain.SideBuy))
	before := testutil.ToFloat64(rejected)
	result, err := svc.Run(context.Background(), usecase.BacktestRequest{Symbol: "SPY", Bars: bars})
	require.NoError(t, err)

	assert.Equal(t, before+4, testutil.ToFloat64(rejected))
	assert.Empty(t, result.Fills)
	assert.Len(t, paper.Rejected(), 4)
	assert.Zero(t, paper.Position("SPY"))

	// no sell may fire for a position the broker never opened
	assert.Empty(t, result.Sells)
	require.Len(t, result.Buys, 5)
	for i, b := range result.Buys {
		assert.True(t, b.Date.Equal(bars[i+1].Date), "buy %d", i)
	}
	assert.True(t, result.Run.FinalValue.Equal(decimal.NewFromInt(1000)))
}

func TestBacktestService_UnfilledBuyIsRetried(t *testing.T) {
	mockBroker := &MockBroker{}
	svc := newService(mockBroker, NewMockRunRepository())

	bars := barsFromCloses([]float64{100, 101, 102})
	result, err := svc.Run(context.Background(), usecase.BacktestRequest{Symbol: "SPY", Bars: bars})
	require.NoError(t, err)

	// the bar 1 entry never fills, so bar 2 enters again
	require.Len(t, mockBroker.Submitted, 2)
	assert.Equal(t, domain.SideBuy, mockBroker.Submitted[1].Side)
	assert.True(t, mockBroker.Submitted[1].Date.Equal(bars[2].Date))
	assert.Len(t, result.Buys, 2)
}

func TestBacktestService_BuyStaysQueuedAcrossGap(t *testing.T) {
	mockBroker := &MockBroker{}
	svc := newService(mockBroker, NewMockRunRepository())

	// bar 2 has no prices, so the bar 1 entry is still queued at the end
	bars := barsFromCloses([]float64{100, 101, math.NaN()})
	result, err := svc.Run(context.Background(), usecase.BacktestRequest{Symbol: "SPY", Bars: bars})
	require.NoError(t, err)

	require.Len(t, mockBroker.Submitted, 1)
	assert.True(t, result.Positions["SPY"].Holding())
}
