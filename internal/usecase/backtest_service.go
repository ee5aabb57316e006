package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

type BacktestRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
	// Bars must be in strictly ascending date order.
	Bars []domain.Bar
}

type BacktestResult struct {
	Run       *domain.Run                `json:"run"`
	Buys      []domain.SignalEvent       `json:"buys"`
	Sells     []domain.SignalEvent       `json:"sells"`
	Fills     []domain.Fill              `json:"fills"`
	Positions map[string]domain.Position `json:"positions"`
}

// BacktestService drives the signal engine over a bar series and routes the
// resulting orders to the broker.
type BacktestService struct {
	engine   *SignalEngine
	broker   domain.Broker
	executor *TradeExecutor
	repo     domain.RunRepository
	logger   *zap.Logger
}

func NewBacktestService(
	engine *SignalEngine,
	broker domain.Broker,
	repo domain.RunRepository,
	logger *zap.Logger,
) *BacktestService {
	return &BacktestService{
		engine:   engine,
		broker:   broker,
		executor: NewTradeExecutor(broker, logger),
		repo:     repo,
		logger:   logger,
	}
}

func (s *BacktestService) Run(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	if err := checkAscending(req.Bars); err != nil {
		return nil, err
	}

	run := &domain.Run{
		ID:           uuid.NewString(),
		Symbol:       req.Symbol,
		Start:        req.Start,
		End:          req.End,
		StartingCash: s.broker.Cash(),
		StartedAt:    time.Now().UTC(),
	}
	if err := s.repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Info("Backtest started",
		zap.String("run", run.ID),
		zap.String("symbol", req.Symbol),
		zap.Int("bars", len(req.Bars)),
		zap.String("cash", run.StartingCash.String()),
	)

	var fills []domain.Fill
	var prev *domain.Bar
	// entry order awaiting its fill bar
	var pendingBuy *domain.Order
	for i := range req.Bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := req.Bars[i]
		metrics.BarsTotal.WithLabelValues(req.Symbol).Inc()

		// orders from the previous bar fill at this bar's open
		barFills, err := s.broker.OnBar(req.Symbol, bar)
		if err != nil {
			return nil, fmt.Errorf("broker failed on %s: %w", bar.Date.Format(time.DateOnly), err)
		}
		for j := range barFills {
			if err := s.repo.SaveFill(ctx, run.ID, &barFills[j]); err != nil {
				return nil, fmt.Errorf("failed to save fill: %w", err)
			}
			metrics.FillsTotal.WithLabelValues(req.Symbol, string(barFills[j].Side)).Inc()
		}
		fills = append(fills, barFills...)

		if pendingBuy != nil && (bar.HasOpen() || bar.HasClose()) {
			if !filled(barFills, pendingBuy.ID) {
				s.engine.Reset(req.Symbol)
				metrics.RejectedOrdersTotal.WithLabelValues(req.Symbol, string(pendingBuy.Side)).Inc()
				s.logger.Warn("Buy not filled, position reset to flat",
					zap.String("id", pendingBuy.ID),
					zap.Time("date", bar.Date),
					zap.Int64("qty", pendingBuy.Qty),
				)
			}
			pendingBuy = nil
		}

		if !bar.HasClose() {
			metrics.SkippedBarsTotal.WithLabelValues(req.Symbol).Inc()
			s.logger.Warn("Skipping bar without close", zap.Time("date", bar.Date))
			prev = &req.Bars[i]
			continue
		}

		order, ok := s.engine.Evaluate(req.Symbol, bar, prev, bar.Date)
		prev = &req.Bars[i]
		if !ok {
			continue
		}

		event := domain.SignalEvent{
			Symbol: req.Symbol,
			Kind:   order.Side,
			Date:   bar.Date,
			Price:  bar.Close,
			Reason: order.Reason,
		}
		if err := s.repo.SaveSignal(ctx, run.ID, &event); err != nil {
			return nil, fmt.Errorf("failed to save signal: %w", err)
		}
		metrics.SignalsTotal.WithLabelValues(req.Symbol, string(order.Side)).Inc()
		s.logger.Info("Signal",
			zap.String("side", string(order.Side)),
			zap.Time("date", bar.Date),
			zap.Float64("close", bar.Close),
			zap.String("reason", order.Reason),
		)

		if err := s.executor.Execute(order); err != nil {
			return nil, err
		}
		if order.Side == domain.SideBuy {
			pendingBuy = &order
		}
	}

	run.Bars = len(req.Bars)
	run.FinalValue = s.broker.Value(map[string]float64{req.Symbol: lastClose(req.Bars)})
	run.FinishedAt = time.Now().UTC()
	if err := s.repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	result := &BacktestResult{
		Run:       run,
		Buys:      s.engine.BuySignals(),
		Sells:     s.engine.SellSignals(),
		Fills:     fills,
		Positions: s.engine.Positions(),
	}
	s.logger.Info("Backtest finished",
		zap.String("run", run.ID),
		zap.Int("buys", len(result.Buys)),
		zap.Int("sells", len(result.Sells)),
		zap.Int("fills", len(fills)),
		zap.String("final_value", run.FinalValue.String()),
	)
	return result, nil
}

func filled(fills []domain.Fill, orderID string) bool {
	for _, f := range fills {
		if f.OrderID == orderID {
			return true
		}
	}
	return false
}

func checkAscending(bars []domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("bars out of order at %d: %s after %s",
				i, bars[i].Date.Format(time.DateOnly), bars[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}
