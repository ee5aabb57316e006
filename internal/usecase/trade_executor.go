package usecase

import (
	"fmt"

	"github.com/vitos/momentum_backtest/internal/domain"
	"go.uber.org/zap"
)

type TradeExecutor struct {
	broker domain.Broker
	logger *zap.Logger
}

func NewTradeExecutor(broker domain.Broker, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		broker: broker,
		logger: logger,
	}
}

// Execute hands a market order to the broker. It fills on the next bar.
func (e *TradeExecutor) Execute(order domain.Order) error {
	if order.Side != domain.SideBuy && order.Side != domain.SideSell {
		return fmt.Errorf("invalid side: %s", order.Side)
	}
	if err := e.broker.Submit(order); err != nil {
		return fmt.Errorf("failed to submit order %s: %w", order.ID, err)
	}
	e.logger.Debug("Order submitted",
		zap.String("id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("qty", order.Qty),
		zap.String("reason", order.Reason),
	)
	return nil
}
