package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/momentum_backtest/internal/frame"
)

// PriceFeed retrieves daily history for [start, end).
type PriceFeed interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*frame.Frame, error)
}

// Broker simulates order execution during a backtest.
type Broker interface {
	Submit(order Order) error
	// OnBar fills pending orders against a new bar of the order's symbol.
	OnBar(symbol string, bar Bar) ([]Fill, error)
	Cash() decimal.Decimal
	Value(marks map[string]float64) decimal.Decimal
}

// RunRepository defines storage operations for backtest runs.
type RunRepository interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	SaveSignal(ctx context.Context, runID string, event *SignalEvent) error
	ListSignals(ctx context.Context, runID string) ([]*SignalEvent, error)

	SaveFill(ctx context.Context, runID string, fill *Fill) error
	ListFills(ctx context.Context, runID string) ([]*Fill, error)
}

// ChartRenderer turns a chart description into an HTML document.
type ChartRenderer interface {
	Render(w io.Writer, spec ChartSpec) error
}
