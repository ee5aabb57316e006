package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SignalEvent is a recorded buy or sell used to annotate the chart.
type SignalEvent struct {
	Symbol string    `json:"symbol"`
	Kind   Side      `json:"kind"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Reason string    `json:"reason"`
}

// Order is handed to the broker for fill simulation.
type Order struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Qty    int64     `json:"qty"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

type Fill struct {
	OrderID    string          `json:"order_id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Qty        int64           `json:"qty"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	Date       time.Time       `json:"date"`
}

// Run is one persisted backtest run.
type Run struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Bars         int             `json:"bars"`
	StartingCash decimal.Decimal `json:"starting_cash"`
	FinalValue   decimal.Decimal `json:"final_value"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}
