package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/momentum_backtest/internal/domain"
)

const (
	ReasonMomentum   = "momentum"
	ReasonTakeProfit = "take_profit"
	ReasonStopLoss   = "stop_loss"
	ReasonMaxHolding = "max_holding"
)

type SignalParams struct {
	TakeProfitPct  float64
	StopLossPct    float64
	MaxHoldingDays int
	Stake          int64
}

func DefaultSignalParams() SignalParams {
	return SignalParams{
		TakeProfitPct:  0.20,
		StopLossPct:    0.20,
		MaxHoldingDays: 45,
		Stake:          1,
	}
}

// SignalEngine decides entries and exits bar by bar and keeps one
// position record per symbol.
type SignalEngine struct {
	params    SignalParams
	positions map[string]*domain.Position
	buys      []domain.SignalEvent
	sells     []domain.SignalEvent
	mu        sync.RWMutex
}

func NewSignalEngine(params SignalParams) *SignalEngine {
	if params.Stake <= 0 {
		params.Stake = 1
	}
	return &SignalEngine{
		params:    params,
		positions: make(map[string]*domain.Position),
	}
}

func (e *SignalEngine) Params() SignalParams {
	return e.params
}

// Evaluate applies the momentum rule to one bar. previous may be nil on the
// first bar. The returned order is only meaningful when ok is true.
func (e *SignalEngine) Evaluate(symbol string, current domain.Bar, previous *domain.Bar, today time.Time) (domain.Order, bool) {
	if !current.HasClose() {
		return domain.Order{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol, State: domain.PositionFlat}
		e.positions[symbol] = pos
	}

	if !pos.Holding() {
		if previous == nil || !previous.HasClose() {
			return domain.Order{}, false
		}
		if current.Close <= previous.Close {
			return domain.Order{}, false
		}
		pos.Open(current.Close, today)
		e.buys = append(e.buys, domain.SignalEvent{
			Symbol: symbol,
			Kind:   domain.SideBuy,
			Date:   today,
			Price:  current.Close,
			Reason: ReasonMomentum,
		})
		return e.order(symbol, domain.SideBuy, today, ReasonMomentum), true
	}

	reason := e.exitReason(pos, current.Close, today)
	if reason == "" {
		return domain.Order{}, false
	}
	pos.Close()
	e.sells = append(e.sells, domain.SignalEvent{
		Symbol: symbol,
		Kind:   domain.SideSell,
		Date:   today,
		Price:  current.Close,
		Reason: reason,
	})
	return e.order(symbol, domain.SideSell, today, reason), true
}

// exitReason returns the first satisfied exit condition, or "".
func (e *SignalEngine) exitReason(pos *domain.Position, price float64, today time.Time) string {
	pnl := (price - pos.EntryPrice) / pos.EntryPrice
	daysHeld := int(today.Sub(pos.EntryDate).Hours() / 24)

	switch {
	case pnl >= e.params.TakeProfitPct:
		return ReasonTakeProfit
	case pnl <= -e.params.StopLossPct:
		return ReasonStopLoss
	case daysHeld >= e.params.MaxHoldingDays:
		return ReasonMaxHolding
	}
	return ""
}

func (e *SignalEngine) order(symbol string, side domain.Side, date time.Time, reason string) domain.Order {
	return domain.Order{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   side,
		Qty:    e.params.Stake,
		Date:   date,
		Reason: reason,
	}
}

// Reset returns the symbol to flat without recording a sell, for an entry the
// broker refused. The buy event stays in the log.
func (e *SignalEngine) Reset(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pos, ok := e.positions[symbol]; ok {
		pos.Close()
	}
}

// Position returns a copy of the symbol's record; unseen symbols are flat.
func (e *SignalEngine) Position(symbol string) domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.positions[symbol]; ok {
		return *p
	}
	return domain.Position{Symbol: symbol, State: domain.PositionFlat}
}

func (e *SignalEngine) Positions() map[string]domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]domain.Position, len(e.positions))
	for sym, p := range e.positions {
		out[sym] = *p
	}
	return out
}

func (e *SignalEngine) BuySignals() []domain.SignalEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.SignalEvent, len(e.buys))
	copy(out, e.buys)
	return out
}

func (e *SignalEngine) SellSignals() []domain.SignalEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.SignalEvent, len(e.sells))
	copy(out, e.sells)
	return out
}
