package broker

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vitos/momentum_backtest/internal/domain"
)

var (
	ErrInsufficientCash     = errors.New("insufficient cash for buy")
	ErrInsufficientPosition = errors.New("insufficient position to sell")
)

type PaperConfig struct {
	StartingCash  decimal.Decimal
	CommissionPct decimal.Decimal // fraction of notional, 0.001 = 0.1%
}

// Rejection records an order the ledger could not execute.
type Rejection struct {
	Order  domain.Order
	Reason error
}

type holding struct {
	qty     int64
	avgCost decimal.Decimal
}

// PaperBroker queues market orders and fills them at the open of the next
// bar of the same symbol.
type PaperBroker struct {
	cfg      PaperConfig
	cash     decimal.Decimal
	realized decimal.Decimal
	pending  map[string][]domain.Order
	holdings map[string]holding
	fills    []domain.Fill
	rejected []Rejection
	mu       sync.Mutex
}

func NewPaperBroker(cfg PaperConfig) *PaperBroker {
	return &PaperBroker{
		cfg:      cfg,
		cash:     cfg.StartingCash,
		pending:  make(map[string][]domain.Order),
		holdings: make(map[string]holding),
	}
}

func (b *PaperBroker) Submit(order domain.Order) error {
	if order.Qty <= 0 {
		return fmt.Errorf("order %s: quantity must be positive", order.ID)
	}
	if order.Side != domain.SideBuy && order.Side != domain.SideSell {
		return fmt.Errorf("order %s: invalid side: %s", order.ID, order.Side)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[order.Symbol] = append(b.pending[order.Symbol], order)
	return nil
}

// OnBar executes the symbol's pending orders at the bar open, or at the close
// when the open is missing. Orders stay queued on a bar without prices.
func (b *PaperBroker) OnBar(symbol string, bar domain.Bar) ([]domain.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := b.pending[symbol]
	if len(orders) == 0 {
		return nil, nil
	}

	var price decimal.Decimal
	switch {
	case bar.HasOpen():
		price = decimal.NewFromFloat(bar.Open)
	case bar.HasClose():
		price = decimal.NewFromFloat(bar.Close)
	default:
		return nil, nil
	}
	delete(b.pending, symbol)

	var fills []domain.Fill
	for _, order := range orders {
		fill, err := b.execute(order, price)
		if err != nil {
			b.rejected = append(b.rejected, Rejection{Order: order, Reason: err})
			continue
		}
		fill.Date = bar.Date
		b.fills = append(b.fills, fill)
		fills = append(fills, fill)
	}
	return fills, nil
}

func (b *PaperBroker) execute(order domain.Order, price decimal.Decimal) (domain.Fill, error) {
	qty := decimal.NewFromInt(order.Qty)
	notional := price.Mul(qty)
	commission := notional.Mul(b.cfg.CommissionPct)
	state := b.holdings[order.Symbol]

	switch order.Side {
	case domain.SideBuy:
		cost := notional.Add(commission)
		if cost.GreaterThan(b.cash) {
			return domain.Fill{}, ErrInsufficientCash
		}
		newQty := state.qty + order.Qty
		state.avgCost = state.avgCost.Mul(decimal.NewFromInt(state.qty)).Add(notional).Div(decimal.NewFromInt(newQty))
		state.qty = newQty
		b.cash = b.cash.Sub(cost)
		b.holdings[order.Symbol] = state

	case domain.SideSell:
		if state.qty < order.Qty {
			return domain.Fill{}, ErrInsufficientPosition
		}
		b.realized = b.realized.Add(price.Sub(state.avgCost).Mul(qty)).Sub(commission)
		b.cash = b.cash.Add(notional).Sub(commission)
		state.qty -= order.Qty
		if state.qty == 0 {
			delete(b.holdings, order.Symbol)
		} else {
			b.holdings[order.Symbol] = state
		}
	}

	return domain.Fill{
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Qty:        order.Qty,
		Price:      price,
		Commission: commission,
	}, nil
}

func (b *PaperBroker) Cash() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

func (b *PaperBroker) RealizedPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realized
}

func (b *PaperBroker) Position(symbol string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holdings[symbol].qty
}

// Value marks open holdings at the given prices. Holdings without a usable
// mark are valued at cost.
func (b *PaperBroker) Value(marks map[string]float64) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	value := b.cash
	for symbol, h := range b.holdings {
		mark := h.avgCost
		if p, ok := marks[symbol]; ok && !math.IsNaN(p) {
			mark = decimal.NewFromFloat(p)
		}
		value = value.Add(mark.Mul(decimal.NewFromInt(h.qty)))
	}
	return value
}

func (b *PaperBroker) Fills() []domain.Fill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

func (b *PaperBroker) Rejected() []Rejection {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Rejection, len(b.rejected))
	copy(out, b.rejected)
	return out
}
