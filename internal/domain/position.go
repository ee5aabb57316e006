package domain

import "time"

type PositionState string

const (
	PositionFlat    PositionState = "FLAT"
	PositionHolding PositionState = "HOLDING"
)

// Position is the per-symbol holding record kept by the signal engine.
// EntryPrice and EntryDate are only meaningful while Holding.
type Position struct {
	Symbol     string        `json:"symbol"`
	State      PositionState `json:"state"`
	EntryPrice float64       `json:"entry_price,omitempty"`
	EntryDate  time.Time     `json:"entry_date,omitempty"`
}

func (p Position) Holding() bool {
	return p.State == PositionHolding
}

func (p *Position) Open(price float64, date time.Time) {
	p.State = PositionHolding
	p.EntryPrice = price
	p.EntryDate = date
}

func (p *Position) Close() {
	p.State = PositionFlat
	p.EntryPrice = 0
	p.EntryDate = time.Time{}
}
