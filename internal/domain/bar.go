package domain

import (
	"math"
	"time"
)

// Bar is one daily OHLC observation. Missing values are NaN.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (b Bar) HasClose() bool {
	return !math.IsNaN(b.Close)
}

func (b Bar) HasOpen() bool {
	return !math.IsNaN(b.Open)
}
