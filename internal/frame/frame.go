// Package frame holds a small date-indexed table of float columns. Columns
// are addressed by (field, symbol); a frame whose keys carry a symbol is
// "layered", one whose keys do not is flat. Missing values are NaN.
package frame

import (
	"fmt"
	"math"
	"time"
)

// Key addresses a column. Symbol is empty for flat frames.
type Key struct {
	Field  string
	Symbol string
}

func (k Key) String() string {
	if k.Symbol == "" {
		return k.Field
	}
	return fmt.Sprintf("(%s, %s)", k.Field, k.Symbol)
}

type Frame struct {
	index []time.Time
	keys  []Key
	cols  map[Key][]float64
}

func New(index []time.Time) *Frame {
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{
		index: idx,
		cols:  make(map[Key][]float64),
	}
}

func (f *Frame) Len() int {
	return len(f.index)
}

func (f *Frame) Index() []time.Time {
	out := make([]time.Time, len(f.index))
	copy(out, f.index)
	return out
}

// Keys returns column keys in insertion order.
func (f *Frame) Keys() []Key {
	out := make([]Key, len(f.keys))
	copy(out, f.keys)
	return out
}

// Set adds or replaces a column. The values are copied.
func (f *Frame) Set(key Key, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("column %s has %d values, index has %d", key, len(values), len(f.index))
	}
	if _, ok := f.cols[key]; !ok {
		f.keys = append(f.keys, key)
	}
	col := make([]float64, len(values))
	copy(col, values)
	f.cols[key] = col
	return nil
}

func (f *Frame) Get(key Key) ([]float64, bool) {
	col, ok := f.cols[key]
	return col, ok
}

// Column looks up a flat column by field name.
func (f *Frame) Column(field string) ([]float64, bool) {
	return f.Get(Key{Field: field})
}

// Layered reports whether any column carries a symbol level.
func (f *Frame) Layered() bool {
	for _, k := range f.keys {
		if k.Symbol != "" {
			return true
		}
	}
	return false
}

// Symbols lists the distinct symbols of a layered frame, in column order.
func (f *Frame) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range f.keys {
		if k.Symbol == "" || seen[k.Symbol] {
			continue
		}
		seen[k.Symbol] = true
		out = append(out, k.Symbol)
	}
	return out
}

// XS selects the cross-section of one symbol and drops the symbol level.
// Columns of other symbols are left out.
func (f *Frame) XS(symbol string) *Frame {
	out := New(f.index)
	for _, k := range f.keys {
		if k.Symbol != symbol {
			continue
		}
		// lengths already match the shared index
		_ = out.Set(Key{Field: k.Field}, f.cols[k])
	}
	return out
}

// Rename returns a copy with every field name mapped through fn.
// Symbol levels are preserved.
func (f *Frame) Rename(fn func(string) string) *Frame {
	out := New(f.index)
	for _, k := range f.keys {
		_ = out.Set(Key{Field: fn(k.Field), Symbol: k.Symbol}, f.cols[k])
	}
	return out
}

// NaNs returns a column of n missing values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
