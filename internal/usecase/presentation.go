package usecase

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	talib "github.com/markcheno/go-talib"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/frame"
	"go.uber.org/zap"
)

const (
	DefaultChartTitle = "Advanced Trading Strategy Visualization with Buy/Sell Signals and Moving Averages"
	DefaultChartFile  = "advanced_trading_strategy_chart.html"

	fieldOpen   = "open"
	fieldHigh   = "high"
	fieldLow    = "low"
	fieldClose  = "close"
	fieldVolume = "volume"
)

var DefaultMAWindows = []int{50, 200}

// MissingFieldError reports a required column absent after reshaping.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("no %q column found in the price table", e.Field)
}

// Reshape selects symbol from a layered table and lowercases every field
// name. Flat input is only lowercased.
func Reshape(raw *frame.Frame, symbol string) (*frame.Frame, error) {
	if raw == nil {
		return nil, errors.New("nil price table")
	}

	series := raw
	if raw.Layered() {
		series = raw.XS(symbol)
	}
	series = series.Rename(strings.ToLower)

	if _, ok := series.Column(fieldClose); !ok {
		return nil, &MissingFieldError{Field: fieldClose}
	}
	return series, nil
}

func maField(window int) string {
	return "ma" + strconv.Itoa(window)
}

// ComputeMovingAverages adds a trailing simple mean of close for each window
// as column "ma<window>". A row is NaN until the window is full or when any
// close inside the window is missing.
func ComputeMovingAverages(series *frame.Frame, windows ...int) error {
	if len(windows) == 0 {
		windows = DefaultMAWindows
	}
	closes, ok := series.Column(fieldClose)
	if !ok {
		return &MissingFieldError{Field: fieldClose}
	}

	for _, w := range windows {
		if w <= 0 {
			return fmt.Errorf("moving average window must be positive, got %d", w)
		}
		if err := series.Set(frame.Key{Field: maField(w)}, rollingMean(closes, w)); err != nil {
			return fmt.Errorf("failed to add %s: %w", maField(w), err)
		}
	}
	return nil
}

// rollingMean averages each gap-free run of values on its own; Sma cannot
// step over NaN.
func rollingMean(values []float64, window int) []float64 {
	out := frame.NaNs(len(values))
	start := 0
	for start < len(values) {
		if math.IsNaN(values[start]) {
			start++
			continue
		}
		end := start
		for end < len(values) && !math.IsNaN(values[end]) {
			end++
		}
		if end-start >= window {
			sma := talib.Sma(values[start:end], window)
			copy(out[start+window-1:end], sma[window-1:])
		}
		start = end
	}
	return out
}

// Bars converts a flat series to bars. Columns other than close may be
// absent and read as NaN.
func Bars(series *frame.Frame) ([]domain.Bar, error) {
	closes, ok := series.Column(fieldClose)
	if !ok {
		return nil, &MissingFieldError{Field: fieldClose}
	}
	n := series.Len()
	col := func(field string) []float64 {
		if c, ok := series.Column(field); ok {
			return c
		}
		return frame.NaNs(n)
	}
	opens, highs, lows, volumes := col(fieldOpen), col(fieldHigh), col(fieldLow), col(fieldVolume)

	index := series.Index()
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Date:   index[i],
			Open:   opens[i],
			High:   highs[i],
			Low:    lows[i],
			Close:  closes[i],
			Volume: volumes[i],
		}
	}
	return bars, nil
}

type overlayStyle struct {
	color string
	dash  string
}

var overlayStyles = map[int]overlayStyle{
	50:  {color: "dodgerblue", dash: "dotted"},
	200: {color: "gold", dash: "dashed"},
}

// Presenter builds the annotated chart and hands it to a renderer.
type Presenter struct {
	renderer domain.ChartRenderer
	title    string
	logger   *zap.Logger
}

func NewPresenter(renderer domain.ChartRenderer, title string, logger *zap.Logger) *Presenter {
	if title == "" {
		title = DefaultChartTitle
	}
	return &Presenter{
		renderer: renderer,
		title:    title,
		logger:   logger,
	}
}

// ChartSpec describes the candles, every ma<N> column of series and the
// signal markers.
func (p *Presenter) ChartSpec(series *frame.Frame, symbol string, buys, sells []domain.SignalEvent) (domain.ChartSpec, error) {
	bars, err := Bars(series)
	if err != nil {
		return domain.ChartSpec{}, err
	}

	spec := domain.ChartSpec{
		Title:  p.title,
		Symbol: symbol,
		Bars:   bars,
		Buys:   buys,
		Sells:  sells,
	}
	for _, k := range series.Keys() {
		window, ok := parseMAField(k.Field)
		if !ok {
			continue
		}
		values, _ := series.Column(k.Field)
		style, ok := overlayStyles[window]
		if !ok {
			style = overlayStyle{color: "silver", dash: "solid"}
		}
		spec.Overlays = append(spec.Overlays, domain.LineOverlay{
			Name:   fmt.Sprintf("%d-Day MA", window),
			Values: values,
			Color:  style.color,
			Dash:   style.dash,
		})
	}
	return spec, nil
}

func parseMAField(field string) (int, bool) {
	if !strings.HasPrefix(field, "ma") {
		return 0, false
	}
	n, err := strconv.Atoi(field[2:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (p *Presenter) Render(w io.Writer, series *frame.Frame, symbol string, buys, sells []domain.SignalEvent) error {
	spec, err := p.ChartSpec(series, symbol, buys, sells)
	if err != nil {
		return err
	}
	return p.renderer.Render(w, spec)
}

// RenderFile writes the chart as a standalone HTML document.
func (p *Presenter) RenderFile(path string, series *frame.Frame, symbol string, buys, sells []domain.SignalEvent) error {
	if path == "" {
		path = DefaultChartFile
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := p.Render(f, series, symbol, buys, sells); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	p.logger.Info("Chart written",
		zap.String("path", path),
		zap.Int("buys", len(buys)),
		zap.Int("sells", len(sells)),
	)
	return nil
}

// SignalTable merges the buy and sell logs into one date-ordered table.
func SignalTable(buys, sells []domain.SignalEvent) []domain.SignalEvent {
	out := make([]domain.SignalEvent, 0, len(buys)+len(sells))
	out = append(out, buys...)
	out = append(out, sells...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func lastClose(bars []domain.Bar) float64 {
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].HasClose() {
			return bars[i].Close
		}
	}
	return math.NaN()
}
