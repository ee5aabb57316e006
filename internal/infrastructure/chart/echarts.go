package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/vitos/momentum_backtest/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	chartID    = "backtest"
)

// Dark dashboard palette.
const (
	colorUp         = "limegreen"
	colorDown       = "crimson"
	colorBuy        = "green"
	colorSell       = "red"
	colorBackground = "black"
	colorText       = "white"
)

type EChartsRenderer struct {
	width  string
	height string
}

func NewEChartsRenderer() *EChartsRenderer {
	return &EChartsRenderer{
		width:  "100%",
		height: "700px",
	}
}

func (r *EChartsRenderer) Render(w io.Writer, spec domain.ChartSpec) error {
	if len(spec.Bars) == 0 {
		return errors.New("no bars to render")
	}

	dates := make([]string, len(spec.Bars))
	candles := make([]opts.KlineData, len(spec.Bars))
	for i, b := range spec.Bars {
		dates[i] = b.Date.Format(dateLayout)
		if anyNaN(b.Open, b.Close, b.Low, b.High) {
			candles[i] = opts.KlineData{Value: nil}
			continue
		}
		// echarts order: open, close, lowest, highest
		candles[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       spec.Title,
			ChartID:         chartID,
			Width:           r.width,
			Height:          r.height,
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: spec.Title,
			Left:  "center",
			TitleStyle: &opts.TextStyle{
				Color:    colorText,
				FontSize: 14,
			},
		}),
		charts.WithLegendOpts(opts.Legend{
			Show:      true,
			Orient:    "horizontal",
			Left:      "center",
			Top:       "30",
			TextStyle: &opts.TextStyle{Color: colorText},
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    true,
			Trigger: "axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Date",
			AxisLabel: axisLabel(),
			AxisTick:  &opts.AxisTick{Show: true},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Price",
			Min:       "dataMin",
			Max:       "dataMax",
			AxisLabel: axisLabel(),
			AxisLine: &opts.AxisLine{
				Show:      true,
				LineStyle: &opts.LineStyle{Color: colorText, Width: 2},
			},
			SplitLine: &opts.SplitLine{
				Show:      true,
				LineStyle: &opts.LineStyle{Color: colorText, Opacity: 0.15},
			},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	)
	// opts.XAxis has no axis line option in this go-echarts release
	kline.AddJSFuncs(fmt.Sprintf(
		"goecharts_%s.setOption({xAxis: [{axisLine: {show: true, lineStyle: {color: '%s', width: 2}}}]});",
		chartID, colorText,
	))

	kline.SetXAxis(dates).AddSeries(spec.Symbol, candles,
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorUp,
			Color0:       colorDown,
			BorderColor:  colorUp,
			BorderColor0: colorDown,
			Opacity:      0.9,
		}),
	)

	for _, o := range spec.Overlays {
		kline.Overlap(overlayLine(dates, o))
	}
	kline.Overlap(
		markers(dates, "Buy Signal", spec.Buys, colorBuy, 0),
		markers(dates, "Sell Signal", spec.Sells, colorSell, 180),
	)

	return kline.Render(w)
}

func overlayLine(dates []string, o domain.LineOverlay) *charts.Line {
	data := make([]opts.LineData, len(o.Values))
	for i, v := range o.Values {
		if math.IsNaN(v) {
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetXAxis(dates).AddSeries(o.Name, data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: false}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: o.Color, Width: 2, Type: o.Dash}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: o.Color}),
	)
	return line
}

// markers places one triangle per event; rotate 180 points it down.
func markers(dates []string, name string, events []domain.SignalEvent, color string, rotate int) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(events))
	for _, e := range events {
		data = append(data, opts.ScatterData{
			Value:        []interface{}{e.Date.Format(dateLayout), e.Price},
			Symbol:       "triangle",
			SymbolSize:   12,
			SymbolRotate: rotate,
		})
	}

	scatter := charts.NewScatter()
	scatter.SetXAxis(dates).AddSeries(name, data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color, BorderColor: "black"}),
	)
	return scatter
}

// axisLabel keeps the first and last tick labels, which the zero value hides.
func axisLabel() *opts.AxisLabel {
	return &opts.AxisLabel{
		Show:         true,
		ShowMinLabel: true,
		ShowMaxLabel: true,
		Color:        colorText,
	}
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
