package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_bars_total", Help: "Bars evaluated by the signal engine"},
		[]string{"symbol"},
	)
	SkippedBarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_skipped_bars_total", Help: "Bars skipped for a missing close"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_signals_total", Help: "Signal events recorded"},
		[]string{"symbol", "kind"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_fills_total", Help: "Orders filled by the paper broker"},
		[]string{"symbol", "side"},
	)
	RejectedOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_rejected_orders_total", Help: "Submitted orders the broker did not fill"},
		[]string{"symbol", "side"},
	)
)

func init() {
	prometheus.MustRegister(BarsTotal, SkippedBarsTotal, SignalsTotal, FillsTotal, RejectedOrdersTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
