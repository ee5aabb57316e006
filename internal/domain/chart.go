package domain

// ChartSpec is a declarative description of the annotated price chart.
type ChartSpec struct {
	Title    string
	Symbol   string
	Bars     []Bar
	Overlays []LineOverlay
	Buys     []SignalEvent
	Sells    []SignalEvent
}

// LineOverlay is a line series aligned with Bars. NaN values are gaps.
type LineOverlay struct {
	Name   string
	Values []float64
	Color  string
	Dash   string // "solid", "dotted" or "dashed"
}
