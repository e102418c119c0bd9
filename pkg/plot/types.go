package plot

import (
	"time"
)

// Candle is one raw OHLCV bar as plotted
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	Close  float64   `json:"close"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Volume float64   `json:"volume"`
}

// IndicatorMetric is one line of an indicator, restricted to its defined points
type IndicatorMetric struct {
	Name   string      `json:"name"`
	Color  string      `json:"color"`
	Style  string      `json:"style"`
	Time   []time.Time `json:"time"`
	Values []float64   `json:"value"`
}

// PlotIndicator groups the lines of one indicator
type PlotIndicator struct {
	Name    string            `json:"name"`
	Overlay bool              `json:"overlay"`
	Metrics []IndicatorMetric `json:"metrics"`
}

// ForecastPoint is one predicted value with its bounds
type ForecastPoint struct {
	Time      time.Time `json:"time"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// ForecastOverlay is the forecast part of a chart. Points holds only the
// horizon unless Full is set, in which case the fitted history comes first.
type ForecastOverlay struct {
	Horizon int             `json:"horizon"`
	Full    bool            `json:"full"`
	Next    ForecastPoint   `json:"next"`
	Points  []ForecastPoint `json:"points"`
}

// ChartSpec is everything needed to draw one chart. A ChartSpec shares no
// memory with the inputs it was composed from.
type ChartSpec struct {
	Ticker     string           `json:"ticker"`
	CreatedAt  time.Time        `json:"created_at"`
	Candles    []Candle         `json:"candles"`
	Indicators []PlotIndicator  `json:"indicators"`
	Forecast   *ForecastOverlay `json:"forecast,omitempty"`
}

// LastCandle returns the most recent candle. Specs built by Compose always
// hold at least one.
func (s *ChartSpec) LastCandle() Candle {
	return s.Candles[len(s.Candles)-1]
}
