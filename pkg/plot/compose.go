// Package plot composes price, indicator and forecast series into a chart
// and rasterises it.
package plot

import (
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
)

type composeOptions struct {
	fullForecast bool
	now          func() time.Time
}

// ComposeOption configures a single Compose call
type ComposeOption func(*composeOptions)

// WithFullForecast overlays the fitted history as well as the horizon
func WithFullForecast(full bool) ComposeOption {
	return func(o *composeOptions) {
		o.fullForecast = full
	}
}

// WithClock sets the clock used for ChartSpec.CreatedAt
func WithClock(now func() time.Time) ComposeOption {
	return func(o *composeOptions) {
		o.now = now
	}
}

// Compose joins candles, indicators and an optional forecast on the date
// axis of df. It rejects an empty df and indicators that do not share its
// dates. Inputs are never modified and the returned spec copies all data.
func Compose(df *core.Dataframe, indicators []indicator.Series, result *forecast.Result,
	options ...ComposeOption) (*ChartSpec, error) {

	opts := composeOptions{now: time.Now}
	for _, option := range options {
		option(&opts)
	}

	if df.Len() == 0 {
		return nil, core.ErrEmptySeries
	}

	for _, series := range indicators {
		if err := aligned(df, series); err != nil {
			return nil, err
		}
	}

	spec := &ChartSpec{
		Ticker:     df.Ticker,
		CreatedAt:  opts.now(),
		Candles:    candlesOf(df),
		Indicators: make([]PlotIndicator, 0, len(indicators)),
	}

	for _, series := range indicators {
		spec.Indicators = append(spec.Indicators, plotIndicatorOf(series))
	}

	if result != nil && result.Len() > 0 {
		spec.Forecast = forecastOverlayOf(result, opts.fullForecast)
	}

	return spec, nil
}
