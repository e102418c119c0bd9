package plot

import (
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
)

// aligned reports whether series shares the date axis of df point for point
func aligned(df *core.Dataframe, series indicator.Series) error {
	if series.Len() != df.Len() {
		return fmt.Errorf("%w: %s has %d points, candles have %d",
			core.ErrMisalignedSeries, series.Name, series.Len(), df.Len())
	}

	for i, t := range series.Time {
		if !t.Equal(df.Time[i]) {
			return fmt.Errorf("%w: %s point %d is %s, candle is %s", core.ErrMisalignedSeries,
				series.Name, i, t.Format(time.DateOnly), df.Time[i].Format(time.DateOnly))
		}
	}

	for _, line := range series.Lines {
		if len(line.Values) != df.Len() {
			return fmt.Errorf("%w: %s line %s has %d values",
				core.ErrMisalignedSeries, series.Name, line.Name, len(line.Values))
		}
	}

	return nil
}

// plotIndicatorOf keeps only the defined points of every line
func plotIndicatorOf(series indicator.Series) PlotIndicator {
	plotted := PlotIndicator{
		Name:    series.Name,
		Overlay: true,
		Metrics: make([]IndicatorMetric, 0, len(series.Lines)),
	}

	for _, line := range series.Lines {
		metric := IndicatorMetric{
			Name:   line.Name,
			Color:  line.Color,
			Style:  styleOf(line.Name),
			Time:   make([]time.Time, 0, len(line.Values)),
			Values: make([]float64, 0, len(line.Values)),
		}

		for i, v := range line.Values {
			if !line.Defined(i) {
				continue
			}
			metric.Time = append(metric.Time, series.Time[i])
			metric.Values = append(metric.Values, v)
		}

		plotted.Metrics = append(plotted.Metrics, metric)
	}

	return plotted
}

func styleOf(name string) string {
	if strings.HasSuffix(name, " upper") || strings.HasSuffix(name, " lower") {
		return "dashed"
	}
	return "line"
}

func forecastOverlayOf(result *forecast.Result, full bool) *ForecastOverlay {
	points := result.Future()
	if full {
		points = result.Points
	}

	overlay := &ForecastOverlay{
		Horizon: result.Horizon,
		Full:    full,
		Next:    forecastPointOf(result.Next()),
		Points:  make([]ForecastPoint, len(points)),
	}
	for i, p := range points {
		overlay.Points[i] = forecastPointOf(p)
	}

	return overlay
}

func forecastPointOf(p forecast.Point) ForecastPoint {
	return ForecastPoint{Time: p.Date, Predicted: p.Predicted, Lower: p.Lower, Upper: p.Upper}
}
