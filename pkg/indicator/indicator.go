// Package indicator derives overlay series (moving averages, bands, VWAP)
// from a price dataframe. Every computation is a pure function of its input.
package indicator

import (
	"math"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/raykavin/forecastx/pkg/core"
	"gonum.org/v1/gonum/stat"
)

var colors = map[Kind]string{
	KindSMA:       "#f0a30a",
	KindEMA:       "#a05195",
	KindBollinger: "#4682b4",
	KindVWAP:      "#2f9e8f",
}

// Line is one plotted curve of an indicator. Undefined points hold NaN.
type Line struct {
	Name   string
	Color  string
	Values []float64
}

// Defined reports whether the value at i should be plotted
func (l Line) Defined(i int) bool {
	return i >= 0 && i < len(l.Values) && !math.IsNaN(l.Values[i])
}

// Series is the result of one indicator computation, aligned with the
// dataframe it was computed from.
type Series struct {
	Name  string
	Spec  Spec
	Time  []time.Time
	Lines []Line
}

// Len returns the number of points on the date axis
func (s Series) Len() int {
	return len(s.Time)
}

// Compute evaluates spec over df. A dataframe shorter than the indicator
// warm-up yields a series whose values are all undefined.
func Compute(df *core.Dataframe, spec Spec) Series {
	times := make([]time.Time, df.Len())
	var closes, volumes []float64
	if df != nil {
		copy(times, df.Time)
		closes, volumes = df.Close, df.Volume
	}

	series := Series{Name: spec.Name(), Spec: spec, Time: times}
	color := colors[spec.Kind]

	switch spec.Kind {
	case KindSMA:
		series.Lines = []Line{{Name: spec.Name(), Color: color, Values: sma(closes, spec.Window)}}
	case KindEMA:
		series.Lines = []Line{{Name: spec.Name(), Color: color, Values: ema(closes, spec.Window)}}
	case KindBollinger:
		upper, middle, lower := bollinger(closes, spec.Window, spec.Multiplier)
		series.Lines = []Line{
			{Name: spec.Name() + " upper", Color: color, Values: upper},
			{Name: spec.Name() + " middle", Color: color, Values: middle},
			{Name: spec.Name() + " lower", Color: color, Values: lower},
		}
	case KindVWAP:
		series.Lines = []Line{{Name: spec.Name(), Color: color, Values: vwap(closes, volumes)}}
	}

	return series
}

// ComputeAll evaluates each spec concurrently over the same snapshot and
// returns the series in the order of specs.
func ComputeAll(df *core.Dataframe, specs []Spec) []Series {
	var (
		results = make([]Series, len(specs))
		wg      sync.WaitGroup
	)

	for i, spec := range specs {
		wg.Add(1)
		go func(index int, spec Spec) {
			defer wg.Done()
			results[index] = Compute(df, spec)
		}(i, spec)
	}

	wg.Wait()
	return results
}

func undefined(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return values
}

func sma(closes []float64, window int) []float64 {
	if window < 1 || len(closes) < window {
		return undefined(len(closes))
	}

	values := talib.Sma(closes, window)
	for i := 0; i < window-1; i++ {
		values[i] = math.NaN()
	}
	return values
}

// ema seeds the recurrence with the first finite close and reports NaN
// during the warm-up window.
func ema(closes []float64, window int) []float64 {
	values := undefined(len(closes))
	if window < 1 || len(closes) < window {
		return values
	}

	alpha := 2 / (float64(window) + 1)
	current, seeded := 0.0, false

	for i, c := range closes {
		if math.IsNaN(c) {
			continue
		}

		if !seeded {
			current, seeded = c, true
		} else {
			current = alpha*c + (1-alpha)*current
		}

		if i >= window-1 {
			values[i] = current
		}
	}

	return values
}

func bollinger(closes []float64, window int, k float64) (upper, middle, lower []float64) {
	middle = sma(closes, window)
	upper = undefined(len(closes))
	lower = undefined(len(closes))

	for i := window - 1; i < len(closes) && window >= 1; i++ {
		if math.IsNaN(middle[i]) {
			continue
		}

		sd := stat.StdDev(closes[i-window+1:i+1], nil)
		if math.IsNaN(sd) {
			continue
		}

		upper[i] = middle[i] + k*sd
		lower[i] = middle[i] - k*sd
	}

	return upper, middle, lower
}

// vwap is cumulative over the whole series, not reset per session
func vwap(closes, volumes []float64) []float64 {
	values := undefined(len(closes))

	var cumulativePV, cumulativeVolume float64
	for i := range closes {
		cumulativePV += closes[i] * volumes[i]
		cumulativeVolume += volumes[i]

		if cumulativeVolume > 0 {
			values[i] = cumulativePV / cumulativeVolume
		}
	}

	return values
}
