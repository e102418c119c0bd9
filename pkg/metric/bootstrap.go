// Package metric measures how well a fitted forecast reproduces the history
// it was fitted on.
package metric

import (
	"math/rand"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval is a confidence interval estimated by resampling
type BootstrapInterval struct {
	Lower  float64
	Upper  float64
	StdDev float64
	Mean   float64
}

// Bootstrap estimates the confidence interval of measure over values by
// drawing samples resamples with replacement from rng.
func Bootstrap(values []float64, measure func([]float64) float64, samples int,
	confidence float64, rng *rand.Rand) BootstrapInterval {

	if len(values) == 0 || samples < 1 {
		return BootstrapInterval{}
	}

	data := lo.Times(samples, func(_ int) float64 {
		resample := lo.Times(len(values), func(_ int) float64 {
			return values[rng.Intn(len(values))]
		})
		return measure(resample)
	})

	tail := 1 - confidence
	sort.Float64s(data)

	mean, stdDev := stat.MeanStdDev(data, nil)
	return BootstrapInterval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		StdDev: stdDev,
		Mean:   mean,
	}
}
