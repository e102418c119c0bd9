package metric

import (
	"math"
	"math/rand"

	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	bootstrapSamples    = 2000
	bootstrapConfidence = 0.95
)

// Accuracy summarises the in-sample errors of a forecast
type Accuracy struct {
	Observations int
	MAE          float64
	RMSE         float64
	// MAPE is a fraction, 0.05 means 5 %
	MAPE     float64
	Coverage float64
	MAPEBand BootstrapInterval
}

// Evaluate compares every observed point of result with its actual close.
// The bootstrap is seeded so the same result always yields the same band.
func Evaluate(result *forecast.Result) Accuracy {
	observed := lo.Filter(result.Points, func(p forecast.Point, _ int) bool { return p.Observed })
	if len(observed) == 0 {
		return Accuracy{}
	}

	residuals := result.Residuals()
	absolute := lo.Map(residuals, func(r float64, _ int) float64 { return math.Abs(r) })
	percent := lo.FilterMap(observed, func(p forecast.Point, _ int) (float64, bool) {
		if p.Actual == 0 {
			return 0, false
		}
		return math.Abs((p.Actual - p.Predicted) / p.Actual), true
	})
	inside := lo.CountBy(observed, func(p forecast.Point) bool {
		return p.Actual >= p.Lower && p.Actual <= p.Upper
	})

	accuracy := Accuracy{
		Observations: len(observed),
		MAE:          stat.Mean(absolute, nil),
		RMSE:         math.Sqrt(floats.Dot(residuals, residuals) / float64(len(residuals))),
		Coverage:     float64(inside) / float64(len(observed)),
	}

	if len(percent) > 0 {
		accuracy.MAPE = stat.Mean(percent, nil)
		accuracy.MAPEBand = Bootstrap(percent, func(sample []float64) float64 {
			return stat.Mean(sample, nil)
		}, bootstrapSamples, bootstrapConfidence, rand.New(rand.NewSource(int64(len(percent)))))
	}

	return accuracy
}
