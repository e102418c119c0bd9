package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"gonum.org/v1/gonum/mat"
)

const (
	trendTerms = 2

	weeklyPeriod = 7.0
	weeklyOrder  = 3
	yearlyPeriod = 365.25
	yearlyOrder  = 10

	weeklyMinSpanDays = 14
	yearlyMinSpanDays = 730

	secondsPerDay = 24 * 60 * 60
)

type observation struct {
	time  time.Time
	close float64
}

// model is a linear trend plus Fourier seasonalities, fit by least squares
// with a ridge penalty on the seasonal coefficients only.
type model struct {
	origin time.Time
	span   float64
	scale  float64
	weekly bool
	yearly bool
	lambda float64

	beta       *mat.VecDense
	covariance *mat.SymDense
	sigma      float64
}

func newModel(history []observation, weekly, yearly Seasonality, priorScale float64) *model {
	first, last := history[0].time, history[len(history)-1].time
	span := last.Sub(first).Hours() / 24

	scale := 0.0
	for _, o := range history {
		scale = math.Max(scale, math.Abs(o.close))
	}
	if scale == 0 {
		scale = 1
	}

	return &model{
		origin: first,
		span:   span,
		scale:  scale,
		weekly: weekly.enabled(span >= weeklyMinSpanDays),
		yearly: yearly.enabled(span >= yearlyMinSpanDays),
		lambda: 1 / (priorScale * priorScale),
	}
}

func (m *model) features(t time.Time) *mat.VecDense {
	row := []float64{1, t.Sub(m.origin).Hours() / 24 / m.span}

	days := float64(t.Unix()) / secondsPerDay
	if m.weekly {
		row = appendFourier(row, days, weeklyPeriod, weeklyOrder)
	}
	if m.yearly {
		row = appendFourier(row, days, yearlyPeriod, yearlyOrder)
	}

	return mat.NewVecDense(len(row), row)
}

func appendFourier(row []float64, days, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * days / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

func (m *model) fit(history []observation) error {
	n, p := len(history), m.features(history[0].time).Len()

	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, o := range history {
		x.SetRow(i, m.features(o.time).RawVector().Data)
		y.SetVec(i, o.close/m.scale)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, x.T())

	penalized := mat.NewSymDense(p, nil)
	penalized.CopySym(&gram)
	for j := trendTerms; j < p; j++ {
		penalized.SetSym(j, j, penalized.At(j, j)+m.lambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(penalized); !ok {
		return fmt.Errorf("%w: trend design is singular", core.ErrInsufficientData)
	}

	var rhs mat.VecDense
	rhs.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil && !isCondition(err) {
		return fmt.Errorf("solve normal equations: %w", err)
	}

	var covariance mat.SymDense
	if err := chol.InverseTo(&covariance); err != nil && !isCondition(err) {
		return fmt.Errorf("invert normal equations: %w", err)
	}

	// Degrees of freedom left after the ridge fit: n - trace(hat matrix).
	var hat mat.Dense
	hat.Mul(&covariance, &gram)
	dof := math.Max(float64(n)-mat.Trace(&hat), 1)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)

	sse := 0.0
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		sse += r * r
	}

	m.beta = &beta
	m.covariance = &covariance
	m.sigma = math.Sqrt(sse/dof) * m.scale

	return nil
}

// predict returns the point estimate at t and the standard error of a new
// observation at t, both in price units.
func (m *model) predict(t time.Time) (float64, float64) {
	x := m.features(t)
	leverage := math.Max(mat.Inner(x, m.covariance, x), 0)
	return mat.Dot(x, m.beta) * m.scale, m.sigma * math.Sqrt(1+leverage)
}

func isCondition(err error) bool {
	var condition mat.Condition
	return errors.As(err, &condition)
}
