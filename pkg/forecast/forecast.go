// Package forecast fits a trend plus seasonality model to a closing price
// series and extrapolates it a few days ahead with confidence bounds.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	MinHorizon = 1
	MaxHorizon = 30

	DefaultIntervalWidth = 0.8
	DefaultPriorScale    = 10.0
)

var ErrInvalidHorizon = errors.New("invalid forecast horizon")

// Seasonality controls whether a seasonal component is part of the model
type Seasonality int

const (
	// SeasonalityAuto enables the component when the history is long enough
	SeasonalityAuto Seasonality = iota
	SeasonalityOn
	SeasonalityOff
)

func (s Seasonality) enabled(auto bool) bool {
	switch s {
	case SeasonalityOn:
		return true
	case SeasonalityOff:
		return false
	default:
		return auto
	}
}

// Request asks for a forecast of Dataframe closes Horizon days ahead
type Request struct {
	Dataframe *core.Dataframe
	Horizon   int
}

// Point is one row of a forecast. Observed points carry the actual close.
type Point struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
	Actual    float64   `json:"-"`
	Observed  bool      `json:"observed"`
}

// Result holds the in-sample reconstruction followed by Horizon future points
type Result struct {
	Ticker    string
	Points    []Point
	Horizon   int
	Observed  int
	Precision int
}

// Len returns the number of points, history and horizon included
func (r *Result) Len() int {
	return len(r.Points)
}

// Next returns the headline prediction, the point at offset Len()-Horizon
func (r *Result) Next() Point {
	return r.Points[len(r.Points)-r.Horizon]
}

// Future returns a copy of the horizon slice
func (r *Result) Future() []Point {
	return append([]Point(nil), r.Points[len(r.Points)-r.Horizon:]...)
}

// Residuals returns close minus fitted value for every observed point
func (r *Result) Residuals() []float64 {
	observed := lo.Filter(r.Points, func(p Point, _ int) bool { return p.Observed })
	return lo.Map(observed, func(p Point, _ int) float64 { return p.Actual - p.Predicted })
}

// Engine fits a fresh model on every call and keeps no state between calls
type Engine struct {
	intervalWidth float64
	priorScale    float64
	weekly        Seasonality
	yearly        Seasonality
	log           logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithIntervalWidth sets the coverage of the confidence bounds, in (0, 1)
func WithIntervalWidth(width float64) Option {
	return func(e *Engine) {
		if width > 0 && width < 1 {
			e.intervalWidth = width
		}
	}
}

// WithSeasonalityPriorScale sets how freely seasonal terms may fit the data.
// Smaller values shrink seasonality towards zero.
func WithSeasonalityPriorScale(scale float64) Option {
	return func(e *Engine) {
		if scale > 0 {
			e.priorScale = scale
		}
	}
}

// WithWeeklySeasonality forces the weekly terms on or off
func WithWeeklySeasonality(mode Seasonality) Option {
	return func(e *Engine) {
		e.weekly = mode
	}
}

// WithYearlySeasonality forces the yearly terms on or off
func WithYearlySeasonality(mode Seasonality) Option {
	return func(e *Engine) {
		e.yearly = mode
	}
}

// WithLogger sets the logger used to report fits
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an engine with the default 80% interval
func NewEngine(options ...Option) *Engine {
	engine := &Engine{
		intervalWidth: DefaultIntervalWidth,
		priorScale:    DefaultPriorScale,
		log:           zerolog.Nop(),
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// ValidateHorizon checks that horizon is within [MinHorizon, MaxHorizon]
func ValidateHorizon(horizon int) error {
	if horizon < MinHorizon || horizon > MaxHorizon {
		return fmt.Errorf("%w: %d is outside [%d, %d]", ErrInvalidHorizon, horizon, MinHorizon, MaxHorizon)
	}
	return nil
}

// FitAndPredict fits the model on the request closes and returns the fitted
// history followed by Horizon daily predictions past the last observed date.
func (e *Engine) FitAndPredict(req Request) (*Result, error) {
	if err := ValidateHorizon(req.Horizon); err != nil {
		return nil, err
	}

	history := observations(req.Dataframe)
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 dated closes, got %d", core.ErrInsufficientData, len(history))
	}

	m := newModel(history, e.weekly, e.yearly, e.priorScale)
	if err := m.fit(history); err != nil {
		return nil, err
	}

	z := distuv.UnitNormal.Quantile(0.5 + e.intervalWidth/2)

	result := &Result{
		Ticker:    req.Dataframe.Ticker,
		Points:    make([]Point, 0, len(history)+req.Horizon),
		Horizon:   req.Horizon,
		Observed:  len(history),
		Precision: core.PricePrecision(lo.Map(history, func(o observation, _ int) float64 { return o.close })),
	}

	var halfWidth float64
	for _, o := range history {
		predicted, se := m.predict(o.time)
		halfWidth = z * se
		result.Points = append(result.Points, Point{
			Date:      o.time,
			Predicted: predicted,
			Lower:     predicted - halfWidth,
			Upper:     predicted + halfWidth,
			Actual:    o.close,
			Observed:  true,
		})
	}

	last := history[len(history)-1].time
	for h := 1; h <= req.Horizon; h++ {
		date := last.AddDate(0, 0, h)
		predicted, se := m.predict(date)

		// bounds never narrow as we move away from the data
		halfWidth = math.Max(halfWidth, z*se)
		result.Points = append(result.Points, Point{
			Date:      date,
			Predicted: predicted,
			Lower:     predicted - halfWidth,
			Upper:     predicted + halfWidth,
			Actual:    math.NaN(),
		})
	}

	e.log.WithFields(map[string]any{
		"ticker":  result.Ticker,
		"points":  len(history),
		"horizon": req.Horizon,
		"weekly":  m.weekly,
		"yearly":  m.yearly,
		"sigma":   m.sigma,
	}).Debug("forecast fitted")

	return result, nil
}

// observations keeps one finite close per calendar day, the latest one
func observations(df *core.Dataframe) []observation {
	history := make([]observation, 0, df.Len())
	for i := 0; i < df.Len(); i++ {
		price := df.Close[i]
		if math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}

		o := observation{time: df.Time[i], close: price}
		if n := len(history); n > 0 && sameDay(history[n-1].time, o.time) {
			history[n-1] = o
			continue
		}
		history = append(history, o)
	}
	return history
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
