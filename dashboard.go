// Package forecastx wires the price sources, the indicator and forecast
// engines, the chart composer and the advisory bridge into one pipeline.
package forecastx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/forecastx/pkg/advisory"
	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/plot"
	"github.com/raykavin/forecastx/pkg/session"
)

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrNoForecast   = errors.New("no forecast to export")
)

// Forecaster fits a forecast for a request
type Forecaster interface {
	FitAndPredict(req forecast.Request) (*forecast.Result, error)
}

// View is what the user selected to display over the active series
type View struct {
	Horizon      int
	Indicators   []indicator.Spec
	FullForecast bool
}

// specs returns the selected indicators, DefaultSpecs when none are
func (v View) specs() []indicator.Spec {
	if len(v.Indicators) == 0 {
		return indicator.DefaultSpecs
	}
	return v.Indicators
}

// Validate checks the horizon and every selected indicator
func (v View) Validate() error {
	if err := forecast.ValidateHorizon(v.Horizon); err != nil {
		return err
	}
	for _, spec := range v.specs() {
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Frame is the outcome of one render pass. The forecast stage fails on its
// own: ForecastErr is set and Forecast is nil, the rest is still drawn.
type Frame struct {
	Ticker      string
	Spec        *plot.ChartSpec
	PNG         []byte
	Indicators  []indicator.Series
	Forecast    *forecast.Result
	ForecastErr error
}

// Dashboard runs the pipeline for one session. Passes never overlap.
type Dashboard struct {
	mu sync.Mutex

	session    *session.Session
	feeder     core.Feeder
	forecaster Forecaster
	bridge     *advisory.Bridge
	log        logger.Logger

	width, height int
	now           func() time.Time
	last          *Frame
}

type Option func(*Dashboard)

// WithSession reuses an existing session instead of opening a new one
func WithSession(s *session.Session) Option {
	return func(d *Dashboard) {
		d.session = s
	}
}

func WithForecaster(f Forecaster) Option {
	return func(d *Dashboard) {
		d.forecaster = f
	}
}

// WithAdvisory sets the bridge used by Advise, unconfigured by default
func WithAdvisory(bridge *advisory.Bridge) Option {
	return func(d *Dashboard) {
		d.bridge = bridge
	}
}

func WithLogger(log logger.Logger) Option {
	return func(d *Dashboard) {
		d.log = log
	}
}

// WithCanvas sets the size of the rendered chart image
func WithCanvas(width, height int) Option {
	return func(d *Dashboard) {
		d.width, d.height = width, height
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		d.now = now
	}
}

func NewDashboard(feeder core.Feeder, options ...Option) *Dashboard {
	d := &Dashboard{
		feeder: feeder,
		log:    DefaultLog,
		width:  plot.DefaultWidth,
		height: plot.DefaultHeight,
		now:    time.Now,
	}

	for _, option := range options {
		option(d)
	}

	if d.session == nil {
		d.session = session.New()
	}
	if d.forecaster == nil {
		d.forecaster = forecast.NewEngine(forecast.WithLogger(d.log))
	}
	if d.bridge == nil {
		d.bridge = advisory.NewBridge(nil, advisory.WithLogger(d.log))
	}
	d.log = d.log.WithField("session", d.session.ID)

	return d
}

// Session returns the session the dashboard works on
func (d *Dashboard) Session() *session.Session {
	return d.session
}

// Fetch loads the series of q into the store. A failed or empty fetch leaves
// the store as it was and returns core.ErrDataUnavailable.
func (d *Dashboard) Fetch(ctx context.Context, q session.Query) (*core.Dataframe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.fetch(ctx, q)
}

func (d *Dashboard) fetch(ctx context.Context, q session.Query) (*core.Dataframe, error) {
	q.Ticker = strings.ToUpper(strings.TrimSpace(q.Ticker))
	if q.End.IsZero() {
		q.End = d.now()
	}
	if q.Ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidQuery)
	}
	if !q.Start.Before(q.End) {
		return nil, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidQuery, q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly))
	}

	log := d.log.WithField("ticker", q.Ticker)

	bars, err := d.feeder.CandlesByPeriod(ctx, q.Ticker, q.Start, q.End)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", core.ErrDataUnavailable, q.Ticker, err)
	} else if len(bars) == 0 {
		err = fmt.Errorf("%w: %s", core.ErrDataUnavailable, q.Ticker)
	}
	if err != nil {
		if d.session.Warn() {
			log.WithError(err).Warn("no data for query")
		}
		return nil, err
	}

	df, err := core.NewDataframe(q.Ticker, bars)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrDataUnavailable, q.Ticker, err)
	}

	d.session.Store.Replace(df)
	d.session.SetQuery(q)
	d.last = nil

	log.WithField("bars", df.Len()).Info("series loaded")
	return df, nil
}

// Render runs the indicator and forecast stages over the stored series and
// composes the chart.
func (d *Dashboard) Render(v View) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.render(v)
}

func (d *Dashboard) render(v View) (*Frame, error) {
	df := d.session.Store.Snapshot()
	if df.Len() == 0 {
		return nil, fmt.Errorf("%w: nothing fetched yet", core.ErrDataUnavailable)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	frame := &Frame{Ticker: df.Ticker}
	frame.Indicators = indicator.ComputeAll(df, v.specs())

	frame.Forecast, frame.ForecastErr = d.forecaster.FitAndPredict(forecast.Request{Dataframe: df, Horizon: v.Horizon})
	if frame.ForecastErr != nil {
		d.log.WithError(frame.ForecastErr).WithField("ticker", df.Ticker).Warn("forecast skipped")
		frame.Forecast = nil
	}

	spec, err := plot.Compose(df, frame.Indicators, frame.Forecast,
		plot.WithFullForecast(v.FullForecast), plot.WithClock(d.now))
	if err != nil {
		return nil, err
	}
	frame.Spec = spec

	if frame.PNG, err = plot.Render(spec, d.width, d.height); err != nil {
		return nil, err
	}

	d.last = frame
	return frame, nil
}

// Run fetches q and renders v in one pass. An invalid view is rejected
// before the fetch, and a failed fetch halts the pass before any indicator
// or forecast work.
func (d *Dashboard) Run(ctx context.Context, q session.Query, v View) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := v.Validate(); err != nil {
		return nil, err
	}

	if _, err := d.fetch(ctx, q); err != nil {
		return nil, err
	}

	return d.render(v)
}

// LastFrame returns the latest rendered frame, nil before the first render
// and after a new fetch.
func (d *Dashboard) LastFrame() *Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Advise sends the latest chart image to the advisory bridge. Failures come
// back as *advisory.Error and leave the store and the frame untouched.
func (d *Dashboard) Advise(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ticker string
	var image []byte
	if d.last != nil {
		ticker, image = d.last.Ticker, d.last.PNG
	}

	return d.bridge.RequestAdvisory(ctx, ticker, image)
}

// ExportForecast writes the horizon rows of the latest forecast as CSV
func (d *Dashboard) ExportForecast(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last == nil || d.last.Forecast == nil {
		return ErrNoForecast
	}

	return forecast.WriteCSV(w, d.last.Forecast)
}

// Close ends the session and drops everything derived from it
func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = nil
	d.session.Close()
}

// UserMessage turns a pipeline error into a short message fit for display
func UserMessage(err error) string {
	var advisoryErr *advisory.Error

	switch {
	case err == nil:
		return ""
	case errors.As(err, &advisoryErr):
		return advisoryErr.Message
	case errors.Is(err, core.ErrDataUnavailable):
		return "No data found for this ticker and date range."
	case errors.Is(err, core.ErrInsufficientData):
		return "Not enough history to fit a forecast."
	case errors.Is(err, forecast.ErrInvalidHorizon):
		return fmt.Sprintf("The forecast horizon must be between %d and %d days.", forecast.MinHorizon, forecast.MaxHorizon)
	case errors.Is(err, indicator.ErrUnknownIndicator), errors.Is(err, indicator.ErrInvalidSpec):
		return "The indicator selection is not supported."
	case errors.Is(err, ErrInvalidQuery):
		return "Enter a ticker and a start date before the end date."
	case errors.Is(err, ErrNoForecast):
		return "There is no forecast to download yet."
	default:
		return "Something went wrong while building the chart."
	}
}
