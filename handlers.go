package forecastx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/forecastx/pkg/advisory"
	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
	"github.com/raykavin/forecastx/pkg/plot"
	"github.com/raykavin/forecastx/pkg/session"
)

var presets = []indicator.Spec{indicator.SMA20, indicator.EMA20, indicator.Bollinger20, indicator.VWAP}

type forecastResponse struct {
	Next   forecast.Point   `json:"next"`
	Future []forecast.Point `json:"future"`
}

type dataResponse struct {
	Chart         *plot.ChartSpec   `json:"chart"`
	Forecast      *forecastResponse `json:"forecast"`
	ForecastError string            `json:"forecast_error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.dashboard.Session().Closed() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	if _, err := w.Write([]byte(s.scriptContent)); err != nil {
		s.log.WithError(err).Error("failed to write dashboard script")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		ticker = s.dashboard.Session().Query().Ticker
	}

	selected := make(map[string]bool, len(s.view.Indicators))
	for _, spec := range s.view.Indicators {
		selected[spec.Name()] = true
	}

	type option struct {
		Name     string
		Selected bool
	}
	options := make([]option, 0, len(presets))
	for _, spec := range presets {
		options = append(options, option{Name: spec.Name(), Selected: selected[spec.Name()]})
	}

	w.Header().Set("Content-Type", "text/html")
	err := s.indexHTML.Execute(w, map[string]any{
		"ticker":     ticker,
		"start":      time.Now().Add(-s.lookback).Format(time.DateOnly),
		"horizon":    s.view.Horizon,
		"minHorizon": forecast.MinHorizon,
		"maxHorizon": forecast.MaxHorizon,
		"indicators": options,
	})
	if err != nil {
		s.log.WithError(err).Error("template execution failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleData runs the pipeline. With a ticker it fetches first, without one
// it renders the stored series again with the requested view.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	view, err := s.parseView(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var frame *Frame
	if r.URL.Query().Get("ticker") != "" {
		var q session.Query
		if q, err = s.parseQuery(r); err != nil {
			s.writeError(w, err)
			return
		}
		frame, err = s.dashboard.Run(r.Context(), q, view)
	} else {
		frame, err = s.dashboard.Render(view)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	response := dataResponse{Chart: frame.Spec}
	if frame.Forecast != nil {
		response.Forecast = &forecastResponse{Next: frame.Forecast.Next(), Future: frame.Forecast.Future()}
	}
	if frame.ForecastErr != nil {
		response.ForecastError = UserMessage(frame.ForecastErr)
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, _ *http.Request) {
	frame := s.dashboard.LastFrame()
	if frame == nil {
		s.writeError(w, fmt.Errorf("%w: no chart rendered", core.ErrDataUnavailable))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(frame.PNG); err != nil {
		s.log.WithError(err).Error("failed to write chart image")
	}
}

func (s *Server) handleForecastCSV(w http.ResponseWriter, _ *http.Request) {
	buffer := bytes.NewBuffer(nil)
	if err := s.dashboard.ExportForecast(buffer); err != nil {
		s.writeError(w, err)
		return
	}

	ticker := s.dashboard.Session().Query().Ticker
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=forecast_"+ticker+".csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buffer.Bytes()); err != nil {
		s.log.WithError(err).Error("failed writing CSV response")
	}
}

func (s *Server) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "use POST"})
		return
	}

	advice, err := s.dashboard.Advise(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"advice": advice})
}

func (s *Server) parseView(r *http.Request) (View, error) {
	params := r.URL.Query()
	view := s.view

	if raw := params.Get("horizon"); raw != "" {
		horizon, err := strconv.Atoi(raw)
		if err != nil {
			return view, fmt.Errorf("%w: %q", forecast.ErrInvalidHorizon, raw)
		}
		view.Horizon = horizon
	}

	if params.Has("indicators") {
		specs, err := indicator.ParseSpecs(strings.Split(params.Get("indicators"), ","))
		if err != nil {
			return view, err
		}
		view.Indicators = specs
	}

	view.FullForecast, _ = strconv.ParseBool(params.Get("full"))
	return view, nil
}

func (s *Server) parseQuery(r *http.Request) (session.Query, error) {
	params := r.URL.Query()
	q := session.Query{Ticker: params.Get("ticker")}

	var err error
	if raw := params.Get("start"); raw != "" {
		if q.Start, err = time.Parse(time.DateOnly, raw); err != nil {
			return q, fmt.Errorf("%w: start %q", ErrInvalidQuery, raw)
		}
	} else {
		q.Start = s.dashboard.now().Add(-s.lookback)
	}

	if raw := params.Get("end"); raw != "" {
		if q.End, err = time.Parse(time.DateOnly, raw); err != nil {
			return q, fmt.Errorf("%w: end %q", ErrInvalidQuery, raw)
		}
	}

	return q, nil
}

func statusOf(err error) int {
	var advisoryErr *advisory.Error

	switch {
	case errors.As(err, &advisoryErr):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrDataUnavailable), errors.Is(err, ErrNoForecast):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery),
		errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, indicator.ErrUnknownIndicator),
		errors.Is(err, indicator.ErrInvalidSpec):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	} else {
		s.log.WithError(err).Debug("request rejected")
	}

	s.writeJSON(w, status, errorResponse{Error: UserMessage(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}
