package forecastx

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
	"github.com/raykavin/forecastx/pkg/logger"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

// Server exposes a Dashboard over HTTP
type Server struct {
	dashboard *Dashboard
	view      View
	lookback  time.Duration

	addr         string
	debug        bool
	readTimeout  time.Duration
	writeTimeout time.Duration

	indexHTML     *template.Template
	scriptContent string
	log           logger.Logger
	httpServer    *http.Server
}

type ServerOption func(*Server)

// WithAddr sets the listen address, ":8080" by default
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithDefaultView sets the horizon and indicators used when a request
// does not choose them
func WithDefaultView(v View) ServerOption {
	return func(s *Server) {
		s.view = v
	}
}

// WithLookback sets how far back a fetch without start date goes
func WithLookback(lookback time.Duration) ServerOption {
	return func(s *Server) {
		s.lookback = lookback
	}
}

// WithTimeouts sets the read and write timeouts of the HTTP server
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout, s.writeTimeout = read, write
	}
}

// WithDebug serves the dashboard script without minification
func WithDebug() ServerOption {
	return func(s *Server) {
		s.debug = true
	}
}

func WithServerLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

func NewServer(dashboard *Dashboard, options ...ServerOption) (*Server, error) {
	server := &Server{
		dashboard:    dashboard,
		view:         View{Horizon: 7, Indicators: indicator.DefaultSpecs},
		lookback:     365 * 24 * time.Hour,
		addr:         ":8080",
		readTimeout:  15 * time.Second,
		writeTimeout: 90 * time.Second,
		log:          dashboard.log,
	}

	for _, option := range options {
		option(server)
	}

	if err := forecast.ValidateHorizon(server.view.Horizon); err != nil {
		return nil, err
	}

	var err error
	server.indexHTML, err = template.ParseFS(staticFiles, "assets/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	dashboardJS, err := staticFiles.ReadFile("assets/js/main.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read main.js: %w", err)
	}

	transpiled := api.Transform(string(dashboardJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !server.debug,
		MinifyIdentifiers: !server.debug,
		MinifyWhitespace:  !server.debug,
	})
	if len(transpiled.Errors) > 0 {
		return nil, fmt.Errorf("dashboard script failed with: %v", transpiled.Errors)
	}
	server.scriptContent = string(transpiled.Code)

	return server, nil
}

// Handler returns the routes of the dashboard
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/assets/chart.js", s.handleScript)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/chart.png", s.handleChartPNG)
	mux.HandleFunc("/forecast.csv", s.handleForecastCSV)
	mux.HandleFunc("/advisory", s.handleAdvisory)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	s.log.Infof("Dashboard available at http://localhost%s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and closes the dashboard session
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.dashboard.Close()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
