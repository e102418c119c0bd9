package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raykavin/forecastx"
	"github.com/raykavin/forecastx/pkg/advisory"
	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func buildServeCmd() *cobra.Command {
	var (
		addr  string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				settings.Server.Addr = addr
			}
			return runServe(cmd.Context(), debug)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (defaults to the configured address)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Serve unminified scripts")

	return cmd
}

func runServe(ctx context.Context, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	feeder, err := newFeeder()
	if err != nil {
		return err
	}

	view, err := defaultView()
	if err != nil {
		return err
	}

	now := time.Now()
	start, err := settings.StartDate(now)
	if err != nil {
		return err
	}

	bridge, telegram, err := newBridge(chartCommand(feeder, view))
	if err != nil {
		return err
	}

	dashboard := forecastx.NewDashboard(feeder,
		forecastx.WithForecaster(newForecaster()),
		forecastx.WithAdvisory(bridge),
		forecastx.WithLogger(log),
	)

	options := []forecastx.ServerOption{
		forecastx.WithAddr(settings.Server.Addr),
		forecastx.WithDefaultView(view),
		forecastx.WithLookback(now.Sub(start)),
		forecastx.WithTimeouts(settings.Server.ReadTimeout, settings.Server.WriteTimeout),
		forecastx.WithServerLogger(log),
	}
	if debug {
		options = append(options, forecastx.WithDebug())
	}

	server, err := forecastx.NewServer(dashboard, options...)
	if err != nil {
		return err
	}

	if telegram != nil {
		telegram.Start()
		defer telegram.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// chartCommand answers the /chart bot command. Every call runs in its own
// session so it never touches the series shown on the web dashboard.
func chartCommand(feeder core.Feeder, view forecastx.View) advisory.ChartFunc {
	return func(ctx context.Context, ticker string) ([]byte, string, error) {
		now := time.Now()
		start, err := settings.StartDate(now)
		if err != nil {
			return nil, "", err
		}

		dashboard := forecastx.NewDashboard(feeder,
			forecastx.WithForecaster(newForecaster()),
			forecastx.WithLogger(log),
		)
		defer dashboard.Close()

		frame, err := dashboard.Run(ctx, session.Query{Ticker: ticker, Start: start, End: now}, view)
		if err != nil {
			return nil, "", errors.New(forecastx.UserMessage(err))
		}

		caption := frame.Ticker
		if frame.Forecast != nil {
			next := frame.Forecast.Next()
			caption = fmt.Sprintf("%s\nNext (%s): %.*f [%.*f, %.*f]", frame.Ticker,
				next.Date.Format(forecast.DateLayout),
				frame.Forecast.Precision, next.Predicted,
				frame.Forecast.Precision, next.Lower,
				frame.Forecast.Precision, next.Upper)
		}

		return frame.PNG, caption, nil
	}
}
