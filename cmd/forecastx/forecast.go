package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/forecastx"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
	"github.com/raykavin/forecastx/pkg/metric"
	"github.com/raykavin/forecastx/pkg/session"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type forecastFlags struct {
	ticker     string
	start      string
	end        string
	horizon    int
	indicators []string
	full       bool
	csvPath    string
	pngPath    string
	advise     bool
}

func buildForecastCmd() *cobra.Command {
	flags := new(forecastFlags)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fetch a ticker, forecast its close and print the table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runForecast(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.ticker, "ticker", "t", "", "Ticker symbol (defaults to the configured ticker)")
	cmd.Flags().StringVarP(&flags.start, "start", "s", "", "Start date YYYY-MM-DD (defaults to the configured lookback)")
	cmd.Flags().StringVarP(&flags.end, "end", "e", "", "End date YYYY-MM-DD (defaults to today)")
	cmd.Flags().IntVarP(&flags.horizon, "horizon", "H", 0, "Days to forecast, 1 to 30")
	cmd.Flags().StringSliceVarP(&flags.indicators, "indicators", "i", nil, "Indicators to draw: SMA20, EMA20, BOLLINGER20, VWAP")
	cmd.Flags().BoolVar(&flags.full, "full", false, "Draw the in-sample forecast as well")
	cmd.Flags().StringVar(&flags.csvPath, "csv", "", "Write the forecast table to this CSV file")
	cmd.Flags().StringVar(&flags.pngPath, "png", "", "Write the chart to this PNG file")
	cmd.Flags().BoolVar(&flags.advise, "advise", false, "Ask the AI advisor about the chart")

	return cmd
}

func runForecast(cmd *cobra.Command, flags *forecastFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	query, err := flags.query(time.Now())
	if err != nil {
		return err
	}

	view, err := flags.view()
	if err != nil {
		return err
	}

	feeder, err := newFeeder()
	if err != nil {
		return err
	}

	bridge, _, err := newBridge(nil)
	if err != nil {
		return err
	}

	dashboard := forecastx.NewDashboard(feeder,
		forecastx.WithForecaster(newForecaster()),
		forecastx.WithAdvisory(bridge),
		forecastx.WithLogger(log),
	)
	defer dashboard.Close()

	bar := progressbar.NewOptions(3,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(query.Ticker),
		progressbar.OptionClearOnFinish(),
	)

	if _, err := dashboard.Fetch(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", forecastx.UserMessage(err), err)
	}
	_ = bar.Add(1)

	frame, err := dashboard.Render(view)
	if err != nil {
		return fmt.Errorf("%s: %w", forecastx.UserMessage(err), err)
	}
	_ = bar.Add(1)

	if err := writeOutputs(dashboard, frame, flags); err != nil {
		return err
	}
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	if frame.ForecastErr != nil {
		fmt.Fprintf(out, "%s\n", forecastx.UserMessage(frame.ForecastErr))
	} else {
		printForecast(out, frame.Forecast)
	}

	if flags.advise {
		advice, err := dashboard.Advise(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", forecastx.UserMessage(err), err)
		}
		fmt.Fprintf(out, "\n-- ADVISORY --\n%s\n", advice)
	}

	return nil
}

func (f *forecastFlags) query(now time.Time) (session.Query, error) {
	q := session.Query{Ticker: f.ticker, End: now}
	if q.Ticker == "" {
		q.Ticker = settings.Ticker
	}

	var err error
	if f.start != "" {
		if q.Start, err = parseDate(f.start); err != nil {
			return q, err
		}
	} else if q.Start, err = settings.StartDate(now); err != nil {
		return q, err
	}

	if f.end != "" {
		if q.End, err = parseDate(f.end); err != nil {
			return q, err
		}
	}

	return q, nil
}

func (f *forecastFlags) view() (forecastx.View, error) {
	view, err := defaultView()
	if err != nil {
		return view, err
	}

	if f.horizon != 0 {
		view.Horizon = f.horizon
	}
	if len(f.indicators) > 0 {
		if view.Indicators, err = indicator.ParseSpecs(f.indicators); err != nil {
			return view, err
		}
	}
	view.FullForecast = view.FullForecast || f.full

	return view, forecast.ValidateHorizon(view.Horizon)
}

func writeOutputs(dashboard *forecastx.Dashboard, frame *forecastx.Frame, flags *forecastFlags) error {
	if flags.pngPath != "" {
		if err := os.WriteFile(flags.pngPath, frame.PNG, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	if flags.csvPath != "" && frame.Forecast != nil {
		file, err := os.Create(flags.csvPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", flags.csvPath, err)
		}
		defer file.Close()

		if err := dashboard.ExportForecast(file); err != nil {
			return err
		}
	}

	return nil
}

// printForecast prints the horizon table with the in-sample accuracy in the
// footer, then the distribution of the residuals.
func printForecast(out io.Writer, result *forecast.Result) {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader(forecast.Header)
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk(forecast.Rows(result))

	accuracy := metric.Evaluate(result)
	table.SetFooter([]string{
		fmt.Sprintf("%d OBS", accuracy.Observations),
		fmt.Sprintf("MAE %.*f", result.Precision, accuracy.MAE),
		fmt.Sprintf("MAPE %.2f %%", accuracy.MAPE*100),
		fmt.Sprintf("COVERAGE %.1f %%", accuracy.Coverage*100),
	})
	table.Render()

	next := result.Next()
	fmt.Fprintln(out, strings.Repeat("-", 20)+" FORECAST "+result.Ticker+" "+strings.Repeat("-", 20))
	fmt.Fprint(out, buffer.String())
	fmt.Fprintf(out, "Next (%s): %.*f\n", next.Date.Format(forecast.DateLayout), result.Precision, next.Predicted)

	if band := accuracy.MAPEBand; band.Upper > 0 {
		fmt.Fprintf(out, "MAPE 95%% interval: %.2f %% to %.2f %%\n", band.Lower*100, band.Upper*100)
	}

	residuals := result.Residuals()
	if len(residuals) > 1 {
		fmt.Fprintln(out, "\n-- RESIDUALS --")
		hist := histogram.Hist(15, residuals)
		_ = histogram.Fprint(out, hist, histogram.Linear(10))
	}
}
