package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/raykavin/forecastx/pkg/download"
	"github.com/spf13/cobra"
)

var (
	ticker     string
	days       int
	lookback   string
	startDate  string
	endDate    string
	outputFile string
)

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download daily history to a CSV file",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&ticker, "ticker", "t", "", "Ticker symbol (e.g. AAPL or BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&lookback, "lookback", "l", "", "Window ending today (e.g. 26w)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2022-12-31)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./aapl.csv)")

	_ = downloadCmd.MarkFlagRequired("ticker")
	_ = downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runDownload(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var options []download.Option
	switch {
	case days > 0:
		options = append(options, download.WithDays(days))
	case lookback != "":
		options = append(options, download.WithLookback(lookback))
	case startDate != "" || endDate != "":
		if startDate == "" || endDate == "" {
			return errors.New("START and END must be informed together")
		}

		start, err := parseDate(startDate)
		if err != nil {
			return err
		}
		end, err := parseDate(endDate)
		if err != nil {
			return err
		}
		options = append(options, download.WithInterval(start, end))
	}

	feeder, err := newFeeder()
	if err != nil {
		return err
	}

	return download.NewDownloader(feeder, download.WithLogger(log)).
		Download(ctx, ticker, outputFile, options...)
}
