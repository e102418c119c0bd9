// Package download saves the daily history of a ticker to a CSV file that
// exchange.CSVFeed can load back.
package download

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"
)

const (
	batchSize        = 365
	defaultPrecision = 4
	day              = 24 * time.Hour
)

// Header matches the column order read by exchange.CSVFeed
var Header = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader pages through a feeder and writes every bar to CSV
type Downloader struct {
	feeder    core.Feeder
	log       logger.Logger
	progress  io.Writer
	precision int
	now       func() time.Time
}

// DownloaderOption configures a Downloader
type DownloaderOption func(*Downloader)

func WithLogger(log logger.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.log = log
	}
}

// WithProgressOutput sets where the progress bar is drawn, stderr by default
func WithProgressOutput(w io.Writer) DownloaderOption {
	return func(d *Downloader) {
		d.progress = w
	}
}

// WithPrecision sets the number of decimals written for prices
func WithPrecision(precision int) DownloaderOption {
	return func(d *Downloader) {
		d.precision = precision
	}
}

func NewDownloader(feeder core.Feeder, options ...DownloaderOption) *Downloader {
	d := &Downloader{
		feeder:    feeder,
		log:       zerolog.Nop(),
		progress:  os.Stderr,
		precision: defaultPrecision,
		now:       time.Now,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// Parameters is the date range to download
type Parameters struct {
	Start    time.Time
	End      time.Time
	Lookback string
}

// Option configures the download range
type Option func(*Parameters)

// WithInterval sets explicit start and end dates
func WithInterval(start, end time.Time) Option {
	return func(p *Parameters) {
		p.Start = start
		p.End = end
		p.Lookback = ""
	}
}

// WithDays downloads the last days
func WithDays(days int) Option {
	return WithLookback(fmt.Sprintf("%dd", days))
}

// WithLookback downloads a window ending now, such as "26w" or "365d"
func WithLookback(lookback string) Option {
	return func(p *Parameters) {
		p.Lookback = lookback
	}
}

func (d *Downloader) parameters(options []Option) (Parameters, error) {
	now := d.now().UTC()
	params := Parameters{Start: now.AddDate(0, -1, 0), End: now}

	for _, option := range options {
		option(&params)
	}

	if params.Lookback != "" {
		lookback, err := str2duration.ParseDuration(params.Lookback)
		if err != nil {
			return params, fmt.Errorf("invalid lookback %q: %w", params.Lookback, err)
		}
		params.End = now
		params.Start = now.Add(-lookback)
	}

	params.Start = truncateDay(params.Start)
	if params.End.After(now) {
		params.End = now
	}
	if params.End.Before(params.Start) {
		return params, fmt.Errorf("end %s is before start %s",
			params.End.Format(time.DateOnly), params.Start.Format(time.DateOnly))
	}

	return params, nil
}

// Download writes the history of ticker to outputPath
func (d *Downloader) Download(ctx context.Context, ticker, outputPath string, options ...Option) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return d.DownloadTo(ctx, ticker, file, options...)
}

// DownloadTo writes the history of ticker to w. A range without bars is
// reported as core.ErrDataUnavailable.
func (d *Downloader) DownloadTo(ctx context.Context, ticker string, w io.Writer, options ...Option) error {
	params, err := d.parameters(options)
	if err != nil {
		return err
	}

	expected := int64(params.End.Sub(params.Start)/day) + 1
	log := d.log.WithFields(map[string]any{"ticker": ticker, "days": expected})
	log.Info("downloading daily bars")

	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}

	bar := progressbar.NewOptions64(expected,
		progressbar.OptionSetWriter(d.progress),
		progressbar.OptionSetDescription(ticker),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	written, err := d.downloadBatches(ctx, ticker, params, writer, bar)
	if err != nil {
		return err
	}

	if err := bar.Finish(); err != nil {
		log.WithError(err).Warn("failed to close progress bar")
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	if written == 0 {
		return fmt.Errorf("%w: %s", core.ErrDataUnavailable, ticker)
	}

	log.WithField("bars", written).Info("download done")
	return nil
}

func (d *Downloader) downloadBatches(
	ctx context.Context,
	ticker string,
	params Parameters,
	writer *csv.Writer,
	progress *progressbar.ProgressBar,
) (int, error) {
	written := 0
	var last time.Time

	for batchStart := params.Start; !batchStart.After(params.End); batchStart = batchStart.Add(batchSize * day) {
		batchEnd := calculateBatchEnd(batchStart, params.End)

		bars, err := d.feeder.CandlesByPeriod(ctx, ticker, batchStart, batchEnd)
		if err != nil {
			return written, err
		}

		for _, b := range bars {
			if !b.Time.After(last) {
				continue
			}
			if err := writer.Write(b.ToSlice(d.precision)); err != nil {
				return written, err
			}
			last = b.Time
			written++
		}

		if err := progress.Add64(int64(batchEnd.Sub(batchStart)/day) + 1); err != nil {
			d.log.WithError(err).Debug("failed to update progress bar")
		}
	}

	return written, nil
}

// calculateBatchEnd keeps consecutive batches from overlapping
func calculateBatchEnd(batchStart, end time.Time) time.Time {
	potentialEnd := batchStart.Add(batchSize * day)
	if potentialEnd.Before(end) {
		return potentialEnd.Add(-time.Second)
	}
	return end
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
