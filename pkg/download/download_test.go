package download

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/exchange"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC)

// dailyFeeder returns one bar per day in the requested range
type dailyFeeder struct {
	batches int
}

func (f *dailyFeeder) CandlesByPeriod(_ context.Context, _ string, start, end time.Time) ([]core.Bar, error) {
	f.batches++
	var bars []core.Bar
	for t := truncateDay(start); !t.After(end); t = t.AddDate(0, 0, 1) {
		if t.Before(start) {
			continue
		}
		price := 100 + float64(t.YearDay())
		bars = append(bars, core.Bar{Time: t, Open: price, Close: price + 1, Low: price - 1, High: price + 2, Volume: 1000})
	}
	return bars, nil
}

type failingFeeder struct{}

func (failingFeeder) CandlesByPeriod(context.Context, string, time.Time, time.Time) ([]core.Bar, error) {
	return nil, errors.New("connection refused")
}

func newTestDownloader(feeder core.Feeder) *Downloader {
	d := NewDownloader(feeder, WithProgressOutput(io.Discard), WithPrecision(2))
	d.now = func() time.Time { return now }
	return d
}

func TestDownloadTo(t *testing.T) {
	feeder := &dailyFeeder{}
	start := time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	err := newTestDownloader(feeder).DownloadTo(context.Background(), "ACME", &buf, WithInterval(start, now))
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, Header, records[0])

	// 2022-01-01 through 2024-06-30 inclusive
	require.Len(t, records[1:], 912)
	require.Equal(t, "1640995200", records[1][0])
	require.Equal(t, "101.00", records[1][1])
	require.Equal(t, 3, feeder.batches)
}

func TestDownload_RoundTripThroughCSVFeed(t *testing.T) {
	file := filepath.Join(t.TempDir(), "acme.csv")
	require.NoError(t, newTestDownloader(&dailyFeeder{}).Download(context.Background(), "ACME", file, WithDays(30)))

	feed, err := exchange.NewCSVFeed(exchange.TickerFeed{Ticker: "ACME", File: file})
	require.NoError(t, err)

	bars, err := feed.CandlesByPeriod(context.Background(), "ACME", now.AddDate(-1, 0, 0), now)
	require.NoError(t, err)
	require.Len(t, bars, 31)

	df, err := core.NewDataframe("ACME", bars)
	require.NoError(t, err)
	require.Equal(t, truncateDay(now), df.Time[df.Len()-1])
}

func TestDownload_Parameters(t *testing.T) {
	d := newTestDownloader(&dailyFeeder{})

	params, err := d.parameters(nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), params.Start)
	require.Equal(t, now, params.End)

	params, err = d.parameters([]Option{WithLookback("2w")})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), params.Start)

	params, err = d.parameters([]Option{WithInterval(now.AddDate(0, 0, -3), now.AddDate(1, 0, 0))})
	require.NoError(t, err)
	require.Equal(t, now, params.End)

	_, err = d.parameters([]Option{WithLookback("soon")})
	require.Error(t, err)

	_, err = d.parameters([]Option{WithInterval(now, now.AddDate(0, 0, -3))})
	require.Error(t, err)
}

func TestDownload_Failures(t *testing.T) {
	var buf bytes.Buffer

	err := newTestDownloader(failingFeeder{}).DownloadTo(context.Background(), "ACME", &buf, WithDays(10))
	require.ErrorContains(t, err, "connection refused")

	err = newTestDownloader(&dailyFeeder{}).DownloadTo(context.Background(), "ACME", &buf,
		WithInterval(now.AddDate(0, 0, -3), now.AddDate(0, 0, -3)))
	require.NoError(t, err)

	empty := NewDownloader(exchange.NewRouter(nil).Default(mustFeed(t)), WithProgressOutput(io.Discard))
	empty.now = func() time.Time { return now }
	err = empty.DownloadTo(context.Background(), "ZZZZ", &buf, WithDays(10))
	require.True(t, errors.Is(err, core.ErrDataUnavailable))
}

func mustFeed(t *testing.T) *exchange.CSVFeed {
	t.Helper()
	feed, err := exchange.NewCSVFeed()
	require.NoError(t, err)
	return feed
}
