package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

const yahooBody = `{"chart":{"result":[{"meta":{"gmtoffset":-18000},
	"timestamp":[1704205800,1704292200,1704378600,1704465000],
	"indicators":{"quote":[{
		"open":[187.15,184.22,null,181.99],
		"high":[188.44,185.88,null,182.76],
		"low":[183.89,183.43,null,180.17],
		"close":[185.64,184.25,null,181.18],
		"volume":[82488700,58414500,null,62303300]}]}}],"error":null}}`

func TestYahoo_CandlesByPeriod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		_, _ = io.WriteString(w, yahooBody)
	}))
	defer server.Close()

	bars, err := NewYahoo(WithYahooURL(server.URL)).CandlesByPeriod(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
	require.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), bars[2].Time)
	require.Equal(t, 185.64, bars[0].Close)
	require.Equal(t, 82488700.0, bars[0].Volume)

	_, err = core.NewDataframe("AAPL", bars)
	require.NoError(t, err)
}

func TestYahoo_SymbolAlias(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		_, _ = io.WriteString(w, yahooBody)
	}))
	defer server.Close()

	_, err := NewYahoo(WithYahooURL(server.URL)).CandlesByPeriod(context.Background(), "spx", from, to)
	require.NoError(t, err)
}

func TestYahoo_UnknownTickerIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer server.Close()

	bars, err := NewYahoo(WithYahooURL(server.URL)).CandlesByPeriod(context.Background(), "ZZZZ", from, to)
	require.NoError(t, err)
	require.Empty(t, bars)
}

func TestYahoo_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "Too Many Requests")
	}))
	defer server.Close()

	_, err := NewYahoo(WithYahooURL(server.URL)).CandlesByPeriod(context.Background(), "AAPL", from, to)
	require.Error(t, err)
}

type staticFeeder struct {
	calls []string
}

func (f *staticFeeder) CandlesByPeriod(_ context.Context, ticker string, _, _ time.Time) ([]core.Bar, error) {
	f.calls = append(f.calls, ticker)
	return []core.Bar{{Time: from, Close: 1}}, nil
}

func TestRouter(t *testing.T) {
	crypto, stocks := &staticFeeder{}, &staticFeeder{}
	router := NewRouter(nil).
		Route("crypto", func(ticker string) bool { return strings.HasSuffix(ticker, "USDT") }, crypto).
		Default(stocks)

	for _, ticker := range []string{"BTCUSDT", "AAPL", " MSFT "} {
		_, err := router.CandlesByPeriod(context.Background(), ticker, from, to)
		require.NoError(t, err)
	}

	require.Equal(t, []string{"BTCUSDT"}, crypto.calls)
	require.Equal(t, []string{"AAPL", "MSFT"}, stocks.calls)

	_, err := NewRouter(nil).CandlesByPeriod(context.Background(), "AAPL", from, to)
	require.True(t, errors.Is(err, ErrNoRoute))
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestCSVFeed_WithoutHeader(t *testing.T) {
	file := writeFile(t, "1704067200,10,11,9,12,100\n1704153600,11,12,10,13,200\n1704240000,12,13,11,14,300\n")

	feed, err := NewCSVFeed(TickerFeed{Ticker: "acme", File: file})
	require.NoError(t, err)
	require.True(t, feed.Has("ACME"))
	require.Equal(t, []string{"ACME"}, feed.Tickers())

	bars, err := feed.CandlesByPeriod(context.Background(), "ACME", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, core.Bar{Time: from, Open: 10, Close: 11, Low: 9, High: 12, Volume: 100}, bars[0])

	bars, err = feed.CandlesByPeriod(context.Background(), "OTHER", from, to)
	require.NoError(t, err)
	require.Empty(t, bars)
}

func TestCSVFeed_WithHeaderAndResample(t *testing.T) {
	var b strings.Builder
	b.WriteString("time,open,close,low,high,volume\n")
	for h := 0; h < 48; h++ {
		ts := from.Add(time.Duration(h) * time.Hour)
		price := 100 + float64(h)
		bar := core.Bar{Time: ts, Open: price, Close: price + 0.5, Low: price - 1, High: price + 1, Volume: 10}
		b.WriteString(strings.Join(bar.ToSlice(2), ","))
		b.WriteString("\n")
	}

	feed, err := NewCSVFeed(TickerFeed{Ticker: "ACME", File: writeFile(t, b.String()), Timeframe: "1h"})
	require.NoError(t, err)

	bars, err := feed.CandlesByPeriod(context.Background(), "ACME", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	require.Equal(t, from, bars[0].Time)
	require.Equal(t, 100.0, bars[0].Open)
	require.Equal(t, 123.5, bars[0].Close)
	require.Equal(t, 99.0, bars[0].Low)
	require.Equal(t, 124.0, bars[0].High)
	require.Equal(t, 240.0, bars[0].Volume)
	require.Equal(t, from.AddDate(0, 0, 1), bars[1].Time)
}

func TestCSVFeed_Errors(t *testing.T) {
	_, err := NewCSVFeed(TickerFeed{Ticker: "ACME", File: filepath.Join(t.TempDir(), "missing.csv")})
	require.Error(t, err)

	_, err = NewCSVFeed(TickerFeed{Ticker: "ACME", File: writeFile(t, "date,price\n2024-01-01,1\n")})
	require.Error(t, err)

	_, err = NewCSVFeed(TickerFeed{Ticker: "ACME", File: writeFile(t, "1704067200,x,1,1,1,1\n")})
	require.Error(t, err)

	_, err = NewCSVFeed(TickerFeed{Ticker: "ACME", File: writeFile(t, "1704067200,1,NaN,1,1,1\n")})
	require.ErrorIs(t, err, core.ErrNonFiniteValue)

	_, err = NewCSVFeed(TickerFeed{Ticker: "ACME", File: writeFile(t, "1704067200,1,1,1,+Inf,1\n")})
	require.ErrorIs(t, err, core.ErrNonFiniteValue)
}
