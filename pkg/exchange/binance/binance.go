// Package binance reads daily klines of crypto pairs from the Binance spot API
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
)

const (
	dailyInterval = "1d"
	pageLimit     = 1000
)

var quoteAssets = []string{"USDT", "FDUSD", "BUSD", "USDC", "BTC", "ETH", "BNB"}

// SplitAssetQuote splits a pair such as BTCUSDT into BTC and USDT. Tickers
// without a known quote asset return an empty quote.
func SplitAssetQuote(pair string) (asset, quote string) {
	pair = strings.ToUpper(pair)
	for _, quote = range quoteAssets {
		if len(pair) > len(quote) && strings.HasSuffix(pair, quote) {
			return strings.TrimSuffix(pair, quote), quote
		}
	}
	return pair, ""
}

// IsPair reports whether ticker looks like a Binance spot pair
func IsPair(ticker string) bool {
	_, quote := SplitAssetQuote(ticker)
	return quote != "" && !strings.ContainsAny(ticker, ".-^=")
}

// Klines implements core.Feeder over the klines endpoint
type Klines struct {
	client *binance.Client
	log    logger.Logger
}

var _ core.Feeder = (*Klines)(nil)

// Option configures a Klines feeder
type Option func(*Klines)

// WithCredentials sets the API credentials, only needed for rate limits
func WithCredentials(key, secret string) Option {
	return func(k *Klines) {
		baseURL := k.client.BaseURL
		k.client = binance.NewClient(key, secret)
		k.client.BaseURL = baseURL
	}
}

// WithBaseURL points the client to another API host
func WithBaseURL(baseURL string) Option {
	return func(k *Klines) {
		k.client.BaseURL = baseURL
	}
}

func WithLogger(log logger.Logger) Option {
	return func(k *Klines) {
		k.log = log
	}
}

func New(options ...Option) *Klines {
	klines := &Klines{
		client: binance.NewClient("", ""),
		log:    zerolog.Nop(),
	}

	for _, option := range options {
		option(klines)
	}

	return klines
}

// CandlesByPeriod implements core.Feeder, following pagination until end
func (k *Klines) CandlesByPeriod(ctx context.Context, pair string, start, end time.Time) ([]core.Bar, error) {
	pair = strings.ToUpper(pair)
	endMs := end.UnixMilli()
	bars := make([]core.Bar, 0)

	for from := start.UnixMilli(); from <= endMs; {
		data, err := k.client.NewKlinesService().
			Symbol(pair).
			Interval(dailyInterval).
			StartTime(from).
			EndTime(endMs).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", pair, err)
		}

		for _, d := range data {
			bar, err := convertKline(d)
			if err != nil {
				return nil, fmt.Errorf("binance kline %s: %w", pair, err)
			}
			bars = append(bars, bar)
		}

		if len(data) < pageLimit {
			break
		}
		from = data[len(data)-1].OpenTime + 1
	}

	k.log.WithFields(map[string]any{"pair": pair, "bars": len(bars)}).Debug("binance klines loaded")
	return bars, nil
}

func convertKline(k *binance.Kline) (core.Bar, error) {
	bar := core.Bar{Time: time.UnixMilli(k.OpenTime).UTC()}

	var err error
	for _, field := range []struct {
		dst *float64
		src string
	}{
		{&bar.Open, k.Open},
		{&bar.High, k.High},
		{&bar.Low, k.Low},
		{&bar.Close, k.Close},
		{&bar.Volume, k.Volume},
	} {
		if *field.dst, err = strconv.ParseFloat(field.src, 64); err != nil {
			return core.Bar{}, err
		}
	}

	return bar, nil
}
