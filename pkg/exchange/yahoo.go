package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo reads daily bars from the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
	symbols map[string]string
}

var _ core.Feeder = (*Yahoo)(nil)

// YahooOption configures a Yahoo feeder
type YahooOption func(*Yahoo)

func WithYahooURL(baseURL string) YahooOption {
	return func(y *Yahoo) {
		y.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.client = client
	}
}

// WithSymbolAlias maps a user facing ticker to a Yahoo symbol, e.g. SPX to ^GSPC
func WithSymbolAlias(ticker, symbol string) YahooOption {
	return func(y *Yahoo) {
		y.symbols[strings.ToUpper(ticker)] = symbol
	}
}

func NewYahoo(options ...YahooOption) *Yahoo {
	yahoo := &Yahoo{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultYahooURL,
		symbols: map[string]string{
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"NASDAQ": "^IXIC",
			"DOW":    "^DJI",
		},
	}

	for _, option := range options {
		option(yahoo)
	}

	return yahoo
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) symbol(ticker string) string {
	if symbol, ok := y.symbols[strings.ToUpper(ticker)]; ok {
		return symbol
	}
	return ticker
}

// CandlesByPeriod implements core.Feeder. Unknown symbols yield no bars.
func (y *Yahoo) CandlesByPeriod(ctx context.Context, ticker string, start, end time.Time) ([]core.Bar, error) {
	query := url.Values{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
		"interval": {"1d"},
		"events":   {"history"},
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(y.symbol(ticker)), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode (status %d): %w", resp.StatusCode, err)
	}

	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo api error: %s", e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]core.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil {
			continue // holidays and halted sessions come back as nulls
		}

		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		bar := core.Bar{
			Time:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   valueOr(at(quote.Open, i), *closePrice),
			High:   valueOr(at(quote.High, i), *closePrice),
			Low:    valueOr(at(quote.Low, i), *closePrice),
			Close:  *closePrice,
			Volume: valueOr(at(quote.Volume, i), 0),
		}

		// the live session is sometimes repeated as an extra bar
		if n := len(bars); n > 0 && !bar.Time.After(bars[n-1].Time) {
			bars[n-1] = bar
			continue
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
