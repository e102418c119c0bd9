package forecastx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	d, _ := newDashboard(&mapFeeder{bars: map[string][]core.Bar{"AAPL": dailyBars(60)}})
	server, err := NewServer(d, WithLookback(200*24*time.Hour))
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func errorOf(t *testing.T, body string) string {
	t.Helper()

	var response errorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &response))
	return response.Error
}

func TestServer_DataFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/data?ticker=AAPL&horizon=7&indicators=SMA20,VWAP")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var data struct {
		Chart struct {
			Ticker     string            `json:"ticker"`
			Candles    []json.RawMessage `json:"candles"`
			Indicators []struct {
				Name string `json:"name"`
			} `json:"indicators"`
		} `json:"chart"`
		Forecast struct {
			Next struct {
				Date time.Time `json:"date"`
			} `json:"next"`
			Future []json.RawMessage `json:"future"`
		} `json:"forecast"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &data))
	require.Equal(t, "AAPL", data.Chart.Ticker)
	require.Len(t, data.Chart.Candles, 60)
	require.Len(t, data.Chart.Indicators, 2)
	require.Equal(t, "VWAP", data.Chart.Indicators[1].Name)
	require.Len(t, data.Forecast.Future, 7)
	require.True(t, firstDay.AddDate(0, 0, 60).Equal(data.Forecast.Next.Date))

	resp, body = get(t, ts.URL+"/chart.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.True(t, strings.HasPrefix(body, "\x89PNG"))

	resp, body = get(t, ts.URL+"/forecast.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "attachment;filename=forecast_AAPL.csv", resp.Header.Get("Content-Disposition"))
	require.True(t, strings.HasPrefix(body, "Date,Predicted Price,Lower Bound,Upper Bound\n"))
	require.Len(t, strings.Split(strings.TrimSpace(body), "\n"), 8)

	// re-render the stored series with another view
	resp, body = get(t, ts.URL+"/data?horizon=3&indicators=BOLLINGER20")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &data))
	require.Len(t, data.Forecast.Future, 3)
}

func TestServer_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		status  int
		message string
	}{
		{"render before fetch", "/data", http.StatusNotFound, "No data found for this ticker and date range."},
		{"unknown ticker", "/data?ticker=ZZZZ", http.StatusNotFound, "No data found for this ticker and date range."},
		{"horizon too long", "/data?ticker=AAPL&horizon=31", http.StatusBadRequest, "The forecast horizon must be between 1 and 30 days."},
		{"horizon not a number", "/data?ticker=AAPL&horizon=week", http.StatusBadRequest, "The forecast horizon must be between 1 and 30 days."},
		{"unknown indicator", "/data?ticker=AAPL&indicators=RSI14", http.StatusBadRequest, "The indicator selection is not supported."},
		{"bad start", "/data?ticker=AAPL&start=yesterday", http.StatusBadRequest, "Enter a ticker and a start date before the end date."},
		{"no chart", "/chart.png", http.StatusNotFound, "No data found for this ticker and date range."},
		{"no forecast", "/forecast.csv", http.StatusNotFound, "There is no forecast to download yet."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+tc.path)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.message, errorOf(t, body))
		})
	}
}

func TestServer_Advisory(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/advisory")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err := http.Post(ts.URL+"/advisory", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "AI analysis is not configured.", errorOf(t, string(body)))
}

func TestServer_Assets(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `src="/assets/chart.js"`)
	require.Contains(t, body, `value="BOLLINGER20"`)

	resp, body = get(t, ts.URL+"/assets/chart.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	require.Contains(t, body, "/advisory")
	require.NotContains(t, body, "function renderForecast(forecast)")

	resp, _ = get(t, ts.URL+"/missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
