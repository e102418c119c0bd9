package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"
)

const dailyTimeframe = "1d"

var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// TickerFeed points a ticker to a CSV file of bars in the given timeframe
type TickerFeed struct {
	Ticker    string
	File      string
	Timeframe string
}

// CSVFeed serves bars loaded from CSV files, resampled to daily bars
type CSVFeed struct {
	bars map[string][]core.Bar
}

var _ core.Feeder = (*CSVFeed)(nil)

// NewCSVFeed loads every feed. Files hold unix seconds and OHLCV columns,
// with or without a header row.
func NewCSVFeed(feeds ...TickerFeed) (*CSVFeed, error) {
	feed := &CSVFeed{bars: make(map[string][]core.Bar, len(feeds))}

	for _, f := range feeds {
		bars, err := readBarsFromCSV(f.File)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.File, err)
		}

		timeframe := lo.Ternary(f.Timeframe == "", dailyTimeframe, f.Timeframe)
		if bars, err = resample(bars, timeframe, dailyTimeframe); err != nil {
			return nil, fmt.Errorf("resample %s: %w", f.File, err)
		}

		feed.bars[strings.ToUpper(f.Ticker)] = bars
	}

	return feed, nil
}

// Has reports whether a file was loaded for ticker
func (c *CSVFeed) Has(ticker string) bool {
	_, ok := c.bars[strings.ToUpper(ticker)]
	return ok
}

// Tickers lists the loaded tickers
func (c *CSVFeed) Tickers() []string {
	return lo.Keys(c.bars)
}

// parseHeaders maps column names to indexes. A first row starting with a
// number is data, not a header.
func parseHeaders(headers []string) (map[string]int, bool) {
	if _, err := strconv.ParseInt(headers[0], 10, 64); err == nil {
		return defaultHeaderMap, false
	}

	headerMap := make(map[string]int, len(headers))
	for index, header := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = index
	}

	for column := range defaultHeaderMap {
		if _, ok := headerMap[column]; !ok {
			return nil, true
		}
	}

	return headerMap, true
}

func readBarsFromCSV(file string) ([]core.Bar, error) {
	csvFile, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	lines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	headerMap, hasHeader := parseHeaders(lines[0])
	if headerMap == nil {
		return nil, fmt.Errorf("header must contain %v", lo.Keys(defaultHeaderMap))
	}
	if hasHeader {
		lines = lines[1:]
	}

	bars := make([]core.Bar, 0, len(lines))
	for i, line := range lines {
		bar, err := parseBarFromLine(line, headerMap)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func parseBarFromLine(line []string, headerMap map[string]int) (core.Bar, error) {
	timestamp, err := strconv.ParseInt(line[headerMap["time"]], 10, 64)
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{Time: time.Unix(timestamp, 0).UTC()}

	for column, dst := range map[string]*float64{
		"open": &bar.Open, "close": &bar.Close, "low": &bar.Low, "high": &bar.High, "volume": &bar.Volume,
	} {
		if *dst, err = strconv.ParseFloat(line[headerMap[column]], 64); err != nil {
			return core.Bar{}, fmt.Errorf("%s: %w", column, err)
		}
	}

	return bar, bar.Validate()
}

// isLastBarOfPeriod reports whether the bar starting at t closes a target period
func isLastBarOfPeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	if fromTimeframe == targetTimeframe {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	next := t.Add(fromDuration).UTC()
	return isTimeOnPeriodBoundary(next, targetTimeframe)
}

func isTimeOnPeriodBoundary(t time.Time, targetTimeframe string) (bool, error) {
	switch targetTimeframe {
	case "1d":
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1w":
		return t.Weekday() == time.Sunday && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	default:
		return false, fmt.Errorf("invalid timeframe: %s", targetTimeframe)
	}
}

// resample merges intraday bars into bars of the target timeframe. A
// trailing incomplete period is dropped.
func resample(bars []core.Bar, sourceTimeframe, targetTimeframe string) ([]core.Bar, error) {
	if sourceTimeframe == targetTimeframe || len(bars) == 0 {
		return bars, nil
	}

	sourceDuration, err := str2duration.ParseDuration(sourceTimeframe)
	if err != nil {
		return nil, err
	}
	targetDuration, err := str2duration.ParseDuration(targetTimeframe)
	if err != nil {
		return nil, err
	}
	if sourceDuration > targetDuration {
		return nil, fmt.Errorf("cannot resample %s into %s", sourceTimeframe, targetTimeframe)
	}

	resampled := make([]core.Bar, 0, len(bars)/4+1)

	var current core.Bar
	inPeriod := false

	for _, bar := range bars {
		isLast, err := isLastBarOfPeriod(bar.Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}

		if !inPeriod {
			current = bar
			current.Time = bar.Time.Truncate(targetDuration)
			inPeriod = true
		} else {
			current.High = math.Max(current.High, bar.High)
			current.Low = math.Min(current.Low, bar.Low)
			current.Close = bar.Close
			current.Volume += bar.Volume
		}

		if isLast {
			resampled = append(resampled, current)
			inPeriod = false
		}
	}

	return resampled, nil
}

// CandlesByPeriod implements core.Feeder
func (c *CSVFeed) CandlesByPeriod(_ context.Context, ticker string, start, end time.Time) ([]core.Bar, error) {
	bars := c.bars[strings.ToUpper(ticker)]
	return lo.Filter(bars, func(bar core.Bar, _ int) bool {
		return !bar.Time.Before(start) && !bar.Time.After(end)
	}), nil
}
