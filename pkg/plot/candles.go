package plot

import (
	"github.com/raykavin/forecastx/pkg/core"
)

// candlesOf copies the raw OHLCV columns of df into plot candles
func candlesOf(df *core.Dataframe) []Candle {
	candles := make([]Candle, df.Len())
	for i := range candles {
		candles[i] = Candle{
			Time:   df.Time[i],
			Open:   df.Open[i],
			Close:  df.Close[i],
			High:   df.High[i],
			Low:    df.Low[i],
			Volume: df.Volume[i],
		}
	}
	return candles
}

// priceRange returns the lowest low and highest high of candles
func priceRange(candles []Candle) (lowest, highest float64) {
	lowest, highest = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		lowest = min(lowest, c.Low)
		highest = max(highest, c.High)
	}
	return lowest, highest
}
