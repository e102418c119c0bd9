package core

import (
	"fmt"
	"time"
)

// Dataframe is the column-wise OHLCV series of one ticker over one date range.
// Time is strictly increasing; a Dataframe is never appended to, a new fetch
// builds a new one.
type Dataframe struct {
	Ticker string

	Close  Series[float64]
	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Volume Series[float64]

	Time []time.Time
}

// NewDataframe builds a dataframe from bars already ordered by time
func NewDataframe(ticker string, bars []Bar) (*Dataframe, error) {
	df := &Dataframe{
		Ticker: ticker,
		Close:  make(Series[float64], 0, len(bars)),
		Open:   make(Series[float64], 0, len(bars)),
		High:   make(Series[float64], 0, len(bars)),
		Low:    make(Series[float64], 0, len(bars)),
		Volume: make(Series[float64], 0, len(bars)),
		Time:   make([]time.Time, 0, len(bars)),
	}

	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return nil, err
		}

		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrUnorderedSeries,
				bar.Time.Format(time.DateOnly), bars[i-1].Time.Format(time.DateOnly))
		}

		df.Open = append(df.Open, bar.Open)
		df.High = append(df.High, bar.High)
		df.Low = append(df.Low, bar.Low)
		df.Close = append(df.Close, bar.Close)
		df.Volume = append(df.Volume, bar.Volume)
		df.Time = append(df.Time, bar.Time)
	}

	return df, nil
}

// Len returns the number of bars
func (df *Dataframe) Len() int {
	if df == nil {
		return 0
	}
	return len(df.Time)
}

// Bar returns the i-th bar
func (df *Dataframe) Bar(i int) Bar {
	return Bar{
		Time:   df.Time[i],
		Open:   df.Open[i],
		High:   df.High[i],
		Low:    df.Low[i],
		Close:  df.Close[i],
		Volume: df.Volume[i],
	}
}

// Bars returns the dataframe as a slice of bars
func (df *Dataframe) Bars() []Bar {
	bars := make([]Bar, df.Len())
	for i := range bars {
		bars[i] = df.Bar(i)
	}
	return bars
}

// LastTime returns the timestamp of the last bar, or the zero time
func (df *Dataframe) LastTime() time.Time {
	if df.Len() == 0 {
		return time.Time{}
	}
	return df.Time[len(df.Time)-1]
}

// Sample returns the last 'positions' bars as a new dataframe
func (df *Dataframe) Sample(positions int) *Dataframe {
	start := df.Len() - positions
	if start <= 0 {
		return df.Clone()
	}

	times := make([]time.Time, positions)
	copy(times, df.Time[start:])

	return &Dataframe{
		Ticker: df.Ticker,
		Close:  df.Close.LastValues(positions).Clone(),
		Open:   df.Open.LastValues(positions).Clone(),
		High:   df.High.LastValues(positions).Clone(),
		Low:    df.Low.LastValues(positions).Clone(),
		Volume: df.Volume.LastValues(positions).Clone(),
		Time:   times,
	}
}

// Clone returns a deep copy of the dataframe
func (df *Dataframe) Clone() *Dataframe {
	if df == nil {
		return nil
	}

	times := make([]time.Time, len(df.Time))
	copy(times, df.Time)

	return &Dataframe{
		Ticker: df.Ticker,
		Close:  df.Close.Clone(),
		Open:   df.Open.Clone(),
		High:   df.High.Clone(),
		Low:    df.Low.Clone(),
		Volume: df.Volume.Clone(),
		Time:   times,
	}
}
