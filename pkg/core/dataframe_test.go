package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestNewDataframe(t *testing.T) {
	bars := []Bar{
		{Time: day(0), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Time: day(1), Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 200},
	}

	df, err := NewDataframe("AAPL", bars)
	require.NoError(t, err)
	require.Equal(t, 2, df.Len())
	require.Equal(t, "AAPL", df.Ticker)
	require.Equal(t, Series[float64]{10.5, 11.5}, df.Close)
	require.Equal(t, day(1), df.LastTime())
	require.Equal(t, bars, df.Bars())
}

func TestNewDataframe_Rejects(t *testing.T) {
	t.Run("duplicate timestamp", func(t *testing.T) {
		_, err := NewDataframe("X", []Bar{{Time: day(0), Close: 1}, {Time: day(0), Close: 2}})
		require.ErrorIs(t, err, ErrUnorderedSeries)
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := NewDataframe("X", []Bar{{Time: day(2), Close: 1}, {Time: day(1), Close: 2}})
		require.ErrorIs(t, err, ErrUnorderedSeries)
	})

	t.Run("negative volume", func(t *testing.T) {
		_, err := NewDataframe("X", []Bar{{Time: day(0), Close: 1, Volume: -1}})
		require.ErrorIs(t, err, ErrNegativeValue)
	})

	for name, value := range map[string]float64{"nan": math.NaN(), "+inf": math.Inf(1), "-inf": math.Inf(-1)} {
		t.Run(name+" close", func(t *testing.T) {
			_, err := NewDataframe("X", []Bar{
				{Time: day(0), Close: 1},
				{Time: day(1), Close: value},
				{Time: day(2), Close: 1},
			})
			require.ErrorIs(t, err, ErrNonFiniteValue)
		})
	}

	t.Run("nan volume", func(t *testing.T) {
		_, err := NewDataframe("X", []Bar{{Time: day(0), Close: 1, Volume: math.NaN()}})
		require.ErrorIs(t, err, ErrNonFiniteValue)
	})
}

func TestDataframe_CloneIsIndependent(t *testing.T) {
	df, err := NewDataframe("X", []Bar{{Time: day(0), Close: 1}, {Time: day(1), Close: 2}})
	require.NoError(t, err)

	clone := df.Clone()
	clone.Close[0] = 99
	clone.Time[0] = day(5)

	require.Equal(t, 1.0, df.Close[0])
	require.Equal(t, day(0), df.Time[0])
}

func TestDataframe_Sample(t *testing.T) {
	bars := make([]Bar, 5)
	for i := range bars {
		bars[i] = Bar{Time: day(i), Close: float64(i)}
	}
	df, err := NewDataframe("X", bars)
	require.NoError(t, err)

	sample := df.Sample(2)
	require.Equal(t, 2, sample.Len())
	require.Equal(t, Series[float64]{3, 4}, sample.Close)
	require.Equal(t, 5, df.Sample(10).Len())
}

func TestPricePrecision(t *testing.T) {
	require.Equal(t, 2, PricePrecision([]float64{1, 2.5}))
	require.Equal(t, 4, PricePrecision([]float64{1.2345, 2.5}))
	require.Equal(t, 8, PricePrecision([]float64{0.0000000012345}))
}
