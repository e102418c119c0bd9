package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataframe(t *testing.T, closes, volumes []float64) *core.Dataframe {
	t.Helper()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		volume := 1000.0
		if volumes != nil {
			volume = volumes[i]
		}
		bars[i] = core.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: volume}
	}

	df, err := core.NewDataframe("TEST", bars)
	require.NoError(t, err)
	return df
}

func constant(n int, v float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return values
}

// wave is a deterministic, non-trivial price path
func wave(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = 100 + 5*math.Sin(float64(i)/3) + float64(i%7) - 0.1*float64(i)
	}
	return values
}

func TestSMA_WarmupAndMean(t *testing.T) {
	closes := wave(60)
	df := dataframe(t, closes, nil)

	for _, window := range []int{1, 5, 20} {
		series := Compute(df, Spec{Kind: KindSMA, Window: window})
		require.Len(t, series.Lines, 1)
		line := series.Lines[0]
		require.Len(t, line.Values, len(closes))

		for i := range closes {
			if i < window-1 {
				assert.False(t, line.Defined(i), "window %d index %d", window, i)
				continue
			}

			sum := 0.0
			for _, c := range closes[i-window+1 : i+1] {
				sum += c
			}
			assert.InDelta(t, sum/float64(window), line.Values[i], 1e-9, "window %d index %d", window, i)
		}
	}
}

func TestConstantSeries(t *testing.T) {
	df := dataframe(t, constant(25, 100), nil)

	sma := Compute(df, SMA20).Lines[0]
	require.InDelta(t, 100.0, sma.Values[24], 1e-12)
	require.False(t, sma.Defined(18))
	require.True(t, sma.Defined(19))

	ema := Compute(df, EMA20).Lines[0]
	require.InDelta(t, 100.0, ema.Values[24], 1e-9)

	bands := Compute(df, Bollinger20)
	require.Len(t, bands.Lines, 3)
	for _, line := range bands.Lines {
		require.InDelta(t, 100.0, line.Values[24], 1e-9, line.Name)
	}
}

func TestEMA_SeededByFirstClose(t *testing.T) {
	closes := []float64{10, 20, 30, 40}
	df := dataframe(t, closes, nil)

	line := Compute(df, Spec{Kind: KindEMA, Window: 3}).Lines[0]
	alpha := 2.0 / 4.0

	expected := closes[0]
	for _, c := range closes[1:3] {
		expected = alpha*c + (1-alpha)*expected
	}

	require.False(t, line.Defined(0))
	require.False(t, line.Defined(1))
	require.InDelta(t, expected, line.Values[2], 1e-12)
	require.InDelta(t, alpha*40+(1-alpha)*expected, line.Values[3], 1e-12)
}

func TestBollinger_Ordering(t *testing.T) {
	df := dataframe(t, wave(80), nil)
	bands := Compute(df, Bollinger20)
	upper, middle, lower := bands.Lines[0], bands.Lines[1], bands.Lines[2]

	for i := range upper.Values {
		if !upper.Defined(i) || !middle.Defined(i) {
			require.False(t, lower.Defined(i))
			continue
		}
		require.GreaterOrEqual(t, upper.Values[i], middle.Values[i])
		require.GreaterOrEqual(t, middle.Values[i], lower.Values[i])
	}
	require.True(t, upper.Defined(19))
	require.False(t, upper.Defined(18))
}

func TestVWAP_WithinCloseRange(t *testing.T) {
	closes := wave(50)
	volumes := make([]float64, len(closes))
	for i := range volumes {
		volumes[i] = float64((i*37)%11) * 100
	}
	df := dataframe(t, closes, volumes)
	line := Compute(df, VWAP).Lines[0]

	lowest, highest := math.Inf(1), math.Inf(-1)
	cumulativeVolume := 0.0
	for i, c := range closes {
		lowest, highest = math.Min(lowest, c), math.Max(highest, c)
		cumulativeVolume += volumes[i]

		if cumulativeVolume == 0 {
			require.False(t, line.Defined(i), "index %d", i)
			continue
		}
		require.True(t, line.Defined(i))
		require.GreaterOrEqual(t, line.Values[i], lowest-1e-9)
		require.LessOrEqual(t, line.Values[i], highest+1e-9)
	}
}

func TestShortSeriesIsAllUndefined(t *testing.T) {
	df := dataframe(t, wave(5), nil)

	for _, spec := range []Spec{SMA20, EMA20, Bollinger20} {
		series := Compute(df, spec)
		require.Equal(t, 5, series.Len())
		for _, line := range series.Lines {
			for i := range line.Values {
				require.False(t, line.Defined(i), "%s index %d", line.Name, i)
			}
		}
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	closes := wave(30)
	df := dataframe(t, closes, nil)
	before := df.Clone()

	ComputeAll(df, []Spec{SMA20, EMA20, Bollinger20, VWAP})
	require.Equal(t, before, df)
}

func TestComputeAll_PreservesOrder(t *testing.T) {
	df := dataframe(t, wave(40), nil)
	specs := []Spec{VWAP, Bollinger20, SMA20, EMA20}

	results := ComputeAll(df, specs)
	require.Len(t, results, len(specs))
	for i, spec := range specs {
		expected := Compute(df, spec)
		require.Equal(t, spec.Name(), results[i].Name)
		require.Equal(t, expected.Time, results[i].Time)
		require.Len(t, results[i].Lines, len(expected.Lines))

		for j, line := range expected.Lines {
			got := results[i].Lines[j]
			require.Equal(t, line.Name, got.Name)
			for k := range line.Values {
				require.Equal(t, line.Defined(k), got.Defined(k))
				if line.Defined(k) {
					require.Equal(t, line.Values[k], got.Values[k])
				}
			}
		}
	}
}

func TestParseSpecs(t *testing.T) {
	specs, err := ParseSpecs([]string{"sma20", " BOLLINGER20 ", "SMA20", "vwap"})
	require.NoError(t, err)
	require.Equal(t, []Spec{SMA20, Bollinger20, VWAP}, specs)

	specs, err = ParseSpecs(nil)
	require.NoError(t, err)
	require.Equal(t, []Spec{SMA20}, specs)

	specs, err = ParseSpecs([]string{"EMA50"})
	require.NoError(t, err)
	require.Equal(t, []Spec{{Kind: KindEMA, Window: 50}}, specs)

	_, err = ParseSpecs([]string{"RSI14"})
	require.ErrorIs(t, err, ErrUnknownIndicator)

	_, err = ParseSpec("SMA0")
	require.ErrorIs(t, err, ErrInvalidSpec)
}
