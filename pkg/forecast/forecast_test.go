package forecast

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dataframe(t *testing.T, closes []float64) *core.Dataframe {
	t.Helper()

	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}

	df, err := core.NewDataframe("TEST", bars)
	require.NoError(t, err)
	return df
}

func noisy(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 150 + 0.3*float64(i) + 4*math.Sin(2*math.Pi*float64(i)/7) + 2*math.Cos(float64(i)*1.7)
	}
	return closes
}

func TestFitAndPredict_LengthAndNext(t *testing.T) {
	df := dataframe(t, noisy(60))

	result, err := NewEngine().FitAndPredict(Request{Dataframe: df, Horizon: 7})
	require.NoError(t, err)

	require.Equal(t, 67, result.Len())
	require.Equal(t, 60, result.Observed)
	require.Equal(t, result.Points[60], result.Next())
	require.Equal(t, df.LastTime().AddDate(0, 0, 1), result.Next().Date)
	require.True(t, result.Points[59].Observed)
	require.False(t, result.Points[60].Observed)
	require.Len(t, result.Future(), 7)
	require.Len(t, result.Residuals(), 60)
}

func TestFitAndPredict_BoundsContainPrediction(t *testing.T) {
	for _, n := range []int{2, 10, 60, 800} {
		result, err := NewEngine().FitAndPredict(Request{Dataframe: dataframe(t, noisy(n)), Horizon: MaxHorizon})
		require.NoError(t, err, "n=%d", n)
		require.Equal(t, n+MaxHorizon, result.Len())

		for i, p := range result.Points {
			assert.LessOrEqual(t, p.Lower, p.Predicted, "n=%d point %d", n, i)
			assert.LessOrEqual(t, p.Predicted, p.Upper, "n=%d point %d", n, i)
		}
	}
}

func TestFitAndPredict_BoundsWidenWithDistance(t *testing.T) {
	result, err := NewEngine().FitAndPredict(Request{Dataframe: dataframe(t, noisy(90)), Horizon: 30})
	require.NoError(t, err)

	last := result.Points[result.Observed-1]
	width := last.Upper - last.Lower
	for _, p := range result.Future() {
		require.GreaterOrEqual(t, p.Upper-p.Lower, width-1e-12)
		width = p.Upper - p.Lower
	}
	require.Greater(t, width, 0.0)
}

func TestFitAndPredict_Deterministic(t *testing.T) {
	df := dataframe(t, noisy(120))
	engine := NewEngine()

	first, err := engine.FitAndPredict(Request{Dataframe: df, Horizon: 14})
	require.NoError(t, err)
	second, err := engine.FitAndPredict(Request{Dataframe: df, Horizon: 14})
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := range first.Points {
		require.InDelta(t, first.Points[i].Predicted, second.Points[i].Predicted, 1e-9)
		require.InDelta(t, first.Points[i].Lower, second.Points[i].Lower, 1e-9)
		require.InDelta(t, first.Points[i].Upper, second.Points[i].Upper, 1e-9)
	}
}

func TestFitAndPredict_RecoversTrend(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}

	result, err := NewEngine().FitAndPredict(Request{Dataframe: dataframe(t, closes), Horizon: 5})
	require.NoError(t, err)

	for h, p := range result.Future() {
		require.InDelta(t, 100+0.5*float64(len(closes)+h), p.Predicted, 1e-6)
	}
}

func TestFitAndPredict_ConstantSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}

	result, err := NewEngine().FitAndPredict(Request{Dataframe: dataframe(t, closes), Horizon: 3})
	require.NoError(t, err)

	for _, p := range result.Points {
		require.InDelta(t, 100.0, p.Predicted, 1e-6)
		require.InDelta(t, 0.0, p.Upper-p.Lower, 1e-6)
	}
}

func TestFitAndPredict_InsufficientData(t *testing.T) {
	engine := NewEngine()

	_, err := engine.FitAndPredict(Request{Dataframe: nil, Horizon: 7})
	require.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = engine.FitAndPredict(Request{Dataframe: dataframe(t, []float64{10}), Horizon: 7})
	require.ErrorIs(t, err, core.ErrInsufficientData)

	sameDay, err := core.NewDataframe("TEST", []core.Bar{
		{Time: start, Close: 10},
		{Time: start.Add(time.Hour), Close: 11},
	})
	require.NoError(t, err)
	_, err = engine.FitAndPredict(Request{Dataframe: sameDay, Horizon: 7})
	require.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestFitAndPredict_InvalidHorizon(t *testing.T) {
	df := dataframe(t, noisy(30))

	for _, horizon := range []int{-1, 0, 31} {
		_, err := NewEngine().FitAndPredict(Request{Dataframe: df, Horizon: horizon})
		require.ErrorIs(t, err, ErrInvalidHorizon, "horizon %d", horizon)
	}
}

func TestIntervalWidthOption(t *testing.T) {
	df := dataframe(t, noisy(60))

	narrow, err := NewEngine(WithIntervalWidth(0.5)).FitAndPredict(Request{Dataframe: df, Horizon: 1})
	require.NoError(t, err)
	wide, err := NewEngine(WithIntervalWidth(0.95)).FitAndPredict(Request{Dataframe: df, Horizon: 1})
	require.NoError(t, err)

	require.InDelta(t, narrow.Next().Predicted, wide.Next().Predicted, 1e-9)
	require.Greater(t, wide.Next().Upper-wide.Next().Lower, narrow.Next().Upper-narrow.Next().Lower)
}

func TestSeasonalityOptions(t *testing.T) {
	df := dataframe(t, noisy(60))

	trendOnly, err := NewEngine(
		WithWeeklySeasonality(SeasonalityOff),
		WithYearlySeasonality(SeasonalityOff),
	).FitAndPredict(Request{Dataframe: df, Horizon: 7})
	require.NoError(t, err)

	future := trendOnly.Future()
	step := future[1].Predicted - future[0].Predicted
	for i := 2; i < len(future); i++ {
		require.InDelta(t, step, future[i].Predicted-future[i-1].Predicted, 1e-6)
	}

	weekly, err := NewEngine(WithWeeklySeasonality(SeasonalityOn)).FitAndPredict(Request{Dataframe: df, Horizon: 7})
	require.NoError(t, err)
	require.NotEqual(t, trendOnly.Next().Predicted, weekly.Next().Predicted)
}

func TestWriteCSV(t *testing.T) {
	result, err := NewEngine().FitAndPredict(Request{Dataframe: dataframe(t, noisy(30)), Horizon: 3})
	require.NoError(t, err)

	buffer := bytes.NewBuffer(nil)
	require.NoError(t, WriteCSV(buffer, result))

	records, err := csv.NewReader(buffer).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, Header, records[0])
	require.Equal(t, "2024-01-31", records[1][0])
	require.Equal(t, "2024-02-02", records[3][0])
	require.Equal(t, Rows(result), records[1:])
}
