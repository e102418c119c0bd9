package core

import "errors"

var (
	// ErrDataUnavailable is returned when a fetch fails or comes back empty
	ErrDataUnavailable = errors.New("no price data available")
	// ErrInsufficientData is returned when a series is too short to fit a forecast
	ErrInsufficientData = errors.New("insufficient data")
	// ErrEmptySeries is returned when composing a chart from zero bars
	ErrEmptySeries = errors.New("empty series")
	// ErrMisalignedSeries is returned when an overlay does not share the candle date axis
	ErrMisalignedSeries = errors.New("misaligned series")

	ErrUnorderedSeries = errors.New("timestamps not strictly increasing")
	ErrNegativeValue   = errors.New("negative value")
	ErrNonFiniteValue  = errors.New("value is NaN or infinite")
)
