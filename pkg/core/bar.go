package core

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Bar is one daily OHLCV observation
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IsEmpty checks if the bar carries no price data
func (b Bar) IsEmpty() bool { return b.Close == 0 && b.Open == 0 && b.High == 0 && b.Low == 0 }

// Validate rejects bars with NaN, infinite or negative prices or volume
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bar at %s", ErrNonFiniteValue, b.Time.Format(time.DateOnly))
		}
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
		return fmt.Errorf("%w: bar at %s", ErrNegativeValue, b.Time.Format(time.DateOnly))
	}
	return nil
}

// ToSlice converts a bar to a string slice for CSV serialization
// with the specified decimal precision
func (b Bar) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", b.Time.Unix()),
		strconv.FormatFloat(b.Open, 'f', precision, 64),
		strconv.FormatFloat(b.Close, 'f', precision, 64),
		strconv.FormatFloat(b.Low, 'f', precision, 64),
		strconv.FormatFloat(b.High, 'f', precision, 64),
		strconv.FormatFloat(b.Volume, 'f', precision, 64),
	}
}
