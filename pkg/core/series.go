package core

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Series is a time series of ordered values
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Clone returns a copy that shares no memory with s
func (s Series[T]) Clone() Series[T] {
	if s == nil {
		return nil
	}
	out := make(Series[T], len(s))
	copy(out, s)
	return out
}

// NumDecPlaces returns the number of decimal places in a float64
func NumDecPlaces(v float64) int64 {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	i := strings.IndexByte(s, '.')
	if i > -1 {
		return int64(len(s) - i - 1)
	}
	return 0
}

// PricePrecision returns the decimal places needed to print every finite
// value in values, clamped to [2, 8]
func PricePrecision(values []float64) int {
	precision := int64(2)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if p := NumDecPlaces(v); p > precision {
			precision = p
		}
	}
	return int(min(precision, 8))
}
