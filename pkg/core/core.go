package core

import (
	"context"
	"time"
)

// Feeder is a source of historical daily bars
type Feeder interface {
	// CandlesByPeriod returns the bars of ticker in [start, end], oldest first.
	// An empty result is not an error at this level.
	CandlesByPeriod(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)
}

// Advisor turns a rendered chart image into free-text advice
type Advisor interface {
	Advise(ctx context.Context, image []byte) (string, error)
}

// Notifier forwards a rendered chart and its advisory to an external channel
type Notifier interface {
	NotifyAdvisory(ctx context.Context, ticker string, image []byte, advisory string) error
}
