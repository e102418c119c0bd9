// Package advisory sends a rendered chart to an external reasoning service
// and turns its answer, or its failure, into something a user can read.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
)

var (
	ErrNotConfigured = errors.New("advisor not configured")
	ErrNoImage       = errors.New("no chart image")
	ErrEmptyAdvice   = errors.New("empty advice")
)

const (
	msgUnavailable   = "The AI analysis service is unavailable right now. Please try again later."
	msgNotConfigured = "AI analysis is not configured."
	msgNoImage       = "There is no chart to analyse yet."
	msgEmptyAdvice   = "The AI analysis service returned no advice."
)

// Error is the only error RequestAdvisory returns. Message is safe to show to
// users; Err keeps the underlying cause for logs.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Bridge makes one round trip to an advisor per request. It never retries
// and never touches the chart or the series it was given.
type Bridge struct {
	advisor   core.Advisor
	notifiers []core.Notifier
	timeout   time.Duration
	log       logger.Logger
}

// Option configures a Bridge
type Option func(*Bridge)

// WithNotifier forwards every successful advisory to n
func WithNotifier(n core.Notifier) Option {
	return func(b *Bridge) {
		b.notifiers = append(b.notifiers, n)
	}
}

// WithTimeout bounds a single advisor call. Zero leaves it to the caller.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = timeout
	}
}

func WithLogger(log logger.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

func NewBridge(advisor core.Advisor, options ...Option) *Bridge {
	bridge := &Bridge{
		advisor: advisor,
		log:     zerolog.Nop(),
	}

	for _, option := range options {
		option(bridge)
	}

	return bridge
}

// Configured reports whether an advisor is attached
func (b *Bridge) Configured() bool {
	return b != nil && b.advisor != nil
}

// RequestAdvisory asks the advisor about the chart image of ticker. Any
// failure, including a panicking advisor, comes back as *Error.
func (b *Bridge) RequestAdvisory(ctx context.Context, ticker string, image []byte) (advice string, err error) {
	if !b.Configured() {
		return "", &Error{Message: msgNotConfigured, Err: ErrNotConfigured}
	}

	log := b.log.WithFields(map[string]any{
		"request": uuid.NewString(),
		"ticker":  ticker,
		"bytes":   len(image),
	})

	defer func() {
		if r := recover(); r != nil {
			advice, err = "", &Error{Message: msgUnavailable, Err: fmt.Errorf("advisor panic: %v", r)}
			log.WithError(err).Error("advisory failed")
		}
	}()

	if len(image) == 0 {
		return "", &Error{Message: msgNoImage, Err: ErrNoImage}
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	started := time.Now()
	advice, err = b.advisor.Advise(ctx, image)
	if err != nil {
		log.WithError(err).Warn("advisory failed")
		return "", &Error{Message: msgUnavailable, Err: err}
	}

	advice = strings.TrimSpace(advice)
	if advice == "" {
		log.Warn("advisor returned no text")
		return "", &Error{Message: msgEmptyAdvice, Err: ErrEmptyAdvice}
	}

	log.WithField("elapsed", time.Since(started).String()).Info("advisory received")

	for _, notifier := range b.notifiers {
		if err := notifier.NotifyAdvisory(ctx, ticker, image, advice); err != nil {
			log.WithError(err).Warn("advisory notification failed")
		}
	}

	return advice, nil
}
