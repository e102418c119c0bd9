// Package exchange provides the price sources of the dashboard
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
)

var ErrNoRoute = errors.New("no price source for ticker")

// Matcher decides whether a route serves a ticker
type Matcher func(ticker string) bool

type route struct {
	name   string
	match  Matcher
	feeder core.Feeder
}

// Router sends each fetch to the first source whose matcher accepts the
// ticker, falling back to the default source.
type Router struct {
	routes   []route
	fallback core.Feeder
	log      logger.Logger
}

var _ core.Feeder = (*Router)(nil)

func NewRouter(log logger.Logger) *Router {
	if log == nil {
		log = zerolog.Nop()
	}
	return &Router{log: log}
}

// Route adds a named source for the tickers accepted by match
func (r *Router) Route(name string, match Matcher, feeder core.Feeder) *Router {
	r.routes = append(r.routes, route{name: name, match: match, feeder: feeder})
	return r
}

// Default sets the source used when no route matches
func (r *Router) Default(feeder core.Feeder) *Router {
	r.fallback = feeder
	return r
}

// CandlesByPeriod implements core.Feeder
func (r *Router) CandlesByPeriod(ctx context.Context, ticker string, start, end time.Time) ([]core.Bar, error) {
	ticker = strings.TrimSpace(ticker)

	for _, rt := range r.routes {
		if rt.match(ticker) {
			r.log.WithFields(map[string]any{"ticker": ticker, "source": rt.name}).Debug("routing fetch")
			return rt.feeder.CandlesByPeriod(ctx, ticker, start, end)
		}
	}

	if r.fallback == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, ticker)
	}

	return r.fallback.CandlesByPeriod(ctx, ticker, start, end)
}
