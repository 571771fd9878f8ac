// Package monitor implements the cross-exchange funding-rate spread monitor.
// It is observability-only: divergent spreads are flagged in the logs, not
// turned into alert objects.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/exchange"
)

// defaultSpreadThreshold flags pairs whose absolute funding-rate spread
// exceeds 0.01% (0.0001 in rate units).
const defaultSpreadThreshold = 0.0001

// TrackedSymbol is one perpetual symbol the monitor watches.
type TrackedSymbol struct {
	Symbol  string
	Enabled bool
}

// Config holds the spread monitor parameters.
type Config struct {
	Symbols         []TrackedSymbol
	SpreadThreshold float64 // 0 means defaultSpreadThreshold
	MaxConcurrency  int     // bounded fan-out across adapters, 0 means 4
	RateLimit       int     // per-venue requests allowed per RateWindow
	RateWindow      time.Duration
}

// venueRate is one adapter's funding rate reading for a symbol.
type venueRate struct {
	venue string
	rate  float64
}

// SpreadMonitor queries every registered adapter's funding rate for each
// tracked symbol and flags pairwise spreads above the threshold.
type SpreadMonitor struct {
	registry *exchange.Registry
	limiter  domain.RateLimiter
	cfg      Config
	logger   *slog.Logger
}

// NewSpreadMonitor creates a SpreadMonitor. limiter may be nil, in which case
// no per-venue rate limiting is applied.
func NewSpreadMonitor(registry *exchange.Registry, limiter domain.RateLimiter, cfg Config, logger *slog.Logger) *SpreadMonitor {
	if cfg.SpreadThreshold <= 0 {
		cfg.SpreadThreshold = defaultSpreadThreshold
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Second
	}
	return &SpreadMonitor{
		registry: registry,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "spread_monitor")),
	}
}

// RunPass executes one monitoring pass over all enabled symbols. A single
// adapter's failure is logged in isolation and never aborts the pass; the
// only error RunPass returns is context cancellation.
func (m *SpreadMonitor) RunPass(ctx context.Context) error {
	adapters := m.registry.All()
	if len(adapters) == 0 {
		m.logger.Warn("no adapters registered, skipping pass")
		return nil
	}

	for _, sym := range m.cfg.Symbols {
		if !sym.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rates := m.collectRates(ctx, adapters, sym.Symbol)
		for _, obs := range exceededSpreads(rates, m.cfg.SpreadThreshold) {
			m.logger.Info("funding rate spread detected",
				slog.String("symbol", sym.Symbol),
				slog.String("venue_a", obs.venueA),
				slog.Float64("rate_a", obs.rateA),
				slog.String("venue_b", obs.venueB),
				slog.Float64("rate_b", obs.rateB),
				slog.Float64("spread", obs.spread),
			)
		}
	}

	return ctx.Err()
}

// collectRates queries every adapter's funding rate for symbol concurrently
// with bounded parallelism.
func (m *SpreadMonitor) collectRates(ctx context.Context, adapters []domain.ExchangeAdapter, symbol string) []venueRate {
	var (
		mu    sync.Mutex
		rates []venueRate
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrency)

	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			if !m.allow(ctx, adapter.Name()) {
				return nil
			}

			fr, err := adapter.FetchFundingRate(ctx, symbol)
			if err != nil {
				// Isolated: one venue failing must not abort the pass.
				m.logger.Warn("funding rate fetch failed",
					slog.String("exchange", adapter.Name()),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			rates = append(rates, venueRate{venue: adapter.Name(), rate: fr.Rate})
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return rates
}

// allow checks the per-venue rate limit. Limiter errors fail open so a Redis
// hiccup does not blind the monitor.
func (m *SpreadMonitor) allow(ctx context.Context, venue string) bool {
	if m.limiter == nil {
		return true
	}
	ok, err := m.limiter.Allow(ctx, "funding:"+venue, m.cfg.RateLimit, m.cfg.RateWindow)
	if err != nil {
		m.logger.Warn("rate limiter check failed",
			slog.String("exchange", venue),
			slog.String("error", err.Error()),
		)
		return true
	}
	if !ok {
		m.logger.Debug("rate limited, skipping venue this pass",
			slog.String("exchange", venue),
		)
	}
	return ok
}

// spreadObservation is one venue pair whose rate spread exceeded the
// threshold.
type spreadObservation struct {
	venueA, venueB string
	rateA, rateB   float64
	spread         float64
}

// exceededSpreads computes the pairwise rate spread for every venue
// combination that returned a value and keeps the pairs above threshold.
func exceededSpreads(rates []venueRate, threshold float64) []spreadObservation {
	var out []spreadObservation
	for i := 0; i < len(rates); i++ {
		for j := i + 1; j < len(rates); j++ {
			spread := rates[i].rate - rates[j].rate
			if spread < 0 {
				spread = -spread
			}
			if spread <= threshold {
				continue
			}
			out = append(out, spreadObservation{
				venueA: rates[i].venue,
				venueB: rates[j].venue,
				rateA:  rates[i].rate,
				rateB:  rates[j].rate,
				spread: spread,
			})
		}
	}
	return out
}
