// Package service composes the storage, cache, exchange, and risk layers into
// the operations the scheduled jobs invoke.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/exchange"
	"github.com/alanyoungcy/sentinel/internal/query"
)

// PositionService keeps stored positions marked to the latest prices.
type PositionService struct {
	store    domain.PositionStore
	cache    domain.PriceCache
	registry *exchange.Registry
	logger   *slog.Logger
}

// NewPositionService creates a PositionService. cache may be nil, in which
// case every refresh goes through the venue REST APIs.
func NewPositionService(
	store domain.PositionStore,
	cache domain.PriceCache,
	registry *exchange.Registry,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		store:    store,
		cache:    cache,
		registry: registry,
		logger:   logger.With(slog.String("component", "position_service")),
	}
}

// RefreshMarks revalues every open position at the freshest mark price,
// preferring the cache fed by the websocket stream and falling back to venue
// REST tickers for symbols the stream has not covered. Positions whose price
// cannot be resolved keep their previous mark; one bad symbol never aborts
// the pass.
func (s *PositionService) RefreshMarks(ctx context.Context) error {
	open, err := s.store.GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("service: load open positions: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	marks := s.resolveMarks(ctx, symbolsOf(open))

	now := time.Now().UTC()
	var updated, skipped int
	for _, p := range open {
		price, ok := marks[p.Symbol]
		if !ok {
			skipped++
			continue
		}

		mtm := p.MarkToMarket(price, now)
		if err := s.store.Update(ctx, mtm); err != nil {
			s.logger.Warn("position update failed",
				slog.String("position", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++
	}

	s.logger.Debug("mark refresh complete",
		slog.Int("open", len(open)),
		slog.Int("updated", updated),
		slog.Int("unpriced", skipped),
	)
	return nil
}

// resolveMarks answers as many symbols as possible from the cache, then fills
// the gaps via REST.
func (s *PositionService) resolveMarks(ctx context.Context, symbols []string) map[string]float64 {
	marks := make(map[string]float64, len(symbols))

	if s.cache != nil {
		cached, err := s.cache.GetMarkPrices(ctx, symbols)
		if err != nil {
			s.logger.Warn("price cache read failed", slog.String("error", err.Error()))
		} else {
			marks = cached
		}
	}

	for _, sym := range symbols {
		if _, ok := marks[sym]; ok {
			continue
		}
		ticker, ok := s.fetchTicker(ctx, sym)
		if !ok {
			continue
		}
		marks[sym] = ticker.MarkPrice

		if s.cache != nil {
			if err := s.cache.SetTicker(ctx, ticker); err != nil {
				s.logger.Warn("price cache backfill failed",
					slog.String("symbol", sym),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return marks
}

// fetchTicker tries each registered venue in order until one answers.
func (s *PositionService) fetchTicker(ctx context.Context, symbol string) (domain.TickerPrices, bool) {
	for _, adapter := range s.registry.All() {
		ticker, err := adapter.FetchTickerPrices(ctx, symbol)
		if err != nil {
			s.logger.Warn("ticker fetch failed",
				slog.String("exchange", adapter.Name()),
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		return ticker, true
	}
	return domain.TickerPrices{}, false
}

func symbolsOf(positions []domain.Position) []string {
	seen := query.GroupBy(positions, func(p domain.Position) string { return p.Symbol })
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	return symbols
}
