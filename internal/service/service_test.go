package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/exchange"
	"github.com/alanyoungcy/sentinel/internal/risk"
)

type memPositionStore struct {
	positions map[string]domain.Position
	loadErr   error
}

func newMemPositionStore(ps ...domain.Position) *memPositionStore {
	s := &memPositionStore{positions: make(map[string]domain.Position)}
	for _, p := range ps {
		s.positions[p.ID] = p
	}
	return s
}

func (s *memPositionStore) Create(ctx context.Context, p domain.Position) error {
	s.positions[p.ID] = p
	return nil
}

func (s *memPositionStore) Update(ctx context.Context, p domain.Position) error {
	if _, ok := s.positions[p.ID]; !ok {
		return domain.ErrNotFound
	}
	s.positions[p.ID] = p
	return nil
}

func (s *memPositionStore) Close(ctx context.Context, id string, exitPrice float64) error {
	p, ok := s.positions[id]
	if !ok || p.ClosedAt != nil {
		return domain.ErrNotFound
	}
	now := time.Now()
	p.CurrentPrice = exitPrice
	p.ClosedAt = &now
	s.positions[id] = p
	return nil
}

func (s *memPositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memPositionStore) GetOpen(ctx context.Context) ([]domain.Position, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []domain.Position
	for _, p := range s.positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPositionStore) ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

type memPriceCache struct {
	tickers map[string]domain.TickerPrices
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{tickers: make(map[string]domain.TickerPrices)}
}

func (c *memPriceCache) SetTicker(ctx context.Context, t domain.TickerPrices) error {
	c.tickers[t.Symbol] = t
	return nil
}

func (c *memPriceCache) GetTicker(ctx context.Context, symbol string) (domain.TickerPrices, error) {
	t, ok := c.tickers[symbol]
	if !ok {
		return domain.TickerPrices{}, domain.ErrNotFound
	}
	return t, nil
}

func (c *memPriceCache) GetMarkPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, sym := range symbols {
		if t, ok := c.tickers[sym]; ok {
			out[sym] = t.MarkPrice
		}
	}
	return out, nil
}

type tickerAdapter struct {
	name    string
	tickers map[string]domain.TickerPrices
}

func (a *tickerAdapter) Name() string { return a.name }

func (a *tickerAdapter) FetchTickerPrices(ctx context.Context, symbol string) (domain.TickerPrices, error) {
	t, ok := a.tickers[symbol]
	if !ok {
		return domain.TickerPrices{}, domain.ErrNotFound
	}
	return t, nil
}

func (a *tickerAdapter) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	return domain.FundingRate{}, domain.ErrNotImplemented
}

func (a *tickerAdapter) FetchFundingInterval(ctx context.Context, symbol string) (time.Duration, error) {
	return 0, domain.ErrNotImplemented
}

func (a *tickerAdapter) PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, domain.ErrNotImplemented
}

func (a *tickerAdapter) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, domain.ErrNotImplemented
}

func (a *tickerAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return domain.ErrNotImplemented
}

func (a *tickerAdapter) FetchOrder(ctx context.Context, symbol, orderID string) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, domain.ErrNotImplemented
}

type captureSink struct {
	alerts []domain.RiskAlert
}

func (c *captureSink) NotifyAlert(ctx context.Context, a domain.RiskAlert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func openPosition(id, symbol string, side domain.Side, size, entry, mark float64) domain.Position {
	p := domain.Position{
		ID:         id,
		MarketID:   "m-" + id,
		Symbol:     symbol,
		Side:       side,
		Size:       domain.MustQuantity(size),
		EntryPrice: entry,
		OpenedAt:   time.Now().Add(-time.Hour),
	}
	return p.MarkToMarket(mark, time.Now())
}

func TestRefreshMarksFromCache(t *testing.T) {
	store := newMemPositionStore(openPosition("p1", "BTCUSDT", domain.SideBuy, 0.5, 60000, 60000))
	cache := newMemPriceCache()
	require.NoError(t, cache.SetTicker(context.Background(), domain.TickerPrices{
		Symbol: "BTCUSDT", MarkPrice: 62000, IndexPrice: 61990, Timestamp: time.Now(),
	}))

	svc := NewPositionService(store, cache, exchange.NewRegistry(), slog.Default())
	require.NoError(t, svc.RefreshMarks(context.Background()))

	p, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.InDelta(t, 62000, p.CurrentPrice, 1e-9)
	assert.InDelta(t, 1000, p.UnrealizedPnL, 1e-9) // (62000-60000)*0.5
}

func TestRefreshMarksRESTFallbackBackfillsCache(t *testing.T) {
	store := newMemPositionStore(openPosition("p1", "ETHUSDT", domain.SideSell, 2, 3000, 3000))
	cache := newMemPriceCache()

	registry := exchange.NewRegistry()
	registry.Register(&tickerAdapter{name: "binance", tickers: map[string]domain.TickerPrices{
		"ETHUSDT": {Symbol: "ETHUSDT", MarkPrice: 2900, IndexPrice: 2901, Timestamp: time.Now()},
	}})

	svc := NewPositionService(store, cache, registry, slog.Default())
	require.NoError(t, svc.RefreshMarks(context.Background()))

	p, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.InDelta(t, 2900, p.CurrentPrice, 1e-9)
	assert.InDelta(t, 200, p.UnrealizedPnL, 1e-9) // short gains on a drop

	cached, err := cache.GetTicker(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 2900, cached.MarkPrice, 1e-9)
}

func TestRefreshMarksUnpricedSymbolKeepsOldMark(t *testing.T) {
	store := newMemPositionStore(openPosition("p1", "DOGEUSDT", domain.SideBuy, 100, 0.2, 0.25))

	svc := NewPositionService(store, newMemPriceCache(), exchange.NewRegistry(), slog.Default())
	require.NoError(t, svc.RefreshMarks(context.Background()))

	p, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p.CurrentPrice, 1e-9)
}

func TestRunCheckRecordsAndDelivers(t *testing.T) {
	// 20% down on a 10% stop-loss threshold.
	store := newMemPositionStore(openPosition("p1", "BTCUSDT", domain.SideBuy, 1, 50000, 40000))
	alertStore := &memAlertStore{}
	sink := &captureSink{}

	engine := risk.NewEngine(risk.Config{StopLossPct: 10}, slog.Default())
	svc := NewRiskService(store, engine, alertStore, sink, slog.Default())

	require.NoError(t, svc.RunCheck(context.Background()))

	require.Len(t, sink.alerts, 1)
	assert.Equal(t, domain.AlertStopLoss, sink.alerts[0].Type)
	assert.Len(t, alertStore.recorded, 1)
}

func TestRunCheckPropagatesLoadFailure(t *testing.T) {
	store := newMemPositionStore()
	store.loadErr = errors.New("connection refused")

	engine := risk.NewEngine(risk.Config{}, slog.Default())
	svc := NewRiskService(store, engine, nil, nil, slog.Default())

	assert.Error(t, svc.RunCheck(context.Background()))
}

func TestSnapshotMetrics(t *testing.T) {
	store := newMemPositionStore(
		openPosition("p1", "BTCUSDT", domain.SideBuy, 1, 50000, 52000),
		openPosition("p2", "ETHUSDT", domain.SideBuy, 10, 3000, 3100),
	)

	engine := risk.NewEngine(risk.Config{MaxExposure: 200000, MaxPositions: 10}, slog.Default())
	svc := NewRiskService(store, engine, nil, nil, slog.Default())

	m, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 83000, m.TotalExposure, 1e-9) // 52000 + 31000
	assert.Zero(t, m.DrawdownPercent)
	assert.Greater(t, m.RiskScore, 0.0)
}

type memAlertStore struct {
	recorded []domain.RiskAlert
}

func (s *memAlertStore) Record(ctx context.Context, a domain.RiskAlert) error {
	s.recorded = append(s.recorded, a)
	return nil
}

func (s *memAlertStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.RiskAlert, error) {
	return nil, nil
}

func (s *memAlertStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return 0, nil
}
