package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/exchange"
)

// fakeAdapter serves a fixed funding rate, or a fixed error.
type fakeAdapter struct {
	name  string
	rate  float64
	err   error
	calls atomic.Int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.FundingRate{}, f.err
	}
	return domain.FundingRate{Symbol: symbol, Rate: f.rate, Timestamp: time.Now()}, nil
}

func (f *fakeAdapter) FetchFundingInterval(ctx context.Context, symbol string) (time.Duration, error) {
	return 8 * time.Hour, nil
}

func (f *fakeAdapter) FetchTickerPrices(ctx context.Context, symbol string) (domain.TickerPrices, error) {
	return domain.TickerPrices{}, domain.ErrNotImplemented
}

func (f *fakeAdapter) PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, domain.ErrNotImplemented
}

func (f *fakeAdapter) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, domain.ErrNotImplemented
}

func (f *fakeAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return domain.ErrNotImplemented
}

func (f *fakeAdapter) FetchOrder(ctx context.Context, symbol, orderID string) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, domain.ErrNotImplemented
}

func TestExceededSpreads(t *testing.T) {
	rates := []venueRate{
		{venue: "x", rate: 0.0002},
		{venue: "y", rate: 0.0005},
	}

	flagged := exceededSpreads(rates, defaultSpreadThreshold)
	require.Len(t, flagged, 1)
	assert.InDelta(t, 0.0003, flagged[0].spread, 1e-12)

	// Below threshold: not flagged.
	tight := []venueRate{
		{venue: "x", rate: 0.0002},
		{venue: "y", rate: 0.00025},
	}
	assert.Empty(t, exceededSpreads(tight, defaultSpreadThreshold))
}

func TestExceededSpreadsAllCombinations(t *testing.T) {
	rates := []venueRate{
		{venue: "a", rate: 0.0},
		{venue: "b", rate: 0.001},
		{venue: "c", rate: 0.002},
	}

	// Three venues, three pairs, all above threshold.
	assert.Len(t, exceededSpreads(rates, defaultSpreadThreshold), 3)
}

func TestRunPassIsolatesAdapterFailure(t *testing.T) {
	healthy := &fakeAdapter{name: "binance", rate: 0.0004}
	broken := &fakeAdapter{name: "bybit", err: errors.New("connection refused")}

	reg := exchange.NewRegistry()
	reg.Register(healthy)
	reg.Register(broken)

	m := NewSpreadMonitor(reg, nil, Config{
		Symbols: []TrackedSymbol{
			{Symbol: "BTCUSDT", Enabled: true},
			{Symbol: "ETHUSDT", Enabled: false},
		},
	}, slog.Default())

	require.NoError(t, m.RunPass(context.Background()))

	// Only the enabled symbol was queried, on every adapter, and the broken
	// adapter did not poison the pass.
	assert.Equal(t, int64(1), healthy.calls.Load())
	assert.Equal(t, int64(1), broken.calls.Load())
}

func TestRunPassHonoursCancellation(t *testing.T) {
	reg := exchange.NewRegistry()
	reg.Register(&fakeAdapter{name: "binance", rate: 0.0001})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewSpreadMonitor(reg, nil, Config{
		Symbols: []TrackedSymbol{{Symbol: "BTCUSDT", Enabled: true}},
	}, slog.Default())

	assert.ErrorIs(t, m.RunPass(ctx), context.Canceled)
}
