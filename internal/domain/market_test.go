package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binaryMarket(t *testing.T, p0, p1 float64) Market {
	t.Helper()
	m, err := NewMarket("mkt-1", "Will it rain tomorrow?", []Outcome{
		{TokenID: "tok-yes", Name: "Yes", Price: MustPrice(p0)},
		{TokenID: "tok-no", Name: "No", Price: MustPrice(p1)},
	}, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	return m
}

func TestNewMarketRequiresTwoOutcomes(t *testing.T) {
	_, err := NewMarket("mkt-1", "q", []Outcome{
		{TokenID: "a", Price: MustPrice(0.5)},
	}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewMarket("mkt-1", "q", []Outcome{
		{TokenID: "a", Price: MustPrice(0.3)},
		{TokenID: "b", Price: MustPrice(0.3)},
		{TokenID: "c", Price: MustPrice(0.3)},
	}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestArbitrageDetection(t *testing.T) {
	tests := []struct {
		name       string
		p0, p1     float64
		wantOpp    bool
		wantProfit float64
	}{
		{"clearly underpriced", 0.45, 0.50, true, 0.05},
		{"clearly overpriced", 0.55, 0.50, true, 0.05},
		{"efficient", 0.50, 0.50, false, 0},
		{"inside threshold", 0.499, 0.497, false, 0.004},
		{"just outside threshold", 0.50, 0.494, true, 0.006},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := binaryMarket(t, tt.p0, tt.p1)
			assert.Equal(t, tt.wantOpp, m.HasArbitrageOpportunity())
			assert.InDelta(t, tt.wantProfit, m.ArbitrageProfit(), 1e-12)
		})
	}
}

func TestUnderpricedOutcome(t *testing.T) {
	m := binaryMarket(t, 0.45, 0.50)
	out, ok := m.UnderpricedOutcome()
	require.True(t, ok)
	assert.Equal(t, "tok-yes", out.TokenID)

	// Sum above 1: no underpriced side even though arbitrage exists.
	over := binaryMarket(t, 0.55, 0.50)
	_, ok = over.UnderpricedOutcome()
	assert.False(t, ok)
}

func TestIsTradeable(t *testing.T) {
	now := time.Now()
	m := binaryMarket(t, 0.5, 0.5)
	assert.True(t, m.IsTradeable(now))

	closed := m
	closed.Closed = true
	assert.False(t, closed.IsTradeable(now))

	inactive := m
	inactive.Active = false
	assert.False(t, inactive.IsTradeable(now))

	expired := m
	expired.EndDate = now
	assert.False(t, expired.IsTradeable(now))
}

func TestPositionMarkToMarket(t *testing.T) {
	p := Position{
		ID:         "pos-1",
		Symbol:     "BTCUSDT",
		Side:       SideBuy,
		Size:       MustQuantity(10),
		EntryPrice: 0.40,
	}

	now := time.Now()
	marked := p.MarkToMarket(0.50, now)
	assert.InDelta(t, 1.0, marked.UnrealizedPnL, 1e-12)
	assert.InDelta(t, 25.0, marked.UnrealizedPnLPct(), 1e-9)
	assert.InDelta(t, 5.0, marked.Value(), 1e-12)

	short := p
	short.Side = SideSell
	marked = short.MarkToMarket(0.50, now)
	assert.InDelta(t, -1.0, marked.UnrealizedPnL, 1e-12)
}

func TestPositionIsOpen(t *testing.T) {
	p := Position{Size: MustQuantity(1)}
	assert.True(t, p.IsOpen())

	p.Size = MustQuantity(0)
	assert.False(t, p.IsOpen())
}
