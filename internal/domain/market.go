package domain

import (
	"fmt"
	"time"
)

// arbThreshold is the minimum deviation of the outcome price sum from 1.0
// before a two-outcome market is considered mispriced (0.5%).
const arbThreshold = 0.005

// Outcome is one side of a binary market.
type Outcome struct {
	TokenID string
	Name    string
	Price   Price
}

// Market is an immutable snapshot of a two-outcome prediction market. It is
// superseded wholesale by the next feed refresh, never mutated in place.
type Market struct {
	ID        string
	Question  string
	Outcomes  [2]Outcome
	Volume    float64
	Liquidity float64
	EndDate   time.Time
	Active    bool
	Closed    bool
	FetchedAt time.Time
}

// NewMarket builds a market snapshot from exactly two outcomes. Arbitrage
// evaluation is only defined for binary markets, so any other shape fails.
func NewMarket(id, question string, outcomes []Outcome, endDate time.Time) (Market, error) {
	if len(outcomes) != 2 {
		return Market{}, fmt.Errorf("market %s: need exactly 2 outcomes, got %d: %w", id, len(outcomes), ErrValidation)
	}
	return Market{
		ID:       id,
		Question: question,
		Outcomes: [2]Outcome{outcomes[0], outcomes[1]},
		EndDate:  endDate,
		Active:   true,
	}, nil
}

// priceSum is the sum of both outcome prices. In an efficient market this
// sits at 1.0.
func (m Market) priceSum() float64 {
	return m.Outcomes[0].Price.Amount() + m.Outcomes[1].Price.Amount()
}

// HasArbitrageOpportunity reports whether the outcome prices deviate from
// their no-arbitrage sum by more than the threshold.
func (m Market) HasArbitrageOpportunity() bool {
	s := m.priceSum()
	return abs(s-1.0) > arbThreshold
}

// ArbitrageProfit is the theoretical profit per share pair, |1 - (p0 + p1)|.
func (m Market) ArbitrageProfit() float64 {
	return abs(1.0 - m.priceSum())
}

// UnderpricedOutcome returns the cheaper outcome when the price sum is below
// 1.0, i.e. when buying both sides locks in a profit. When the sum is at or
// above 1.0 there is no underpriced side and ok is false.
func (m Market) UnderpricedOutcome() (Outcome, bool) {
	if m.priceSum() >= 1.0 {
		return Outcome{}, false
	}
	if m.Outcomes[1].Price.Amount() < m.Outcomes[0].Price.Amount() {
		return m.Outcomes[1], true
	}
	return m.Outcomes[0], true
}

// IsTradeable reports whether the market can still be traded: active, not
// closed, and ending strictly in the future.
func (m Market) IsTradeable(now time.Time) bool {
	return m.Active && !m.Closed && m.EndDate.After(now)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
