package domain

import "time"

// Position represents an open or historical trading position. CurrentPrice is
// refreshed by the mark-to-market job between evaluation passes.
type Position struct {
	ID            string
	MarketID      string
	Symbol        string
	Side          Side
	Size          Quantity
	EntryPrice    float64
	CurrentPrice  float64
	RealizedPnL   float64
	UnrealizedPnL float64
	OpenedAt      time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// IsOpen reports whether the position still carries size.
func (p Position) IsOpen() bool {
	return !p.Size.IsZero() && p.ClosedAt == nil
}

// Value is the current notional value of the position.
func (p Position) Value() float64 {
	return p.CurrentPrice * p.Size.Amount()
}

// MarkToMarket returns a copy of the position revalued at price, with
// unrealized PnL recomputed relative to the entry.
func (p Position) MarkToMarket(price float64, now time.Time) Position {
	p.CurrentPrice = price
	switch p.Side {
	case SideSell:
		p.UnrealizedPnL = (p.EntryPrice - price) * p.Size.Amount()
	default:
		p.UnrealizedPnL = (price - p.EntryPrice) * p.Size.Amount()
	}
	p.UpdatedAt = now
	return p
}

// UnrealizedPnLPct is the unrealized PnL as a percentage of the entry
// notional. Zero-notional positions report 0.
func (p Position) UnrealizedPnLPct() float64 {
	notional := p.EntryPrice * p.Size.Amount()
	if notional == 0 {
		return 0
	}
	return p.UnrealizedPnL / notional * 100
}
