package domain

import (
	"context"
	"time"
)

// FundingRate is a perpetual-contract funding snapshot from one venue.
type FundingRate struct {
	Symbol          string
	Rate            float64
	Timestamp       time.Time
	NextFundingTime *time.Time
}

// TickerPrices carries the mark and index price for a symbol.
type TickerPrices struct {
	Symbol     string
	MarkPrice  float64
	IndexPrice float64
	Timestamp  time.Time
}

// OrderRequest describes a limit or market order to place on a venue.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Quantity Quantity
	Price    float64 // ignored for market orders
}

// ExchangeOrder is a venue's view of a submitted order.
type ExchangeOrder struct {
	ID        string
	Symbol    string
	Side      Side
	Quantity  float64
	FilledQty float64
	Price     float64
	Status    string
	CreatedAt time.Time
}

// ExchangeAdapter is the capability interface one venue client implements.
// Order operations an adapter does not yet support return ErrNotImplemented;
// callers must treat that as a defined capability gap, distinct from
// transport failures.
type ExchangeAdapter interface {
	Name() string
	FetchFundingRate(ctx context.Context, symbol string) (FundingRate, error)
	FetchFundingInterval(ctx context.Context, symbol string) (time.Duration, error)
	FetchTickerPrices(ctx context.Context, symbol string) (TickerPrices, error)
	PlaceLimitOrder(ctx context.Context, req OrderRequest) (ExchangeOrder, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (ExchangeOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	FetchOrder(ctx context.Context, symbol, orderID string) (ExchangeOrder, error)
}
