package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest mark/index prices.
type PriceCache interface {
	SetTicker(ctx context.Context, t TickerPrices) error
	GetTicker(ctx context.Context, symbol string) (TickerPrices, error)
	GetMarkPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// RateLimiter provides distributed rate limiting, keyed per venue.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockStore is the minimal key-value contract the distributed lock needs:
// an atomic set-if-absent with TTL and an atomic compare-then-delete. Any
// store offering these two primitives is substitutable.
type LockStore interface {
	// SetIfAbsent stores value under key with the given TTL only if the key
	// does not exist. It reports whether the value was stored.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DeleteIfEquals deletes key only if its stored value equals value. It
	// reports whether a deletion happened.
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}
