package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// tickerTTL caps how long a stale ticker survives; readers that need fresher
// data must fall back to the venue's REST API.
const tickerTTL = 2 * time.Minute

// PriceCache implements domain.PriceCache using Redis hashes. Each symbol's
// ticker is stored as a hash at key "ticker:{symbol}" with fields "mark",
// "index", and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func tickerKey(symbol string) string {
	return "ticker:" + symbol
}

// SetTicker stores the latest mark/index prices for a symbol.
func (pc *PriceCache) SetTicker(ctx context.Context, t domain.TickerPrices) error {
	key := tickerKey(t.Symbol)
	fields := map[string]interface{}{
		"mark":  strconv.FormatFloat(t.MarkPrice, 'f', -1, 64),
		"index": strconv.FormatFloat(t.IndexPrice, 'f', -1, 64),
		"ts":    strconv.FormatInt(t.Timestamp.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, tickerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set ticker %s: %w", t.Symbol, err)
	}
	return nil
}

// GetTicker retrieves the latest ticker for a symbol. It returns
// domain.ErrNotFound when no ticker has been cached.
func (pc *PriceCache) GetTicker(ctx context.Context, symbol string) (domain.TickerPrices, error) {
	vals, err := pc.rdb.HGetAll(ctx, tickerKey(symbol)).Result()
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("redis: get ticker %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.TickerPrices{}, fmt.Errorf("redis: get ticker %s: %w", symbol, domain.ErrNotFound)
	}

	t, err := parseTicker(symbol, vals)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("redis: get ticker %s: %w", symbol, err)
	}
	return t, nil
}

// GetMarkPrices retrieves the latest mark prices for multiple symbols using a
// pipeline. Symbols without a cached ticker are omitted from the result map.
func (pc *PriceCache) GetMarkPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, sym := range symbols {
		cmds[sym] = pipe.HGetAll(ctx, tickerKey(sym))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get mark prices pipeline: %w", err)
	}

	result := make(map[string]float64, len(symbols))
	for sym, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		markStr, ok := vals["mark"]
		if !ok {
			continue
		}
		mark, err := strconv.ParseFloat(markStr, 64)
		if err != nil {
			continue
		}
		result[sym] = mark
	}

	return result, nil
}

func parseTicker(symbol string, vals map[string]string) (domain.TickerPrices, error) {
	mark, err := strconv.ParseFloat(vals["mark"], 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("parse mark: %w", err)
	}
	index, err := strconv.ParseFloat(vals["index"], 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("parse index: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("parse ts: %w", err)
	}

	return domain.TickerPrices{
		Symbol:     symbol,
		MarkPrice:  mark,
		IndexPrice: index,
		Timestamp:  time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
