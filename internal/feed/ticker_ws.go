// Package feed streams mark/index prices from Binance's combined websocket
// into the price cache, so the mark-to-market and risk jobs read hot data
// instead of hitting venue REST APIs.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// Config holds the websocket endpoint and reconnect policy.
type Config struct {
	URL            string // base combined-stream endpoint
	Symbols        []string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ReadTimeout    time.Duration // no message within this window forces a reconnect
}

// Defaults returns the production reconnect policy for the Binance futures
// stream.
func Defaults() Config {
	return Config{
		URL:            "wss://fstream.binance.com/stream",
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		ReadTimeout:    90 * time.Second,
	}
}

// TickerFeed consumes mark-price updates and writes them to the cache.
type TickerFeed struct {
	cfg    Config
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewTickerFeed creates a TickerFeed. Zero-valued policy fields fall back to
// Defaults.
func NewTickerFeed(cfg Config, cache domain.PriceCache, logger *slog.Logger) *TickerFeed {
	def := Defaults()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return &TickerFeed{
		cfg:    cfg,
		cache:  cache,
		logger: logger.With(slog.String("component", "ticker_feed")),
	}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff after every disconnect. It returns only ctx's error.
func (f *TickerFeed) Run(ctx context.Context) error {
	if len(f.cfg.Symbols) == 0 {
		f.logger.Warn("no symbols configured, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	backoff := f.cfg.InitialBackoff
	for {
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > f.cfg.MaxBackoff {
			backoff = f.cfg.MaxBackoff
		}
	}
}

// consume runs one connection to its natural end. A successful connect resets
// the caller's backoff indirectly by returning only after traffic flowed.
func (f *TickerFeed) consume(ctx context.Context) error {
	url := streamURL(f.cfg.URL, f.cfg.Symbols)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %v: %w", url, err, domain.ErrFeedDisconnect)
	}
	defer conn.Close()

	// Unblock the blocking read when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	f.logger.Info("stream connected", slog.Int("symbols", len(f.cfg.Symbols)))

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("feed: set read deadline: %w", err)
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %v: %w", err, domain.ErrFeedDisconnect)
		}

		ticker, ok, err := parseMarkPriceEvent(raw)
		if err != nil {
			f.logger.Warn("bad stream message", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}

		if err := f.cache.SetTicker(ctx, ticker); err != nil {
			f.logger.Warn("cache write failed",
				slog.String("symbol", ticker.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

// streamURL builds the combined-stream URL for the markPrice channel of each
// symbol.
func streamURL(base string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@markPrice")
	}
	return base + "?streams=" + strings.Join(streams, "/")
}

type combinedStreamMsg struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type markPriceEvent struct {
	EventType  string `json:"e"`
	EventTime  int64  `json:"E"`
	Symbol     string `json:"s"`
	MarkPrice  string `json:"p"`
	IndexPrice string `json:"i"`
}

// parseMarkPriceEvent decodes one combined-stream message. Non-markPrice
// events report ok=false without an error.
func parseMarkPriceEvent(raw []byte) (domain.TickerPrices, bool, error) {
	var msg combinedStreamMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.TickerPrices{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	if len(msg.Data) == 0 {
		return domain.TickerPrices{}, false, nil
	}

	var ev markPriceEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return domain.TickerPrices{}, false, fmt.Errorf("decode event: %w", err)
	}
	if ev.EventType != "markPriceUpdate" {
		return domain.TickerPrices{}, false, nil
	}

	mark, err := strconv.ParseFloat(ev.MarkPrice, 64)
	if err != nil {
		return domain.TickerPrices{}, false, fmt.Errorf("parse mark price %q: %w", ev.MarkPrice, err)
	}
	index, err := strconv.ParseFloat(ev.IndexPrice, 64)
	if err != nil {
		return domain.TickerPrices{}, false, fmt.Errorf("parse index price %q: %w", ev.IndexPrice, err)
	}

	return domain.TickerPrices{
		Symbol:     ev.Symbol,
		MarkPrice:  mark,
		IndexPrice: index,
		Timestamp:  time.UnixMilli(ev.EventTime),
	}, true, nil
}
