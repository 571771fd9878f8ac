package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

const bybitRecvWindow = "5000"

// BybitAdapter is the REST client for the Bybit v5 linear-perpetual API.
//
// FetchOrder is not implemented yet and reports domain.ErrNotImplemented;
// callers are expected to branch on that capability gap.
type BybitAdapter struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewBybitAdapter creates a Bybit adapter. baseURL defaults to the public
// endpoint when empty.
func NewBybitAdapter(baseURL, apiKey, apiSecret string) *BybitAdapter {
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}
	return &BybitAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the registry identifier for this adapter.
func (b *BybitAdapter) Name() string { return "bybit" }

type bybitTicker struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	NextFundingTime string `json:"nextFundingTime"`
}

// fetchTicker reads the linear ticker entry for symbol.
func (b *BybitAdapter) fetchTicker(ctx context.Context, symbol string) (bybitTicker, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	body, err := b.doPublic(ctx, "/v5/market/tickers", params)
	if err != nil {
		return bybitTicker{}, err
	}

	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []bybitTicker `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return bybitTicker{}, fmt.Errorf("decode tickers: %w", err)
	}
	if resp.RetCode != 0 {
		return bybitTicker{}, fmt.Errorf("api error %d: %s", resp.RetCode, resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return bybitTicker{}, fmt.Errorf("symbol %s: %w", symbol, domain.ErrNotFound)
	}
	return resp.Result.List[0], nil
}

// FetchFundingRate returns the current funding rate for symbol.
func (b *BybitAdapter) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	tk, err := b.fetchTicker(ctx, symbol)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("bybit: funding rate %s: %w", symbol, err)
	}

	rate, err := strconv.ParseFloat(tk.FundingRate, 64)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("bybit: parse funding rate %q: %w", tk.FundingRate, err)
	}

	fr := domain.FundingRate{
		Symbol:    symbol,
		Rate:      rate,
		Timestamp: time.Now().UTC(),
	}
	if ms, err := strconv.ParseInt(tk.NextFundingTime, 10, 64); err == nil && ms > 0 {
		next := time.UnixMilli(ms)
		fr.NextFundingTime = &next
	}
	return fr, nil
}

// FetchFundingInterval returns the funding interval for symbol from the
// instruments-info endpoint (reported in minutes).
func (b *BybitAdapter) FetchFundingInterval(ctx context.Context, symbol string) (time.Duration, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	body, err := b.doPublic(ctx, "/v5/market/instruments-info", params)
	if err != nil {
		return 0, fmt.Errorf("bybit: instruments info %s: %w", symbol, err)
	}

	var resp struct {
		RetCode int `json:"retCode"`
		Result  struct {
			List []struct {
				FundingInterval int `json:"fundingInterval"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("bybit: decode instruments info: %w", err)
	}
	if len(resp.Result.List) == 0 || resp.Result.List[0].FundingInterval <= 0 {
		return 8 * time.Hour, nil
	}
	return time.Duration(resp.Result.List[0].FundingInterval) * time.Minute, nil
}

// FetchTickerPrices returns the current mark and index price for symbol.
func (b *BybitAdapter) FetchTickerPrices(ctx context.Context, symbol string) (domain.TickerPrices, error) {
	tk, err := b.fetchTicker(ctx, symbol)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("bybit: ticker %s: %w", symbol, err)
	}

	mark, err := strconv.ParseFloat(tk.MarkPrice, 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("bybit: parse mark price %q: %w", tk.MarkPrice, err)
	}
	index, err := strconv.ParseFloat(tk.IndexPrice, 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("bybit: parse index price %q: %w", tk.IndexPrice, err)
	}

	return domain.TickerPrices{
		Symbol:     symbol,
		MarkPrice:  mark,
		IndexPrice: index,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// PlaceLimitOrder submits a GTC limit order.
func (b *BybitAdapter) PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	payload := map[string]string{
		"category":    "linear",
		"symbol":      req.Symbol,
		"side":        bybitSide(req.Side),
		"orderType":   "Limit",
		"timeInForce": "GTC",
		"qty":         formatFloat(req.Quantity.Amount()),
		"price":       formatFloat(req.Price),
	}
	return b.submitOrder(ctx, req, payload)
}

// PlaceMarketOrder submits a market order.
func (b *BybitAdapter) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	payload := map[string]string{
		"category":  "linear",
		"symbol":    req.Symbol,
		"side":      bybitSide(req.Side),
		"orderType": "Market",
		"qty":       formatFloat(req.Quantity.Amount()),
	}
	return b.submitOrder(ctx, req, payload)
}

// CancelOrder cancels an open order by ID.
func (b *BybitAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	payload := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	if _, err := b.doSigned(ctx, "/v5/order/cancel", payload); err != nil {
		return fmt.Errorf("bybit: cancel order %s: %w", orderID, err)
	}
	return nil
}

// FetchOrder is not supported by this adapter yet.
func (b *BybitAdapter) FetchOrder(ctx context.Context, symbol, orderID string) (domain.ExchangeOrder, error) {
	return domain.ExchangeOrder{}, fmt.Errorf("bybit: fetch order: %w", domain.ErrNotImplemented)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func bybitSide(s domain.Side) string {
	if s == domain.SideSell {
		return "Sell"
	}
	return "Buy"
}

func (b *BybitAdapter) submitOrder(ctx context.Context, req domain.OrderRequest, payload map[string]string) (domain.ExchangeOrder, error) {
	body, err := b.doSigned(ctx, "/v5/order/create", payload)
	if err != nil {
		return domain.ExchangeOrder{}, fmt.Errorf("bybit: place order: %w", err)
	}

	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			OrderID string `json:"orderId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ExchangeOrder{}, fmt.Errorf("bybit: decode order response: %w", err)
	}
	if resp.RetCode != 0 {
		return domain.ExchangeOrder{}, fmt.Errorf("bybit: order rejected %d: %s", resp.RetCode, resp.RetMsg)
	}

	return domain.ExchangeOrder{
		ID:        resp.Result.OrderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity.Amount(),
		Price:     req.Price,
		Status:    "created",
		CreatedAt: time.Now().UTC(),
	}, nil
}

// doPublic sends an unauthenticated GET request.
func (b *BybitAdapter) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := b.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return b.do(req)
}

// doSigned sends a signed POST request. Bybit v5 signs
// timestamp + apiKey + recvWindow + body with HMAC-SHA256 and carries the
// signature in X-BAPI-SIGN.
func (b *BybitAdapter) doSigned(ctx context.Context, path string, payload map[string]string) ([]byte, error) {
	if b.apiKey == "" || b.apiSecret == "" {
		return nil, fmt.Errorf("bybit: api credentials not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig := hmacSHA256Hex(b.apiSecret, ts+b.apiKey+bybitRecvWindow+string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	req.Header.Set("X-BAPI-SIGN", sig)

	return b.do(req)
}

func (b *BybitAdapter) do(req *http.Request) ([]byte, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("status 429: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.ExchangeAdapter = (*BybitAdapter)(nil)
