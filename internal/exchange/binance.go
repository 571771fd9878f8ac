package exchange

import (
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

// BinanceAdapter is the REST client for the Binance USDⓈ-M futures API.
type BinanceAdapter struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewBinanceAdapter creates a Binance adapter. baseURL defaults to the public
// futures endpoint when empty. apiKey/apiSecret are only required for order
// operations; market-data endpoints are unauthenticated.
func NewBinanceAdapter(baseURL, apiKey, apiSecret string) *BinanceAdapter {
	if baseURL == "" {
		baseURL = "https://fapi.binance.com"
	}
	return &BinanceAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the registry identifier for this adapter.
func (b *BinanceAdapter) Name() string { return "binance" }

type binancePremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
	Time            int64  `json:"time"`
}

// FetchFundingRate returns the latest funding rate for symbol from the
// premium index endpoint.
func (b *BinanceAdapter) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := b.doPublic(ctx, "/fapi/v1/premiumIndex", params)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("binance: funding rate %s: %w", symbol, err)
	}

	var idx binancePremiumIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return domain.FundingRate{}, fmt.Errorf("binance: decode premium index: %w", err)
	}

	rate, err := strconv.ParseFloat(idx.LastFundingRate, 64)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("binance: parse funding rate %q: %w", idx.LastFundingRate, err)
	}

	fr := domain.FundingRate{
		Symbol:    symbol,
		Rate:      rate,
		Timestamp: time.UnixMilli(idx.Time),
	}
	if idx.NextFundingTime > 0 {
		next := time.UnixMilli(idx.NextFundingTime)
		fr.NextFundingTime = &next
	}
	return fr, nil
}

// FetchFundingInterval returns the funding interval for symbol. Binance
// reports hours per symbol; symbols absent from the response use the 8h
// default.
func (b *BinanceAdapter) FetchFundingInterval(ctx context.Context, symbol string) (time.Duration, error) {
	body, err := b.doPublic(ctx, "/fapi/v1/fundingInfo", nil)
	if err != nil {
		return 0, fmt.Errorf("binance: funding info: %w", err)
	}

	var infos []struct {
		Symbol               string `json:"symbol"`
		FundingIntervalHours int    `json:"fundingIntervalHours"`
	}
	if err := json.Unmarshal(body, &infos); err != nil {
		return 0, fmt.Errorf("binance: decode funding info: %w", err)
	}

	for _, info := range infos {
		if info.Symbol == symbol && info.FundingIntervalHours > 0 {
			return time.Duration(info.FundingIntervalHours) * time.Hour, nil
		}
	}
	return 8 * time.Hour, nil
}

// FetchTickerPrices returns the current mark and index price for symbol.
func (b *BinanceAdapter) FetchTickerPrices(ctx context.Context, symbol string) (domain.TickerPrices, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := b.doPublic(ctx, "/fapi/v1/premiumIndex", params)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	var idx binancePremiumIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return domain.TickerPrices{}, fmt.Errorf("binance: decode ticker: %w", err)
	}

	mark, err := strconv.ParseFloat(idx.MarkPrice, 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("binance: parse mark price %q: %w", idx.MarkPrice, err)
	}
	index, err := strconv.ParseFloat(idx.IndexPrice, 64)
	if err != nil {
		return domain.TickerPrices{}, fmt.Errorf("binance: parse index price %q: %w", idx.IndexPrice, err)
	}

	return domain.TickerPrices{
		Symbol:     symbol,
		MarkPrice:  mark,
		IndexPrice: index,
		Timestamp:  time.UnixMilli(idx.Time),
	}, nil
}

// PlaceLimitOrder submits a GTC limit order on the signed order endpoint.
func (b *BinanceAdapter) PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", formatFloat(req.Quantity.Amount()))
	params.Set("price", formatFloat(req.Price))

	return b.submitOrder(ctx, params)
}

// PlaceMarketOrder submits a market order on the signed order endpoint.
func (b *BinanceAdapter) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.ExchangeOrder, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(req.Quantity.Amount()))

	return b.submitOrder(ctx, params)
}

// CancelOrder cancels an open order by ID.
func (b *BinanceAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	_, err := b.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return fmt.Errorf("binance: cancel order %s: %w", orderID, err)
	}
	return nil
}

// FetchOrder returns the current state of an order by ID.
func (b *BinanceAdapter) FetchOrder(ctx context.Context, symbol, orderID string) (domain.ExchangeOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	body, err := b.doSigned(ctx, http.MethodGet, "/fapi/v1/order", params)
	if err != nil {
		return domain.ExchangeOrder{}, fmt.Errorf("binance: fetch order %s: %w", orderID, err)
	}

	var resp binanceOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ExchangeOrder{}, fmt.Errorf("binance: decode order: %w", err)
	}
	return resp.toDomain(), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

type binanceOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	Price       string `json:"price"`
	Status      string `json:"status"`
	UpdateTime  int64  `json:"updateTime"`
}

func (r binanceOrderResponse) toDomain() domain.ExchangeOrder {
	qty, _ := strconv.ParseFloat(r.OrigQty, 64)
	filled, _ := strconv.ParseFloat(r.ExecutedQty, 64)
	price, _ := strconv.ParseFloat(r.Price, 64)
	return domain.ExchangeOrder{
		ID:        strconv.FormatInt(r.OrderID, 10),
		Symbol:    r.Symbol,
		Side:      domain.Side(strings.ToLower(r.Side)),
		Quantity:  qty,
		FilledQty: filled,
		Price:     price,
		Status:    r.Status,
		CreatedAt: time.UnixMilli(r.UpdateTime),
	}
}

func (b *BinanceAdapter) submitOrder(ctx context.Context, params url.Values) (domain.ExchangeOrder, error) {
	body, err := b.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return domain.ExchangeOrder{}, fmt.Errorf("binance: place order: %w", err)
	}

	var resp binanceOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ExchangeOrder{}, fmt.Errorf("binance: decode order response: %w", err)
	}
	return resp.toDomain(), nil
}

// doPublic sends an unauthenticated GET request and returns the response body.
func (b *BinanceAdapter) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
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

// doSigned sends an HMAC-signed request. Binance signs the full query string
// (including a millisecond timestamp) and carries the key in X-MBX-APIKEY.
func (b *BinanceAdapter) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if b.apiKey == "" || b.apiSecret == "" {
		return nil, fmt.Errorf("binance: api credentials not configured")
	}

	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + hmacSHA256Hex(b.apiSecret, query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	return b.do(req)
}

func (b *BinanceAdapter) do(req *http.Request) ([]byte, error) {
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

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// Compile-time interface check.
var _ domain.ExchangeAdapter = (*BinanceAdapter)(nil)
