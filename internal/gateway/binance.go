package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"quantbot-go/internal/indicator"
	"quantbot-go/internal/trade"
)

const defaultBinanceBaseURL = "https://fapi.binance.com"

// Binance implements Gateway against the Binance USD-M futures REST API.
type Binance struct {
	client *resty.Client
	log    zerolog.Logger
	live   bool
}

// BinanceOption configures the client.
type BinanceOption func(*Binance)

// WithBaseURL overrides the REST endpoint (tests point this at a local server).
func WithBaseURL(url string) BinanceOption {
	return func(b *Binance) { b.client.SetBaseURL(url) }
}

// WithLiveOrders enables real order placement. Off by default: the engine
// simulates fills and PlaceOrder only logs.
func WithLiveOrders(live bool) BinanceOption {
	return func(b *Binance) { b.live = live }
}

// NewBinance builds a REST-backed gateway.
func NewBinance(apiKey, apiSecret string, log zerolog.Logger, opts ...BinanceOption) *Binance {
	client := resty.New()
	client.SetBaseURL(defaultBinanceBaseURL)
	client.SetTimeout(10 * time.Second)
	if apiKey != "" {
		client.SetHeader("X-MBX-APIKEY", apiKey)
	}
	_ = apiSecret // request signing is wired in when live order placement lands
	b := &Binance{client: client, log: log}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// CurrentPrice returns the latest traded price for the pair.
func (b *Binance) CurrentPrice(ctx context.Context, pair string) (float64, error) {
	var out tickerResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", pair).
		SetResult(&out).
		Get("/fapi/v1/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("ticker %s: %w", pair, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("ticker %s: status %d", pair, resp.StatusCode())
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: parse price %q: %w", pair, out.Price, err)
	}
	return price, nil
}

// HistoricalBars fetches the most recent count klines for pair/timeframe.
func (b *Binance) HistoricalBars(ctx context.Context, pair string, tf trade.Timeframe, count int) ([]indicator.Bar, error) {
	var raw [][]any
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   pair,
			"interval": string(tf),
			"limit":    strconv.Itoa(count),
		}).
		SetResult(&raw).
		Get("/fapi/v1/klines")
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", pair, tf, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("klines %s %s: status %d", pair, tf, resp.StatusCode())
	}

	bars := make([]indicator.Bar, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		bar := indicator.Bar{
			OpenTime: int64(asFloat(k[0])),
			Open:     parseField(k[1]),
			High:     parseField(k[2]),
			Low:      parseField(k[3]),
			Close:    parseField(k[4]),
			Volume:   parseField(k[5]),
		}
		bars = append(bars, bar)
	}
	if len(bars) < count {
		b.log.Warn().Str("pair", pair).Str("tf", string(tf)).Int("got", len(bars)).Int("want", count).Msg("short kline history")
	}
	return bars, nil
}

type fundingResponse struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
}

// FundingRate returns the latest funding rate for the pair.
func (b *Binance) FundingRate(ctx context.Context, pair string) (float64, error) {
	var out fundingResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", pair).
		SetResult(&out).
		Get("/fapi/v1/premiumIndex")
	if err != nil {
		return 0, fmt.Errorf("funding %s: %w", pair, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("funding %s: status %d", pair, resp.StatusCode())
	}
	rate, err := strconv.ParseFloat(out.LastFundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("funding %s: parse %q: %w", pair, out.LastFundingRate, err)
	}
	return rate, nil
}

// PlaceOrder submits an order when live trading is enabled; otherwise it logs
// the request and returns a synthetic reference.
func (b *Binance) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if !b.live {
		b.log.Info().
			Str("pair", req.Pair).
			Str("side", string(req.Direction)).
			Float64("qty", req.Quantity).
			Float64("tp", req.TPPrice).
			Float64("sl", req.SLPrice).
			Msg("dry-run order")
		return "dry-run", nil
	}
	side := "BUY"
	if req.Direction == trade.Short {
		side = "SELL"
	}
	var out struct {
		OrderID int64 `json:"orderId"`
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   req.Pair,
			"side":     side,
			"type":     "MARKET",
			"quantity": strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		}).
		SetResult(&out).
		Post("/fapi/v1/order")
	if err != nil {
		return "", fmt.Errorf("place order %s: %w", req.Pair, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("place order %s: status %d", req.Pair, resp.StatusCode())
	}
	return strconv.FormatInt(out.OrderID, 10), nil
}

// CancelOrder cancels a previously placed order.
func (b *Binance) CancelOrder(ctx context.Context, orderRef string) error {
	if !b.live || orderRef == "dry-run" {
		return nil
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("orderId", orderRef).
		Delete("/fapi/v1/order")
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderRef, err)
	}
	if resp.IsError() {
		return fmt.Errorf("cancel order %s: status %d", orderRef, resp.StatusCode())
	}
	return nil
}

func parseField(v any) float64 {
	switch x := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case float64:
		return x
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
