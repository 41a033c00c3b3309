// Package gateway hosts connectors for market data and order execution venues.
package gateway

import (
	"context"

	"quantbot-go/internal/indicator"
	"quantbot-go/internal/trade"
)

// OrderRequest describes a placement the venue should execute.
type OrderRequest struct {
	Pair      string
	Direction trade.Direction
	Quantity  float64
	TPPrice   float64
	SLPrice   float64
}

// Gateway is the market data and execution surface the engine depends on.
// Every call may fail transiently; callers wrap them with a Retrier.
type Gateway interface {
	CurrentPrice(ctx context.Context, pair string) (float64, error)
	HistoricalBars(ctx context.Context, pair string, tf trade.Timeframe, count int) ([]indicator.Bar, error)
	FundingRate(ctx context.Context, pair string) (float64, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderRef string) error
}
