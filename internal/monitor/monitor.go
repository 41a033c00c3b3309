// Package monitor supervises open trades, racing take-profit, stop-loss,
// timeout, and manual close to a single terminal outcome per trade.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/gateway"
	"quantbot-go/internal/metrics"
	"quantbot-go/internal/notify"
	"quantbot-go/internal/store"
	"quantbot-go/internal/trade"
)

// Venue is the slice of the gateway a supervisor needs.
type Venue interface {
	CurrentPrice(ctx context.Context, pair string) (float64, error)
	PlaceOrder(ctx context.Context, req gateway.OrderRequest) (string, error)
}

// Supervisor runs one goroutine per open trade.
type Supervisor struct {
	log     zerolog.Logger
	cfg     config.Monitor
	venue   Venue
	store   store.Store
	sink    notify.Sink
	release func(id string)
}

// New builds a supervisor factory. release is called exactly once per
// finalized trade so admission capacity is freed; sink may be nil.
func New(log zerolog.Logger, cfg config.Monitor, venue Venue, st store.Store, sink notify.Sink, release func(string)) *Supervisor {
	return &Supervisor{
		log:     log.With().Str("component", "monitor").Logger(),
		cfg:     cfg,
		venue:   venue,
		store:   st,
		sink:    sink,
		release: release,
	}
}

// ExitPrices derives the take-profit and stop-loss trigger prices.
func ExitPrices(dir trade.Direction, entry float64, p trade.Params) (tp, sl float64) {
	if dir == trade.Long {
		return entry * (1 + p.TPPercent/100), entry * (1 - p.SLPercent/100)
	}
	return entry * (1 - p.TPPercent/100), entry * (1 + p.SLPercent/100)
}

// PnLPercent computes the leveraged return of an exit against the entry.
func PnLPercent(dir trade.Direction, entry, exit, leverage float64) float64 {
	if entry == 0 {
		return 0
	}
	raw := (exit - entry) / entry * 100
	if dir == trade.Short {
		raw = -raw
	}
	if leverage <= 0 {
		leverage = 1
	}
	return raw * leverage
}

// Run supervises rec until one exit condition wins. A closed manual channel
// finishes the trade as MANUAL at the last observed price. Context
// cancellation abandons supervision without closing the record, so a restart
// can resume it from the store.
func (s *Supervisor) Run(ctx context.Context, rec trade.Record, manual <-chan struct{}) error {
	tp, sl := ExitPrices(rec.Direction, rec.EntryPrice, rec.Params)
	deadline := time.Now().Add(s.cfg.Timeout(rec.Timeframe))
	log := s.log.With().Str("id", rec.ID).Str("pair", rec.Pair).Str("strategy", rec.Strategy).Logger()
	log.Info().
		Float64("entry", rec.EntryPrice).
		Float64("tp", tp).
		Float64("sl", sl).
		Time("deadline", deadline).
		Msg("supervising trade")

	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	lastPrice := rec.EntryPrice
	sawPrice := false

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("supervision abandoned, trade stays open")
			return ctx.Err()
		case <-manual:
			pnl := 0.0
			if sawPrice {
				pnl = PnLPercent(rec.Direction, rec.EntryPrice, lastPrice, rec.Params.Leverage)
			}
			return s.finalize(rec, trade.ResultManual, lastPrice, pnl, log)
		case <-ticker.C:
			if time.Now().After(deadline) {
				return s.finalize(rec, trade.ResultTimeout, lastPrice, 0, log)
			}
			price, err := s.readPrice(ctx, rec.Pair, deadline)
			if err != nil {
				if time.Now().After(deadline) {
					return s.finalize(rec, trade.ResultTimeout, lastPrice, 0, log)
				}
				log.Warn().Err(err).Msg("price unavailable this poll")
				continue
			}
			lastPrice = price
			sawPrice = true

			hitTP := (rec.Direction == trade.Long && price >= tp) || (rec.Direction == trade.Short && price <= tp)
			hitSL := (rec.Direction == trade.Long && price <= sl) || (rec.Direction == trade.Short && price >= sl)
			switch {
			case hitTP:
				pnl := rec.Params.TPPercent * leverageOrOne(rec.Params.Leverage)
				return s.finalize(rec, trade.ResultTP, price, pnl, log)
			case hitSL:
				pnl := -rec.Params.SLPercent * leverageOrOne(rec.Params.Leverage)
				return s.finalize(rec, trade.ResultSL, price, pnl, log)
			}
		}
	}
}

func leverageOrOne(lev float64) float64 {
	if lev <= 0 {
		return 1
	}
	return lev
}

// readPrice retries transient gateway failures within a poll. Retries never
// extend the trade's deadline; the attempt budget and deadline bound them.
func (s *Supervisor) readPrice(ctx context.Context, pair string, deadline time.Time) (float64, error) {
	attempts := s.cfg.PriceRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		price, err := s.venue.CurrentPrice(ctx, pair)
		if err == nil {
			return price, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.cfg.PriceRetryDelay()):
		}
	}
	return 0, lastErr
}

// finalize persists the terminal state, releases admission capacity, places
// the closing order, and raises operator notifications.
func (s *Supervisor) finalize(rec trade.Record, result trade.Result, exitPrice, pnl float64, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := trade.Close{Result: result, ExitPrice: exitPrice, PnLPercent: pnl, ClosedAt: time.Now()}
	err := s.store.Close(ctx, rec.ID, c)
	if errors.Is(err, store.ErrAlreadyClosed) {
		log.Debug().Msg("trade already closed elsewhere")
		s.release(rec.ID)
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("close persist failed")
		s.release(rec.ID)
		return err
	}

	metrics.ClosedTotal.WithLabelValues(rec.Strategy, string(result)).Inc()
	s.release(rec.ID)

	if _, err := s.venue.PlaceOrder(ctx, gateway.OrderRequest{
		Pair:      rec.Pair,
		Direction: rec.Direction.Opposite(),
		Quantity:  rec.Quantity,
	}); err != nil {
		log.Warn().Err(err).Msg("closing order failed")
	}

	log.Info().
		Str("result", string(result)).
		Float64("exit", exitPrice).
		Float64("pnl_percent", pnl).
		Msg("trade closed")
	s.notifyClose(ctx, rec, result, pnl)
	return nil
}

func (s *Supervisor) notifyClose(ctx context.Context, rec trade.Record, result trade.Result, pnl float64) {
	if s.sink == nil {
		return
	}
	switch result {
	case trade.ResultTP:
		s.sink.Notify(ctx, notify.Info, "take profit: "+rec.Pair+" "+string(rec.Direction)+" ("+rec.Strategy+")")
	case trade.ResultSL:
		s.sink.Notify(ctx, notify.Warning, "stop loss: "+rec.Pair+" "+string(rec.Direction)+" ("+rec.Strategy+")")
	}
	if s.cfg.LossAlertPercent > 0 && pnl <= -s.cfg.LossAlertPercent {
		s.sink.Notify(ctx, notify.Critical, "large loss on "+rec.Pair+" ("+rec.Strategy+")")
	}
}
