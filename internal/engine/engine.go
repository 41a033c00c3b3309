// Package engine runs the scheduling loop: score every pair, timeframe, and
// strategy combination, rank the survivors, admit what fits, and hand each
// admitted trade to its own supervisor goroutine.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quantbot-go/internal/admission"
	"quantbot-go/internal/aggregate"
	"quantbot-go/internal/config"
	"quantbot-go/internal/feedback"
	"quantbot-go/internal/gateway"
	"quantbot-go/internal/indicator"
	"quantbot-go/internal/metrics"
	"quantbot-go/internal/monitor"
	"quantbot-go/internal/notify"
	"quantbot-go/internal/predictor"
	"quantbot-go/internal/quality"
	"quantbot-go/internal/scorer"
	"quantbot-go/internal/store"
	"quantbot-go/internal/trade"
)

// PriceCache serves last-seen prices without a venue round trip, typically
// backed by the websocket stream.
type PriceCache interface {
	LastPrice(pair string) (float64, bool)
}

// Engine owns the cycle loop and the monitor goroutines it spawns.
type Engine struct {
	log      zerolog.Logger
	cfg      *config.Config
	registry *config.Registry
	gw       gateway.Gateway
	retrier  gateway.Retrier
	store    store.Store
	scorer   *scorer.Scorer
	provider indicator.Provider
	ctrl     *admission.Controller
	state    *admission.State
	sup      *monitor.Supervisor
	enabled  map[string]bool
	cache    PriceCache

	mu     sync.Mutex
	manual chan struct{}
	runCtx context.Context
	wg     sync.WaitGroup
}

// New wires the pipeline. enabled is the per-strategy admission switch map;
// strategies absent from it count as enabled. sink may be nil.
func New(log zerolog.Logger, cfg *config.Config, registry *config.Registry, gw gateway.Gateway, st store.Store, model *predictor.Logit, sink notify.Sink, enabled map[string]bool) *Engine {
	e := &Engine{
		log:      log.With().Str("component", "engine").Logger(),
		cfg:      cfg,
		registry: registry,
		gw:       gw,
		retrier:  gateway.Retrier{Attempts: cfg.Gateway.RetryAttempts, Delay: cfg.Gateway.RetryDelay()},
		store:    st,
		scorer:   scorer.New(log, model),
		provider: indicator.Default(),
		state:    admission.NewState(),
		enabled:  enabled,
		manual:   make(chan struct{}),
	}
	e.ctrl = admission.New(log, cfg.Limits, st, e.state, e.spawn)
	e.sup = monitor.New(log, cfg.Monitor, gw, st, sink, e.ctrl.Release)
	if on, known := enabled[config.GlobalPauseKey]; known && !on {
		e.ctrl.SetPaused(true)
	}
	return e
}

// SetPriceCache installs a stream-backed price source for monitors' pair
// prices to come from; optional.
func (e *Engine) SetPriceCache(cache PriceCache) { e.cache = cache }

// Controller exposes the admission controller for operator surfaces.
func (e *Engine) Controller() *admission.Controller { return e.ctrl }

// Run resumes supervision of open records, then cycles until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	e.resumeOpen(ctx)

	ticker := time.NewTicker(e.cfg.Engine.CycleInterval())
	defer ticker.Stop()
	for {
		e.Cycle(ctx)
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one full pass: evaluate every pair and strategy, then admit.
func (e *Engine) Cycle(ctx context.Context) {
	start := time.Now()

	perf := e.historicalPerformance(ctx)
	strategies := e.registry.All()
	for _, pair := range e.cfg.Gateway.Pairs {
		for name, strat := range strategies {
			if on, known := e.enabled[name]; known && !on {
				continue
			}
			e.evaluate(ctx, pair, strat, perf[name])
		}
	}

	admitted := e.ctrl.RunCycle(ctx)
	e.log.Debug().
		Int("admitted", admitted).
		Int("open", e.state.GlobalOpen()).
		Dur("elapsed", time.Since(start)).
		Msg("cycle complete")
}

// historicalPerformance derives each strategy's realized win rate and average
// pnl for the quality ranking. Store failures degrade to empty history.
func (e *Engine) historicalPerformance(ctx context.Context) map[string]quality.Performance {
	closed, err := e.store.Query(ctx, store.Filter{State: trade.StateClosed})
	if err != nil {
		e.log.Warn().Err(err).Msg("history query failed, ranking without it")
		return nil
	}
	out := make(map[string]quality.Performance)
	for name, s := range feedback.Collect(closed) {
		out[name] = quality.Performance{WinRate: s.WinRate, AvgPnL: s.AvgPnL}
	}
	return out
}

// evaluate scores one pair under one strategy across its timeframes and
// submits the resulting candidate, if any. A panicking strategy loses only
// its own evaluation, never the cycle.
func (e *Engine) evaluate(ctx context.Context, pair string, strat config.Strategy, perf quality.Performance) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("pair", pair).
				Str("strategy", strat.Name).
				Any("panic", r).
				Msg("strategy evaluation panicked")
		}
	}()

	evals := make(map[trade.Timeframe]scorer.Evaluation, len(strat.Timeframes))
	bestBars := make(map[trade.Timeframe][]indicator.Bar, len(strat.Timeframes))
	for _, tf := range strat.Timeframes {
		var bars []indicator.Bar
		err := e.retrier.Do(ctx, "historical_bars", func() error {
			var ferr error
			bars, ferr = e.gw.HistoricalBars(ctx, pair, tf, e.cfg.Engine.BarsPerFetch)
			return ferr
		})
		if err != nil {
			e.log.Warn().Err(err).Str("pair", pair).Str("tf", string(tf)).Msg("bars unavailable, timeframe skipped")
			continue
		}
		bestBars[tf] = bars
		if eval := e.scorer.Score(e.provider.Compute(bars), strat); eval.Direction != "" {
			evals[tf] = eval
		}
	}
	if len(evals) == 0 {
		return
	}

	decision := aggregate.Combine(evals)
	if decision.Direction == "" {
		return
	}

	tf, eval := e.pickTimeframe(evals, decision.Direction)
	entry, ok := e.entryPrice(ctx, pair)
	if !ok {
		return
	}

	cand := trade.Candidate{
		Pair:        pair,
		Direction:   decision.Direction,
		Timeframe:   tf,
		Strategy:    strat.Name,
		Indicators:  e.contributing(evals, decision.Direction),
		EntryPrice:  entry,
		Quantity:    e.cfg.Engine.QuantityUSD / entry,
		FundingRate: e.fundingRate(ctx, pair),
		TechScore:   decision.Score,
		Quality:     quality.Score(decision.Score, bestBars[tf], perf),
		Confidence:  decision.Confidence,
		Features:    eval.Features,
		Reasons:     decision.Reasons,
		Params:      strat.Params(),
		CreatedAt:   time.Now(),
	}
	metrics.SignalsTotal.WithLabelValues(pair, strat.Name).Inc()
	if err := e.ctrl.Submit(ctx, cand); err != nil {
		e.log.Warn().Err(err).Str("pair", pair).Str("strategy", strat.Name).Msg("candidate refused")
	}
}

// pickTimeframe selects the longest timeframe that voted for the winning
// direction; its horizon drives the trade's timeout budget.
func (e *Engine) pickTimeframe(evals map[trade.Timeframe]scorer.Evaluation, dir trade.Direction) (trade.Timeframe, scorer.Evaluation) {
	for i := len(trade.Timeframes) - 1; i >= 0; i-- {
		tf := trade.Timeframes[i]
		if eval, ok := evals[tf]; ok && eval.Direction == dir {
			return tf, eval
		}
	}
	for tf, eval := range evals {
		return tf, eval
	}
	return "", scorer.Evaluation{}
}

// contributing unions the indicators that fired for the winning direction.
func (e *Engine) contributing(evals map[trade.Timeframe]scorer.Evaluation, dir trade.Direction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tf := range trade.Timeframes {
		eval, ok := evals[tf]
		if !ok || eval.Direction != dir {
			continue
		}
		for _, ind := range eval.Indicators {
			if !seen[ind] {
				seen[ind] = true
				out = append(out, ind)
			}
		}
	}
	return out
}

// entryPrice prefers the stream cache and falls back to a retried venue read.
func (e *Engine) entryPrice(ctx context.Context, pair string) (float64, bool) {
	if e.cache != nil {
		if price, ok := e.cache.LastPrice(pair); ok && price > 0 {
			return price, true
		}
	}
	var price float64
	err := e.retrier.Do(ctx, "current_price", func() error {
		var ferr error
		price, ferr = e.gw.CurrentPrice(ctx, pair)
		return ferr
	})
	if err != nil {
		e.log.Warn().Err(err).Str("pair", pair).Msg("entry price unavailable, candidate dropped")
		return 0, false
	}
	return price, true
}

// fundingRate is captured for the record only; failures degrade to zero.
func (e *Engine) fundingRate(ctx context.Context, pair string) float64 {
	rate, err := e.gw.FundingRate(ctx, pair)
	if err != nil {
		e.log.Debug().Err(err).Str("pair", pair).Msg("funding rate unavailable")
		return 0
	}
	return rate
}

// spawn places the opening order and starts the trade's supervisor. It runs
// from inside the admission cycle, once per admitted record.
func (e *Engine) spawn(rec trade.Record) {
	e.mu.Lock()
	ctx := e.runCtx
	e.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	tp, sl := monitor.ExitPrices(rec.Direction, rec.EntryPrice, rec.Params)
	if _, err := e.gw.PlaceOrder(ctx, gateway.OrderRequest{
		Pair:      rec.Pair,
		Direction: rec.Direction,
		Quantity:  rec.Quantity,
		TPPrice:   tp,
		SLPrice:   sl,
	}); err != nil {
		e.log.Warn().Err(err).Str("id", rec.ID).Msg("opening order failed")
	}
	e.supervise(ctx, rec)
}

func (e *Engine) supervise(ctx context.Context, rec trade.Record) {
	e.mu.Lock()
	manual := e.manual
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.sup.Run(ctx, rec, manual)
	}()
}

// resumeOpen re-attaches supervisors to records that were open at shutdown.
func (e *Engine) resumeOpen(ctx context.Context) {
	open, err := e.store.Query(ctx, store.Filter{State: trade.StateOpen})
	if err != nil {
		e.log.Error().Err(err).Msg("open record query failed, nothing resumed")
		return
	}
	e.state.Load(open)
	for _, rec := range open {
		metrics.OpenTrades.Inc()
		e.supervise(ctx, rec)
	}
	if len(open) > 0 {
		e.log.Info().Int("trades", len(open)).Msg("resumed supervision of open trades")
	}
}

// CloseAll asks every running supervisor to finish its trade as MANUAL.
// Trades admitted afterwards get a fresh broadcast channel.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	close(e.manual)
	e.manual = make(chan struct{})
	e.log.Info().Msg("manual close broadcast")
}

// PauseAdmission flips the global admission switch.
func (e *Engine) PauseAdmission(paused bool) {
	e.ctrl.SetPaused(paused)
}

// Wait blocks until every supervisor goroutine has finished.
func (e *Engine) Wait() { e.wg.Wait() }
