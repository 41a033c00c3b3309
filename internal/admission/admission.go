// Package admission decides which scored candidates become open trades.
// Candidates compete through a quality-ordered queue against a global cap,
// a per-strategy cap, and a per-bucket cap, in that order.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/metrics"
	"quantbot-go/internal/store"
	"quantbot-go/internal/trade"
)

// Rejection reasons written to the ledger. Checks run in this order so a
// candidate blocked by several limits reports the broadest one.
const (
	ReasonInvalid       = "invalid candidate"
	ReasonGlobalLimit   = "global limit exceeded"
	ReasonStrategyLimit = "per-strategy limit exceeded"
	ReasonBucketLimit   = "bucket limit exceeded"
)

// Controller owns the pending and retry queues and the open-trade state.
type Controller struct {
	log    zerolog.Logger
	limits config.Limits
	store  store.Store
	state  *State
	spawn  func(trade.Record)
	now    func() time.Time

	mu      sync.Mutex
	pending *queue
	retry   *queue
	seq     uint64
	paused  bool
}

// New builds a controller. spawn is invoked once per admitted record, after
// the record is persisted and tracked; it may be nil in tests.
func New(log zerolog.Logger, limits config.Limits, st store.Store, state *State, spawn func(trade.Record)) *Controller {
	return &Controller{
		log:     log.With().Str("component", "admission").Logger(),
		limits:  limits,
		store:   st,
		state:   state,
		spawn:   spawn,
		now:     time.Now,
		pending: newQueue(0),
		retry:   newQueue(limits.RetryQueueSize),
	}
}

// Submit queues a candidate for the next admission cycle. Structurally
// invalid candidates are rejected immediately and never retried.
func (a *Controller) Submit(ctx context.Context, c trade.Candidate) error {
	if err := c.Validate(); err != nil {
		a.reject(ctx, c, ReasonInvalid)
		a.log.Warn().Err(err).Str("strategy", c.Strategy).Str("pair", c.Pair).Msg("invalid candidate rejected")
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.pending.push(queued{cand: c, seq: a.seq})
	return nil
}

// RunCycle drains the pending queue in quality order, then re-attempts
// previously blocked candidates. Returns the number of admitted trades.
// spawn runs after the controller lock is released, so a slow venue call
// there never stalls Submit or the pause switch.
func (a *Controller) RunCycle(ctx context.Context) int {
	admitted := a.drain(ctx)
	if a.spawn != nil {
		for _, rec := range admitted {
			a.spawn(rec)
		}
	}
	return len(admitted)
}

func (a *Controller) drain(ctx context.Context) []trade.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paused {
		return nil
	}

	var admitted []trade.Record
	for {
		item, ok := a.pending.pop()
		if !ok {
			break
		}
		if a.state.HasKey(item.cand.CombinationKey()) {
			a.log.Debug().Str("key", item.cand.CombinationKey()).Msg("duplicate combination dropped")
			continue
		}
		reason := a.check(item.cand)
		if reason == "" {
			if rec, ok := a.admit(ctx, item.cand); ok {
				admitted = append(admitted, rec)
			}
			continue
		}
		a.reject(ctx, item.cand, reason)
		if !a.retry.push(item) {
			a.log.Warn().Str("strategy", item.cand.Strategy).Msg("retry queue full, candidate dropped")
		}
	}

	// Retry pass. Once a strategy's best parked candidate is still blocked,
	// later candidates of that strategy stay parked so they cannot jump it.
	blocked := make(map[string]bool)
	var keep []queued
	for {
		item, ok := a.retry.pop()
		if !ok {
			break
		}
		if blocked[item.cand.Strategy] {
			keep = append(keep, item)
			continue
		}
		if a.state.HasKey(item.cand.CombinationKey()) {
			continue
		}
		if reason := a.check(item.cand); reason != "" {
			blocked[item.cand.Strategy] = true
			keep = append(keep, item)
			continue
		}
		if rec, ok := a.admit(ctx, item.cand); ok {
			admitted = append(admitted, rec)
		}
	}
	for _, item := range keep {
		a.retry.push(item)
	}
	return admitted
}

// check returns the first violated limit, or "" when the candidate fits.
func (a *Controller) check(c trade.Candidate) string {
	if a.state.GlobalOpen() >= a.limits.MaxGlobalOpen {
		return ReasonGlobalLimit
	}
	if a.state.StrategyOpen(c.Strategy) >= a.limits.MaxPerStrategy {
		return ReasonStrategyLimit
	}
	if a.state.BucketOpen(c.BucketKey()) >= a.limits.BucketLimit {
		return ReasonBucketLimit
	}
	return ""
}

func (a *Controller) admit(ctx context.Context, c trade.Candidate) (trade.Record, bool) {
	rec := trade.Open(uuid.NewString(), c, a.now())
	if err := a.store.AppendSignal(ctx, rec); err != nil {
		a.log.Error().Err(err).Str("strategy", c.Strategy).Msg("persist failed, candidate not admitted")
		return trade.Record{}, false
	}
	a.state.Track(rec)
	metrics.AdmittedTotal.WithLabelValues(rec.Strategy).Inc()
	metrics.OpenTrades.Inc()
	a.log.Info().
		Str("id", rec.ID).
		Str("pair", rec.Pair).
		Str("strategy", rec.Strategy).
		Str("direction", string(rec.Direction)).
		Float64("quality", rec.Quality).
		Msg("trade admitted")
	return rec, true
}

func (a *Controller) reject(ctx context.Context, c trade.Candidate, reason string) {
	metrics.RejectedTotal.WithLabelValues(c.Strategy, reason).Inc()
	rej := trade.Rejection{
		Timestamp:  a.now(),
		Strategy:   c.Strategy,
		Pair:       c.Pair,
		Timeframe:  c.Timeframe,
		Direction:  c.Direction,
		Score:      c.Quality,
		Indicators: append([]string(nil), c.Indicators...),
		Reason:     reason,
	}
	if err := a.store.AppendRejection(ctx, rej); err != nil {
		a.log.Error().Err(err).Msg("rejection ledger write failed")
	}
	a.log.Info().
		Str("pair", c.Pair).
		Str("strategy", c.Strategy).
		Str("reason", reason).
		Msg("candidate rejected")
}

// Release frees the capacity held by a closed trade.
func (a *Controller) Release(id string) {
	if a.state.Release(id) {
		metrics.OpenTrades.Dec()
	}
}

// SetPaused stops or resumes admission. Running monitors are unaffected.
func (a *Controller) SetPaused(paused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paused != paused {
		a.log.Info().Bool("paused", paused).Msg("admission pause switch")
	}
	a.paused = paused
}

func (a *Controller) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// PendingRetries reports how many blocked candidates are parked.
func (a *Controller) PendingRetries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retry.len()
}
