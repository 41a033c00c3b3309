// Package feedback closes the loop from trade outcomes back into admission
// thresholds and the confidence model.
package feedback

import (
	"context"

	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/metrics"
	"quantbot-go/internal/predictor"
	"quantbot-go/internal/store"
	"quantbot-go/internal/trade"
)

// Stats summarizes a strategy's closed history. Win rate is wins over all
// closed records, so timeouts and manual closes drag it down like the losses
// they effectively are.
type Stats struct {
	Closed  int
	Wins    int
	Losses  int
	WinRate float64
	AvgPnL  float64
}

// Collect aggregates closed records per strategy.
func Collect(records []trade.Record) map[string]Stats {
	out := make(map[string]Stats)
	for _, rec := range records {
		if rec.State != trade.StateClosed {
			continue
		}
		s := out[rec.Strategy]
		s.Closed++
		s.AvgPnL += rec.PnLPercent
		switch rec.Result {
		case trade.ResultTP:
			s.Wins++
		case trade.ResultSL:
			s.Losses++
		}
		out[rec.Strategy] = s
	}
	for strategy, s := range out {
		if s.Closed > 0 {
			s.AvgPnL /= float64(s.Closed)
		}
		if s.Closed > 0 {
			s.WinRate = float64(s.Wins) / float64(s.Closed) * 100
		}
		out[strategy] = s
	}
	return out
}

// Loop periodically adjusts strategy thresholds from realized outcomes and
// retrains the confidence model.
type Loop struct {
	log      zerolog.Logger
	cfg      config.Feedback
	store    store.Store
	registry *config.Registry
	model    *predictor.Logit
}

func New(log zerolog.Logger, cfg config.Feedback, st store.Store, registry *config.Registry, model *predictor.Logit) *Loop {
	return &Loop{
		log:      log.With().Str("component", "feedback").Logger(),
		cfg:      cfg,
		store:    st,
		registry: registry,
		model:    model,
	}
}

// Run executes one feedback pass: threshold adjustment then retraining.
func (l *Loop) Run(ctx context.Context) error {
	closed, err := l.store.Query(ctx, store.Filter{State: trade.StateClosed})
	if err != nil {
		return err
	}
	l.adjustThresholds(Collect(closed))
	l.retrain(closed)
	return nil
}

// adjustThresholds applies the bang-bang rule: a low win rate raises the
// score floor, a high one lowers it, both clamped to [Floor, Ceiling].
func (l *Loop) adjustThresholds(stats map[string]Stats) {
	changed := false
	for name, strategy := range l.registry.All() {
		s, ok := stats[name]
		if !ok || s.Closed == 0 || s.Closed < l.cfg.MinClosedTrades {
			continue
		}
		current := strategy.Adaptive.ScoreMin
		next := current
		direction := ""
		switch {
		case s.WinRate < l.cfg.LowWinRate:
			next = current + l.cfg.RaiseStep
			if next > l.cfg.Ceiling {
				next = l.cfg.Ceiling
			}
			direction = "raise"
		case s.WinRate > l.cfg.HighWinRate:
			next = current - l.cfg.LowerStep
			if next < l.cfg.Floor {
				next = l.cfg.Floor
			}
			direction = "lower"
		}
		if next == current {
			continue
		}
		l.registry.SetScoreMin(name, next)
		metrics.ThresholdAdjustments.WithLabelValues(name, direction).Inc()
		changed = true
		l.log.Info().
			Str("strategy", name).
			Float64("win_rate", s.WinRate).
			Float64("from", current).
			Float64("to", next).
			Msg("score threshold adjusted")
	}
	if changed {
		if err := l.registry.Save(); err != nil {
			l.log.Error().Err(err).Msg("strategy save failed")
		}
	}
}

// retrain fits the confidence model on decisive outcomes that captured a
// full feature vector at signal time.
func (l *Loop) retrain(closed []trade.Record) {
	var feats [][]float64
	var labels []float64
	for _, rec := range closed {
		if len(rec.Features) != predictor.FeatureDim {
			continue
		}
		switch rec.Result {
		case trade.ResultTP:
			feats = append(feats, rec.Features)
			labels = append(labels, 1)
		case trade.ResultSL:
			feats = append(feats, rec.Features)
			labels = append(labels, 0)
		}
	}
	if len(feats) < 2 {
		return
	}
	l.model.Train(feats, labels)
	m := l.model.Metrics()
	l.log.Info().
		Float64("accuracy", m["accuracy"]).
		Float64("samples", m["samples"]).
		Msg("confidence model retrained")
}
