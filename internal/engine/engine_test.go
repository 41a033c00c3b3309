package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/gateway"
	"quantbot-go/internal/indicator"
	"quantbot-go/internal/predictor"
	"quantbot-go/internal/store"
	"quantbot-go/internal/trade"
)

func testEngineConfig() *config.Config {
	return &config.Config{
		Engine:  config.Engine{CycleSecs: 1, BarsPerFetch: 120, QuantityUSD: 100},
		Gateway: config.Gateway{Pairs: []string{"XYZUSDT"}, RetryAttempts: 2, RetryDelayMS: 1},
		Limits:  config.Limits{MaxGlobalOpen: 10, MaxPerStrategy: 5, BucketLimit: 1, RetryQueueSize: 8},
		Monitor: config.Monitor{
			PollIntervalMS:     5,
			PriceRetryAttempts: 2,
			PriceRetryDelayMS:  1,
			TimeoutSecs:        map[string]int{"1h": 30},
		},
	}
}

func testRegistry() *config.Registry {
	return config.NewRegistryFromMap(map[string]config.Strategy{
		"swing": {
			Timeframes: []trade.Timeframe{trade.TF1h},
			Indicators: []string{"Swing"},
			TPPercent:  2,
			SLPercent:  1,
			Leverage:   10,
			Adaptive:   config.Adaptive{ScoreMin: 0.3},
		},
	})
}

// risingBars trend upward so the rolling-mean indicator votes long.
func risingBars(n int) []indicator.Bar {
	bars := make([]indicator.Bar, n)
	for i := range bars {
		price := 90 + 0.1*float64(i)
		bars[i] = indicator.Bar{OpenTime: int64(i), Open: price, High: price, Low: price, Close: price, Volume: 10}
	}
	return bars
}

type env struct {
	eng  *Engine
	stub *gateway.Stub
	mem  *store.Memory
}

func newEnv(enabled map[string]bool) *env {
	stub := gateway.NewStub()
	stub.SetBars("XYZUSDT", risingBars(120))
	stub.ScriptPrices("XYZUSDT", 100.5)
	mem := store.NewMemory(nil)
	eng := New(zerolog.Nop(), testEngineConfig(), testRegistry(), stub, mem, predictor.NewLogit(), nil, enabled)
	return &env{eng: eng, stub: stub, mem: mem}
}

func (v *env) waitClosed(t *testing.T) trade.Record {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		recs, _ := v.mem.Query(context.Background(), store.Filter{State: trade.StateClosed})
		if len(recs) > 0 {
			return recs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no record closed in time")
	return trade.Record{}
}

func TestCycleAdmitsAndSupervisesToTakeProfit(t *testing.T) {
	v := newEnv(nil)
	ctx := context.Background()

	v.eng.Cycle(ctx)
	open, _ := v.mem.Query(ctx, store.Filter{State: trade.StateOpen})
	if len(open) != 1 {
		t.Fatalf("expected 1 admitted trade, got %d", len(open))
	}
	rec := open[0]
	if rec.Direction != trade.Long || rec.Strategy != "swing" || rec.EntryPrice != 100.5 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Quantity == 0 || rec.Params.TPPercent != 2 {
		t.Fatalf("sizing or params missing: %+v", rec)
	}

	// Push the price through take-profit and let the supervisor finish.
	v.stub.ScriptPrices("XYZUSDT", 103)
	closed := v.waitClosed(t)
	if closed.Result != trade.ResultTP || closed.PnLPercent != 20 {
		t.Fatalf("want TP at +20, got %s %v", closed.Result, closed.PnLPercent)
	}
	if v.stub.Orders() != 2 {
		t.Fatalf("expected opening and closing orders, got %d", v.stub.Orders())
	}
}

func TestDuplicateCombinationNotReadmitted(t *testing.T) {
	v := newEnv(nil)
	ctx := context.Background()

	v.eng.Cycle(ctx)
	v.eng.Cycle(ctx)
	open, _ := v.mem.Query(ctx, store.Filter{State: trade.StateOpen})
	if len(open) != 1 {
		t.Fatalf("duplicate combination was readmitted: %d open", len(open))
	}
}

func TestDisabledStrategyProducesNothing(t *testing.T) {
	v := newEnv(map[string]bool{"swing": false})
	v.eng.Cycle(context.Background())
	recs, _ := v.mem.Query(context.Background(), store.Filter{})
	if len(recs) != 0 {
		t.Fatalf("disabled strategy generated %d records", len(recs))
	}
}

func TestPersistedGlobalPauseHonoredAtStartup(t *testing.T) {
	v := newEnv(map[string]bool{config.GlobalPauseKey: false})
	v.eng.Cycle(context.Background())
	open, _ := v.mem.Query(context.Background(), store.Filter{State: trade.StateOpen})
	if len(open) != 0 {
		t.Fatalf("persisted pause ignored: %d open", len(open))
	}
}

func TestCloseAllFinishesTradesAsManual(t *testing.T) {
	v := newEnv(nil)
	v.eng.Cycle(context.Background())

	v.eng.CloseAll()
	closed := v.waitClosed(t)
	if closed.Result != trade.ResultManual {
		t.Fatalf("want MANUAL, got %s", closed.Result)
	}
}

func TestPauseStopsAdmission(t *testing.T) {
	v := newEnv(nil)
	ctx := context.Background()

	v.eng.PauseAdmission(true)
	v.eng.Cycle(ctx)
	open, _ := v.mem.Query(ctx, store.Filter{State: trade.StateOpen})
	if len(open) != 0 {
		t.Fatalf("paused engine admitted %d trades", len(open))
	}

	v.eng.PauseAdmission(false)
	v.eng.Cycle(ctx)
	open, _ = v.mem.Query(ctx, store.Filter{State: trade.StateOpen})
	if len(open) != 1 {
		t.Fatalf("resume should admit the queued candidate, got %d", len(open))
	}
}

// A record left open by a previous run must count against limits after
// restart, so the same combination is not opened twice.
func TestRunResumesOpenRecords(t *testing.T) {
	v := newEnv(nil)
	ctx := context.Background()

	prior := trade.Open("prior", trade.Candidate{
		Pair:       "XYZUSDT",
		Direction:  trade.Long,
		Timeframe:  trade.TF1h,
		Strategy:   "swing",
		Indicators: []string{"Swing"},
		EntryPrice: 100.5,
		Quantity:   1,
		Quality:    0.5,
		Params:     trade.Params{TPPercent: 2, SLPercent: 1, Leverage: 10},
	}, time.Now())
	if err := v.mem.AppendSignal(ctx, prior); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_ = v.eng.Run(runCtx)

	open, _ := v.mem.Query(ctx, store.Filter{State: trade.StateOpen})
	if len(open) != 1 {
		t.Fatalf("resumed state should block the duplicate, got %d open", len(open))
	}
}
