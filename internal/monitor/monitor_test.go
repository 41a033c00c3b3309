package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/gateway"
	"quantbot-go/internal/notify"
	"quantbot-go/internal/store"
	"quantbot-go/internal/trade"
)

func testMonitorConfig() config.Monitor {
	return config.Monitor{
		PollIntervalMS:     5,
		PriceRetryAttempts: 3,
		PriceRetryDelayMS:  1,
		TimeoutSecs:        map[string]int{"1h": 30},
	}
}

func openTrade(dir trade.Direction) trade.Record {
	return trade.Open("t1", trade.Candidate{
		Pair:       "XYZUSDT",
		Direction:  dir,
		Timeframe:  trade.TF1h,
		Strategy:   "swing",
		EntryPrice: 100,
		Quantity:   1,
		Quality:    0.5,
		Params:     trade.Params{TPPercent: 2, SLPercent: 1, Leverage: 10},
	}, time.Now())
}

type captureSink struct {
	severities []notify.Severity
	messages   []string
}

func (c *captureSink) Notify(_ context.Context, sev notify.Severity, msg string) {
	c.severities = append(c.severities, sev)
	c.messages = append(c.messages, msg)
}

type fixture struct {
	sup      *Supervisor
	stub     *gateway.Stub
	mem      *store.Memory
	sink     *captureSink
	released []string
}

func newFixture(cfg config.Monitor) *fixture {
	f := &fixture{stub: gateway.NewStub(), mem: store.NewMemory(nil), sink: &captureSink{}}
	f.sup = New(zerolog.Nop(), cfg, f.stub, f.mem, f.sink, func(id string) {
		f.released = append(f.released, id)
	})
	return f
}

func (f *fixture) run(t *testing.T, rec trade.Record, manual <-chan struct{}) trade.Record {
	t.Helper()
	ctx := context.Background()
	if err := f.mem.AppendSignal(ctx, rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := f.sup.Run(ctx, rec, manual); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	recs, _ := f.mem.Query(ctx, store.Filter{State: trade.StateClosed})
	if len(recs) != 1 {
		t.Fatalf("expected 1 closed record, got %d", len(recs))
	}
	return recs[0]
}

func TestExitPrices(t *testing.T) {
	p := trade.Params{TPPercent: 2, SLPercent: 1}
	tp, sl := ExitPrices(trade.Long, 100, p)
	if tp != 102 || sl != 99 {
		t.Fatalf("long exits wrong: tp=%v sl=%v", tp, sl)
	}
	tp, sl = ExitPrices(trade.Short, 100, p)
	if tp != 98 || sl != 101 {
		t.Fatalf("short exits wrong: tp=%v sl=%v", tp, sl)
	}
}

func TestPnLPercent(t *testing.T) {
	if got := PnLPercent(trade.Long, 100, 102, 10); got != 20 {
		t.Fatalf("long pnl = %v, want 20", got)
	}
	if got := PnLPercent(trade.Short, 100, 102, 10); got != -20 {
		t.Fatalf("short pnl = %v, want -20", got)
	}
	if got := PnLPercent(trade.Long, 100, 99, 0); got != -1 {
		t.Fatalf("zero leverage should behave as 1x, got %v", got)
	}
}

func TestLongTakeProfit(t *testing.T) {
	f := newFixture(testMonitorConfig())
	f.stub.ScriptPrices("XYZUSDT", 100.5, 101, 102.5)

	rec := f.run(t, openTrade(trade.Long), make(chan struct{}))
	if rec.Result != trade.ResultTP || rec.PnLPercent != 20 {
		t.Fatalf("want TP at +20, got %s %v", rec.Result, rec.PnLPercent)
	}
	if len(f.released) != 1 || f.released[0] != "t1" {
		t.Fatalf("capacity not released: %v", f.released)
	}
	if f.stub.Orders() != 1 {
		t.Fatalf("closing order not placed")
	}
}

func TestLongStopLossTriggersLossAlert(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.LossAlertPercent = 5
	f := newFixture(cfg)
	f.stub.ScriptPrices("XYZUSDT", 100, 99.5, 98.9)

	rec := f.run(t, openTrade(trade.Long), make(chan struct{}))
	if rec.Result != trade.ResultSL || rec.PnLPercent != -10 {
		t.Fatalf("want SL at -10, got %s %v", rec.Result, rec.PnLPercent)
	}

	var sawWarning, sawCritical bool
	for _, sev := range f.sink.severities {
		switch sev {
		case notify.Warning:
			sawWarning = true
		case notify.Critical:
			sawCritical = true
		}
	}
	if !sawWarning || !sawCritical {
		t.Fatalf("expected stop-loss warning and loss alert, got %v", f.sink.severities)
	}
}

func TestShortTakeProfit(t *testing.T) {
	f := newFixture(testMonitorConfig())
	f.stub.ScriptPrices("XYZUSDT", 99, 97.9)

	rec := f.run(t, openTrade(trade.Short), make(chan struct{}))
	if rec.Result != trade.ResultTP || rec.PnLPercent != 20 {
		t.Fatalf("want short TP at +20, got %s %v", rec.Result, rec.PnLPercent)
	}
}

func TestTimeoutClosesFlat(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.TimeoutSecs = map[string]int{"1h": 1}
	f := newFixture(cfg)
	f.stub.ScriptPrices("XYZUSDT", 100.5)

	rec := f.run(t, openTrade(trade.Long), make(chan struct{}))
	if rec.Result != trade.ResultTimeout || rec.PnLPercent != 0 {
		t.Fatalf("want TIMEOUT at 0, got %s %v", rec.Result, rec.PnLPercent)
	}
}

func TestGatewayDownWholeWindowTimesOut(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.TimeoutSecs = map[string]int{"1h": 1}
	f := newFixture(cfg)
	f.stub.FailNextPriceReads("XYZUSDT", 100000)

	rec := f.run(t, openTrade(trade.Long), make(chan struct{}))
	if rec.Result != trade.ResultTimeout || rec.PnLPercent != 0 {
		t.Fatalf("want TIMEOUT at 0, got %s %v", rec.Result, rec.PnLPercent)
	}
	if rec.ExitPrice != 100 {
		t.Fatalf("exit should fall back to entry price, got %v", rec.ExitPrice)
	}
}

func TestTransientFailuresRetriedWithinPoll(t *testing.T) {
	f := newFixture(testMonitorConfig())
	f.stub.FailNextPriceReads("XYZUSDT", 2)
	f.stub.ScriptPrices("XYZUSDT", 102.5)

	rec := f.run(t, openTrade(trade.Long), make(chan struct{}))
	if rec.Result != trade.ResultTP {
		t.Fatalf("retries within a poll should recover, got %s", rec.Result)
	}
}

func TestManualCloseWins(t *testing.T) {
	f := newFixture(testMonitorConfig())
	f.stub.ScriptPrices("XYZUSDT", 100.5)

	manual := make(chan struct{})
	close(manual)
	rec := f.run(t, openTrade(trade.Long), manual)
	if rec.Result != trade.ResultManual {
		t.Fatalf("want MANUAL, got %s", rec.Result)
	}
}

func TestShutdownLeavesTradeOpen(t *testing.T) {
	f := newFixture(testMonitorConfig())
	rec := openTrade(trade.Long)
	_ = f.mem.AppendSignal(context.Background(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.sup.Run(ctx, rec, make(chan struct{})); err == nil {
		t.Fatalf("cancelled context should surface an error")
	}
	open, _ := f.mem.Query(context.Background(), store.Filter{State: trade.StateOpen})
	if len(open) != 1 {
		t.Fatalf("shutdown must not close the trade")
	}
}
