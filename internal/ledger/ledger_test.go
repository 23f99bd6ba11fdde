package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hbiswas01/haridas-crypto-app/internal/breakout"
	"github.com/hbiswas01/haridas-crypto-app/internal/market"
)

// fakePrices serves scripted last prices; missing symbols are unavailable.
type fakePrices struct {
	last map[string]float64
}

func (f fakePrices) Quote(_ context.Context, symbol string) (market.Quote, error) {
	px, ok := f.last[symbol]
	if !ok {
		return market.Quote{}, fmt.Errorf("%w: %s", market.ErrUnavailable, symbol)
	}
	return market.Quote{Last: px}, nil
}

func buySignal(symbol string) breakout.Signal {
	return breakout.Signal{Symbol: symbol, Direction: breakout.Buy, Entry: 100, StopLoss: 95, Target: 115}
}

func newTestLedger() *Ledger {
	return New(nil, zerolog.Nop())
}

func TestApplyOpensOnEntryTrigger(t *testing.T) {
	l := newTestLedger()
	res := l.Apply(context.Background(), []breakout.Signal{buySignal("BTCUSDT")}, fakePrices{last: map[string]float64{"BTCUSDT": 101}})
	if len(res.Active) != 1 {
		t.Fatalf("expected 1 active trade, got %d", len(res.Active))
	}
	tr := res.Active[0]
	if tr.Status != StatusRunning || tr.Entry != 100 || tr.StopLoss != 95 || tr.Target != 115 {
		t.Fatalf("unexpected opened trade: %+v", tr)
	}
	if tr.OpenedAt.IsZero() {
		t.Fatalf("expected OpenedAt to be set")
	}
}

func TestApplyIgnoresUntriggeredSignal(t *testing.T) {
	l := newTestLedger()
	res := l.Apply(context.Background(), []breakout.Signal{buySignal("BTCUSDT")}, fakePrices{last: map[string]float64{"BTCUSDT": 99}})
	if len(res.Active) != 0 {
		t.Fatalf("expected no trade below entry, got %+v", res.Active)
	}
}

func TestApplyClosesAtStopLoss(t *testing.T) {
	l := newTestLedger()
	prices := fakePrices{last: map[string]float64{"BTCUSDT": 101}}
	l.Apply(context.Background(), []breakout.Signal{buySignal("BTCUSDT")}, prices)

	prices.last["BTCUSDT"] = 94
	res := l.Apply(context.Background(), nil, prices)
	if len(res.Closed) != 1 {
		t.Fatalf("expected 1 closed trade, got %d", len(res.Closed))
	}
	tr := res.Closed[0]
	if tr.Status != StatusClosedSL {
		t.Fatalf("expected CLOSED_SL, got %s", tr.Status)
	}
	if tr.ExitPrice != 95 {
		t.Fatalf("expected exit at the stop level 95, got %.2f", tr.ExitPrice)
	}
	if tr.PnlPct != -5.0 {
		t.Fatalf("expected pnl -5.0, got %.4f", tr.PnlPct)
	}
	if len(res.Active) != 0 {
		t.Fatalf("expected active set emptied, got %+v", res.Active)
	}
	snap := l.Snapshot()
	if len(snap.History) != 1 || snap.History[0].Status != StatusClosedSL {
		t.Fatalf("expected closed trade in history, got %+v", snap.History)
	}
}

func TestApplyClosesAtTarget(t *testing.T) {
	l := newTestLedger()
	prices := fakePrices{last: map[string]float64{"BTCUSDT": 101}}
	l.Apply(context.Background(), []breakout.Signal{buySignal("BTCUSDT")}, prices)

	prices.last["BTCUSDT"] = 116
	res := l.Apply(context.Background(), nil, prices)
	if len(res.Closed) != 1 {
		t.Fatalf("expected 1 closed trade, got %d", len(res.Closed))
	}
	tr := res.Closed[0]
	if tr.Status != StatusClosedTarget {
		t.Fatalf("expected CLOSED_TARGET, got %s", tr.Status)
	}
	if tr.ExitPrice != 115 {
		t.Fatalf("expected exit at the target level 115, got %.2f", tr.ExitPrice)
	}
	if tr.PnlPct != 15.0 {
		t.Fatalf("expected pnl +15.0, got %.4f", tr.PnlPct)
	}
}

func TestApplyShortLifecycle(t *testing.T) {
	l := newTestLedger()
	sig := breakout.Signal{Symbol: "ETHUSDT", Direction: breakout.Short, Entry: 100, StopLoss: 105, Target: 85}
	prices := fakePrices{last: map[string]float64{"ETHUSDT": 100}}
	res := l.Apply(context.Background(), []breakout.Signal{sig}, prices)
	if len(res.Active) != 1 {
		t.Fatalf("expected short to open at entry, got %+v", res.Active)
	}

	prices.last["ETHUSDT"] = 84
	res = l.Apply(context.Background(), nil, prices)
	if len(res.Closed) != 1 || res.Closed[0].Status != StatusClosedTarget {
		t.Fatalf("expected short target close, got %+v", res.Closed)
	}
	if res.Closed[0].PnlPct != 15.0 {
		t.Fatalf("expected short pnl +15.0 from target level, got %.4f", res.Closed[0].PnlPct)
	}
}

func TestApplyStopBeatsTargetOnGap(t *testing.T) {
	// A degenerate setup where one tick satisfies both exits must settle as
	// a stop-out, never the favorable fill.
	l := newTestLedger()
	sig := breakout.Signal{Symbol: "BTCUSDT", Direction: breakout.Buy, Entry: 100, StopLoss: 110, Target: 105}
	prices := fakePrices{last: map[string]float64{"BTCUSDT": 100}}
	l.Apply(context.Background(), []breakout.Signal{sig}, prices)

	prices.last["BTCUSDT"] = 107 // above target 105, below stop 110: both conditions hold
	res := l.Apply(context.Background(), nil, prices)
	if len(res.Closed) != 1 || res.Closed[0].Status != StatusClosedSL {
		t.Fatalf("expected SL to win the tie, got %+v", res.Closed)
	}
}

func TestApplyAtMostOneTradePerSymbol(t *testing.T) {
	l := newTestLedger()
	prices := fakePrices{last: map[string]float64{"BTCUSDT": 101}}
	sig := buySignal("BTCUSDT")
	l.Apply(context.Background(), []breakout.Signal{sig}, prices)
	res := l.Apply(context.Background(), []breakout.Signal{sig}, prices)
	if len(res.Active) != 1 {
		t.Fatalf("expected a single active trade after repeat signal, got %d", len(res.Active))
	}
	if len(l.Snapshot().History) != 0 {
		t.Fatalf("expected nothing closed, got %+v", l.Snapshot().History)
	}
}

func TestApplySkipsUnavailablePrice(t *testing.T) {
	l := newTestLedger()
	prices := fakePrices{last: map[string]float64{"BTCUSDT": 101}}
	l.Apply(context.Background(), []breakout.Signal{buySignal("BTCUSDT")}, prices)

	// Source goes dark: the running trade must not move.
	res := l.Apply(context.Background(), []breakout.Signal{buySignal("SOLUSDT")}, fakePrices{last: map[string]float64{}})
	if len(res.Active) != 1 || len(res.Closed) != 0 {
		t.Fatalf("expected untouched state on unavailable prices, got %+v", res)
	}

	// A zero last price is a sentinel, not a price event.
	res = l.Apply(context.Background(), nil, fakePrices{last: map[string]float64{"BTCUSDT": 0}})
	if len(res.Active) != 1 || len(res.Closed) != 0 {
		t.Fatalf("expected zero price to be ignored, got %+v", res)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	l := New(store, zerolog.Nop())
	prices := fakePrices{last: map[string]float64{"BTCUSDT": 101, "ETHUSDT": 101}}
	l.Apply(context.Background(), []breakout.Signal{buySignal("BTCUSDT"), buySignal("ETHUSDT")}, prices)
	prices.last["ETHUSDT"] = 94
	l.Apply(context.Background(), nil, prices)

	restored := New(store, zerolog.Nop())
	want, _ := json.Marshal(l.Snapshot())
	got, _ := json.Marshal(restored.Snapshot())
	if !bytes.Equal(want, got) {
		t.Fatalf("round-trip mismatch:\nwant %s\ngot  %s", want, got)
	}
	if len(restored.Snapshot().Active) != 1 || len(restored.Snapshot().History) != 1 {
		t.Fatalf("expected 1 active and 1 closed after restore, got %+v", restored.Snapshot())
	}
}

func TestLoadCorruptStoreYieldsEmptyLedger(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if err := store.Put("trades", []byte("{not json")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	l := New(store, zerolog.Nop())
	snap := l.Snapshot()
	if len(snap.Active) != 0 || len(snap.History) != 0 {
		t.Fatalf("expected empty ledger on corrupt store, got %+v", snap)
	}
}
