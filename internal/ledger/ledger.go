// Package ledger owns the simulated trade lifecycle: signals trigger entries
// against live prices, running trades close at stop or target, and the full
// state survives restarts through an opaque key-value store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbiswas01/haridas-crypto-app/internal/breakout"
	"github.com/hbiswas01/haridas-crypto-app/internal/market"
	"github.com/hbiswas01/haridas-crypto-app/internal/metrics"
)

// Status enumerates the trade lifecycle states.
type Status string

const (
	StatusRunning      Status = "RUNNING"
	StatusClosedSL     Status = "CLOSED_SL"
	StatusClosedTarget Status = "CLOSED_TARGET"
)

// Trade is a simulated position owned exclusively by the Ledger.
type Trade struct {
	Symbol    string             `json:"symbol"`
	Direction breakout.Direction `json:"direction"`
	Entry     float64            `json:"entry"`
	StopLoss  float64            `json:"stop_loss"`
	Target    float64            `json:"target"`
	Status    Status             `json:"status"`
	OpenedAt  time.Time          `json:"opened_at"`
	ClosedAt  time.Time          `json:"closed_at,omitempty"`
	ExitPrice float64            `json:"exit_price,omitempty"`
	PnlPct    float64            `json:"pnl_pct,omitempty"`
}

// State is a snapshot of the ledger for display and persistence.
type State struct {
	Active  []Trade `json:"active"`
	History []Trade `json:"history"`
}

// CycleResult reports the outcome of one Apply cycle.
type CycleResult struct {
	Active []Trade
	Closed []Trade
}

const storeKey = "trades"

// Ledger tracks at most one running trade per symbol plus an append-only
// closed history. All mutation happens inside one critical section per cycle.
type Ledger struct {
	mu      sync.Mutex
	active  map[string]Trade
	history []Trade
	store   Store
	log     zerolog.Logger
}

// New builds a ledger bound to the supplied store and restores any persisted
// state. A missing or corrupt store yields an empty ledger, never a failure.
func New(store Store, log zerolog.Logger) *Ledger {
	l := &Ledger{
		active: make(map[string]Trade),
		store:  store,
		log:    log,
	}
	l.load()
	return l
}

// Apply runs one evaluation cycle: it first settles running trades against
// live prices, then opens trades for signals whose entry condition is met.
// An unavailable or non-positive live price skips that symbol for the cycle.
func (l *Ledger) Apply(ctx context.Context, signals []breakout.Signal, prices market.LivePriceSource) CycleResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	mutated := false
	var closed []Trade

	for _, symbol := range l.sortedActiveSymbols() {
		trade := l.active[symbol]
		last, ok := l.livePrice(ctx, prices, symbol)
		if !ok {
			continue
		}
		if done, settled := settle(trade, last); done {
			l.history = append(l.history, settled)
			delete(l.active, symbol)
			closed = append(closed, settled)
			mutated = true
			metrics.TradesClosedTotal.WithLabelValues(symbol, string(settled.Status)).Inc()
			l.log.Info().
				Str("symbol", symbol).
				Str("status", string(settled.Status)).
				Float64("exit", settled.ExitPrice).
				Float64("pnl_pct", settled.PnlPct).
				Msg("trade closed")
		}
	}

	for _, sig := range signals {
		if _, exists := l.active[sig.Symbol]; exists {
			// At most one running trade per symbol.
			continue
		}
		last, ok := l.livePrice(ctx, prices, sig.Symbol)
		if !ok {
			continue
		}
		if !entryTriggered(sig, last) {
			continue
		}
		trade := Trade{
			Symbol:    sig.Symbol,
			Direction: sig.Direction,
			Entry:     sig.Entry,
			StopLoss:  sig.StopLoss,
			Target:    sig.Target,
			Status:    StatusRunning,
			OpenedAt:  time.Now().UTC(),
		}
		l.active[sig.Symbol] = trade
		mutated = true
		metrics.TradesOpenedTotal.WithLabelValues(sig.Symbol, string(sig.Direction)).Inc()
		l.log.Info().
			Str("symbol", sig.Symbol).
			Str("direction", string(sig.Direction)).
			Float64("entry", sig.Entry).
			Float64("stop", sig.StopLoss).
			Float64("target", sig.Target).
			Msg("trade opened")
	}

	if mutated {
		l.persistLocked()
	}
	return CycleResult{Active: l.activeSliceLocked(), Closed: closed}
}

// Snapshot returns copies of the active set and history for display.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := make([]Trade, len(l.history))
	copy(history, l.history)
	return State{Active: l.activeSliceLocked(), History: history}
}

// Persist writes the current state to the store immediately.
func (l *Ledger) Persist() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persistLocked()
}

func (l *Ledger) livePrice(ctx context.Context, prices market.LivePriceSource, symbol string) (float64, bool) {
	q, err := prices.Quote(ctx, symbol)
	if err != nil {
		l.log.Debug().Err(err).Str("symbol", symbol).Msg("live price unavailable, skipping symbol")
		return 0, false
	}
	if q.Last <= 0 {
		// A sentinel price is not a price event.
		return 0, false
	}
	return q.Last, true
}

// settle checks exit conditions for a running trade. The stop is evaluated
// before the target so a gap through both levels records the stop-out, not
// the favorable fill.
func settle(t Trade, last float64) (bool, Trade) {
	switch t.Direction {
	case breakout.Buy:
		if last <= t.StopLoss {
			return true, closeTrade(t, StatusClosedSL, t.StopLoss)
		}
		if last >= t.Target {
			return true, closeTrade(t, StatusClosedTarget, t.Target)
		}
	case breakout.Short:
		if last >= t.StopLoss {
			return true, closeTrade(t, StatusClosedSL, t.StopLoss)
		}
		if last <= t.Target {
			return true, closeTrade(t, StatusClosedTarget, t.Target)
		}
	}
	return false, t
}

func closeTrade(t Trade, status Status, exit float64) Trade {
	t.Status = status
	t.ExitPrice = exit
	t.ClosedAt = time.Now().UTC()
	if t.Entry != 0 {
		if t.Direction == breakout.Buy {
			t.PnlPct = (exit - t.Entry) / t.Entry * 100
		} else {
			t.PnlPct = (t.Entry - exit) / t.Entry * 100
		}
	}
	return t
}

func entryTriggered(sig breakout.Signal, last float64) bool {
	if sig.Direction == breakout.Buy {
		return last >= sig.Entry
	}
	return last <= sig.Entry
}

func (l *Ledger) sortedActiveSymbols() []string {
	symbols := make([]string, 0, len(l.active))
	for sym := range l.active {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

func (l *Ledger) activeSliceLocked() []Trade {
	out := make([]Trade, 0, len(l.active))
	for _, sym := range l.sortedActiveSymbols() {
		out = append(out, l.active[sym])
	}
	return out
}

type persistedState struct {
	Active  map[string]Trade `json:"active"`
	History []Trade          `json:"history"`
}

func (l *Ledger) load() {
	if l.store == nil {
		return
	}
	raw, err := l.store.Get(storeKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.log.Warn().Err(err).Msg("ledger store read failed, starting empty")
		}
		return
	}
	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil {
		l.log.Warn().Err(err).Msg("ledger store corrupt, starting empty")
		return
	}
	if state.Active != nil {
		l.active = state.Active
	}
	l.history = state.History
}

func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	raw, err := json.Marshal(persistedState{Active: l.active, History: l.history})
	if err != nil {
		l.log.Warn().Err(err).Msg("ledger state marshal failed")
		return
	}
	if err := l.store.Put(storeKey, raw); err != nil {
		// Keep operating in memory; persistence failure is a warning.
		l.log.Warn().Err(err).Msg("ledger store write failed")
	}
}
