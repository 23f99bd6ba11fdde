// Package market hosts connectors supplying candle history and live price
// snapshots to the analysis layers.
package market

import (
	"context"
	"errors"

	"github.com/hbiswas01/haridas-crypto-app/internal/candle"
)

// ErrUnavailable marks an expected, frequent condition: the upstream source
// could not supply data for a symbol this cycle. Callers skip the symbol and
// move on rather than aborting the batch.
var ErrUnavailable = errors.New("market data unavailable")

// Quote is a last-price snapshot with 24h change context.
type Quote struct {
	Last      float64
	ChangeAbs float64
	ChangePct float64
}

// CandleSource supplies ordered OHLCV history per (symbol, timeframe).
// Implementations return ErrUnavailable (possibly wrapped) when the symbol
// cannot be served right now.
type CandleSource interface {
	Candles(ctx context.Context, symbol, timeframe string, count int) (candle.Series, error)
}

// LivePriceSource supplies last-price snapshots per symbol.
type LivePriceSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}
