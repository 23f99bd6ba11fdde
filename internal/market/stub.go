package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hbiswas01/haridas-crypto-app/internal/candle"
)

// Stub emits deterministic synthetic candles and quotes, useful for tests and
// offline work. Each symbol gets a ranging series capped by a bullish breakout
// bar so downstream detection has something to find.
type Stub struct {
	mu     sync.Mutex
	quotes map[string]Quote
}

// NewStub builds an empty stub source.
func NewStub() *Stub {
	return &Stub{quotes: make(map[string]Quote)}
}

func stubBasePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 50 + float64(h.Sum32()%1000)
}

// Candles generates count synthetic hourly bars ending now.
func (s *Stub) Candles(_ context.Context, symbol, timeframe string, count int) (candle.Series, error) {
	if count <= 0 {
		count = 120
	}
	base := stubBasePrice(symbol)
	start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(count) * time.Hour)

	bars := make([]candle.Candle, count)
	for i := range bars {
		open, close := base, base*1.001
		if i%2 == 1 {
			open, close = base*1.001, base
		}
		bars[i] = candle.Candle{
			Open: open, High: base * 1.005, Low: base * 0.995,
			Close: close, Volume: 1000,
			Ts: start.Add(time.Duration(i) * time.Hour),
		}
	}
	// Final bar breaks the range with conviction.
	last := &bars[count-1]
	last.Open = base
	last.Close = base * 1.04
	last.High = base * 1.045
	last.Low = base * 0.999
	last.Volume = 5000

	return candle.Series{Symbol: symbol, Timeframe: timeframe, Candles: bars}, nil
}

// Quote returns the configured quote, or a synthetic one just above the
// breakout level so entries trigger.
func (s *Stub) Quote(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	q, ok := s.quotes[symbol]
	s.mu.Unlock()
	if ok {
		if q.Last <= 0 {
			return Quote{}, fmt.Errorf("%w: stub quote for %s", ErrUnavailable, symbol)
		}
		return q, nil
	}
	base := stubBasePrice(symbol)
	return Quote{Last: base * 1.04}, nil
}

// SetQuote scripts the next quote for symbol; a non-positive last price makes
// the symbol read as unavailable.
func (s *Stub) SetQuote(symbol string, q Quote) {
	s.mu.Lock()
	s.quotes[symbol] = q
	s.mu.Unlock()
}
