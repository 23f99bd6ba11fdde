// Package scan fans breakout detection out across a watchlist with a bounded
// worker pool and fans the resulting signals back in.
package scan

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbiswas01/haridas-crypto-app/internal/breakout"
	"github.com/hbiswas01/haridas-crypto-app/internal/cache"
	"github.com/hbiswas01/haridas-crypto-app/internal/decay"
	"github.com/hbiswas01/haridas-crypto-app/internal/market"
	"github.com/hbiswas01/haridas-crypto-app/internal/metrics"
)

// Sentiment restricts which signal directions a scan may emit.
type Sentiment string

const (
	SentimentBoth    Sentiment = "both"
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
)

// ParseSentiment maps a config string onto a Sentiment, defaulting to both.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentBullish:
		return SentimentBullish
	case SentimentBearish:
		return SentimentBearish
	default:
		return SentimentBoth
	}
}

// Config carries the scanner's tunable knobs.
type Config struct {
	Workers     int
	Timeframe   string
	CandleCount int
	TaskTimeout time.Duration
	BatchTTL    time.Duration
	Detector    breakout.Config
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 30
	}
	if c.Timeframe == "" {
		c.Timeframe = "60"
	}
	if c.CandleCount <= 0 {
		c.CandleCount = 120
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 10 * time.Second
	}
	return c
}

// Scanner evaluates the decay model and breakout detector per symbol over a
// bounded pool of workers. Per-symbol failures yield no signal and never
// abort the batch. Result order is completion order, not input order.
type Scanner struct {
	src     market.CandleSource
	cfg     Config
	log     zerolog.Logger
	batches *cache.TTL[[]breakout.Signal]
}

// New constructs a scanner over the supplied candle source.
func New(src market.CandleSource, cfg Config, log zerolog.Logger) *Scanner {
	cfg = cfg.withDefaults()
	return &Scanner{
		src:     src,
		cfg:     cfg,
		log:     log,
		batches: cache.NewTTL[[]breakout.Signal](cfg.BatchTTL),
	}
}

// Scan evaluates every watchlist symbol and returns the emitted signals.
// A recently computed batch for the same (watchlist, sentiment) pair is
// returned verbatim from cache without re-scanning.
func (s *Scanner) Scan(ctx context.Context, watchlist []string, sentiment Sentiment) []breakout.Signal {
	if len(watchlist) == 0 {
		return nil
	}
	key := batchKey(watchlist, sentiment)
	if batch, ok := s.batches.Get(key); ok {
		metrics.ScanCacheHitsTotal.Inc()
		return batch
	}
	metrics.ScansTotal.Inc()

	jobs := make(chan string)
	out := make(chan breakout.Signal, len(watchlist))

	workers := s.cfg.Workers
	if workers > len(watchlist) {
		workers = len(watchlist)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if sig := s.evaluate(ctx, symbol, sentiment); sig != nil {
					out <- *sig
				}
			}
		}()
	}

	for _, symbol := range watchlist {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	signals := make([]breakout.Signal, 0, len(watchlist))
	for sig := range out {
		signals = append(signals, sig)
	}
	s.batches.Set(key, signals)
	return signals
}

// evaluate runs one symbol through the decay model and detector. Any failure
// is isolated: the symbol is skipped for this cycle.
func (s *Scanner) evaluate(ctx context.Context, symbol string, sentiment Sentiment) *breakout.Signal {
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	series, err := s.src.Candles(taskCtx, symbol, s.cfg.Timeframe, s.cfg.CandleCount)
	if err != nil {
		metrics.ScanErrorsTotal.WithLabelValues(symbol).Inc()
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("candle fetch failed, skipping symbol")
		return nil
	}

	m := decay.Evaluate(series)
	sig := breakout.Detect(series, m, s.cfg.Detector)
	if sig == nil {
		return nil
	}
	if sentiment == SentimentBullish && sig.Direction != breakout.Buy {
		return nil
	}
	if sentiment == SentimentBearish && sig.Direction != breakout.Short {
		return nil
	}
	metrics.SignalsTotal.WithLabelValues(symbol, string(sig.Direction)).Inc()
	s.log.Info().
		Str("symbol", symbol).
		Str("direction", string(sig.Direction)).
		Float64("entry", sig.Entry).
		Float64("stop", sig.StopLoss).
		Float64("target", sig.Target).
		Int("energy_pct", m.EnergyPct).
		Msg("signal")
	return sig
}

// batchKey identifies a scan by watchlist membership and sentiment; symbol
// order does not matter.
func batchKey(watchlist []string, sentiment Sentiment) string {
	sorted := append([]string(nil), watchlist...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + string(sentiment)
}
