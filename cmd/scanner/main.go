package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hbiswas01/haridas-crypto-app/internal/breakout"
	"github.com/hbiswas01/haridas-crypto-app/internal/config"
	"github.com/hbiswas01/haridas-crypto-app/internal/ledger"
	"github.com/hbiswas01/haridas-crypto-app/internal/market"
	"github.com/hbiswas01/haridas-crypto-app/internal/metrics"
	"github.com/hbiswas01/haridas-crypto-app/internal/risk"
	"github.com/hbiswas01/haridas-crypto-app/internal/scan"
	"github.com/hbiswas01/haridas-crypto-app/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "internal/config/config.yaml"
	}

	log := util.NewLogger("info")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}
	log = util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		candles market.CandleSource
		prices  market.LivePriceSource
	)
	switch cfg.Market.Provider {
	case "stub":
		stub := market.NewStub()
		candles, prices = stub, stub
	default:
		rest := market.NewBybit(util.Component(log, "bybit"),
			market.WithBaseURL(cfg.Market.BaseURL),
			market.WithCandleTTL(time.Duration(cfg.Market.CandleCacheTTLSecs)*time.Second),
		)
		feed := market.NewLiveFeed(cfg.Scan.Watchlist, cfg.Market.WSURL, util.Component(log, "feed"))
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("live feed stopped")
			}
		}()
		candles, prices = rest, feed
	}

	store, err := ledger.NewFileStore(cfg.Ledger.StoreDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open ledger store")
	}
	book := ledger.New(store, util.Component(log, "ledger"))

	scanner := scan.New(candles, scan.Config{
		Workers:     cfg.Scan.Workers,
		Timeframe:   cfg.Market.Timeframe,
		CandleCount: cfg.Market.CandleCount,
		TaskTimeout: time.Duration(cfg.Scan.TaskTimeoutSecs) * time.Second,
		BatchTTL:    time.Duration(cfg.Scan.BatchCacheTTLSecs) * time.Second,
		Detector: breakout.Config{
			ChannelLookback: cfg.Signal.ChannelLookback,
			StopLookback:    cfg.Signal.StopLookback,
			MinEnergyPct:    cfg.Signal.MinEnergyPct,
			RewardRisk:      cfg.Signal.RewardRisk,
		},
	}, util.Component(log, "scan"))

	sentiment := scan.ParseSentiment(cfg.Scan.Sentiment)
	sizer := risk.Sizer{
		EquityUSD:    cfg.Risk.EquityUSD,
		RiskFraction: cfg.Risk.RiskFraction,
		LotStep:      cfg.Risk.LotStep,
	}
	limits := risk.Limits{MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade}

	interval := time.Duration(cfg.Scan.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Strs("watchlist", cfg.Scan.Watchlist).
		Str("sentiment", string(sentiment)).
		Dur("interval", interval).
		Msg("scanner started")

	for {
		cycle(ctx, scanner, book, prices, cfg.Scan.Watchlist, sentiment, sizer, limits, log)
		select {
		case <-ctx.Done():
			book.Persist()
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
		}
	}
}

// cycle runs one scan pass and feeds the surviving signals into the ledger.
func cycle(
	ctx context.Context,
	scanner *scan.Scanner,
	book *ledger.Ledger,
	prices market.LivePriceSource,
	watchlist []string,
	sentiment scan.Sentiment,
	sizer risk.Sizer,
	limits risk.Limits,
	log zerolog.Logger,
) {
	signals := scanner.Scan(ctx, watchlist, sentiment)

	// The scanner may serve this slice from cache again; never filter it
	// in place.
	kept := make([]breakout.Signal, 0, len(signals))
	for _, sig := range signals {
		qty := sizer.Quantity(sig.Entry, sig.StopLoss)
		notional := risk.Notional(sig.Entry, qty)
		if !limits.Allow(notional) {
			log.Warn().
				Str("symbol", sig.Symbol).
				Float64("notional", notional).
				Msg("signal exceeds notional cap, dropping")
			continue
		}
		log.Debug().
			Str("symbol", sig.Symbol).
			Float64("qty", qty).
			Float64("notional", notional).
			Msg("sized signal")
		kept = append(kept, sig)
	}

	res := book.Apply(ctx, kept, prices)
	log.Info().
		Int("signals", len(kept)).
		Int("active", len(res.Active)).
		Int("closed", len(res.Closed)).
		Msg("cycle complete")
}
