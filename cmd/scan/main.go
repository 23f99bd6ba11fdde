// Command scan runs a single watchlist pass and prints any signals as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hbiswas01/haridas-crypto-app/internal/breakout"
	"github.com/hbiswas01/haridas-crypto-app/internal/config"
	"github.com/hbiswas01/haridas-crypto-app/internal/market"
	"github.com/hbiswas01/haridas-crypto-app/internal/scan"
	"github.com/hbiswas01/haridas-crypto-app/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	symbols := flag.String("symbols", "", "comma-separated watchlist override")
	sentiment := flag.String("sentiment", "", "both, bullish, or bearish")
	flag.Parse()

	log := util.NewConsoleLogger("info")
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
	}

	watchlist := cfg.Scan.Watchlist
	if *symbols != "" {
		watchlist = strings.Split(*symbols, ",")
		for i := range watchlist {
			watchlist[i] = strings.ToUpper(strings.TrimSpace(watchlist[i]))
		}
	}
	mood := scan.ParseSentiment(cfg.Scan.Sentiment)
	if *sentiment != "" {
		mood = scan.ParseSentiment(*sentiment)
	}

	var src market.CandleSource
	if cfg.Market.Provider == "stub" {
		src = market.NewStub()
	} else {
		src = market.NewBybit(util.Component(log, "bybit"),
			market.WithBaseURL(cfg.Market.BaseURL),
			market.WithCandleTTL(time.Duration(cfg.Market.CandleCacheTTLSecs)*time.Second),
		)
	}

	scanner := scan.New(src, scan.Config{
		Workers:     cfg.Scan.Workers,
		Timeframe:   cfg.Market.Timeframe,
		CandleCount: cfg.Market.CandleCount,
		TaskTimeout: time.Duration(cfg.Scan.TaskTimeoutSecs) * time.Second,
		Detector: breakout.Config{
			ChannelLookback: cfg.Signal.ChannelLookback,
			StopLookback:    cfg.Signal.StopLookback,
			MinEnergyPct:    cfg.Signal.MinEnergyPct,
			RewardRisk:      cfg.Signal.RewardRisk,
		},
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	signals := scanner.Scan(ctx, watchlist, mood)
	if len(signals) == 0 {
		log.Info().Int("symbols", len(watchlist)).Msg("no signals this pass")
		return
	}
	out, err := json.MarshalIndent(signals, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode signals")
	}
	fmt.Fprintln(os.Stdout, string(out))
}
