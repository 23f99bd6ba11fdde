// Package breakout combines Donchian channel geometry with decay-model energy
// to emit directional trade signals with stop-loss and target.
package breakout

import (
	"time"

	"github.com/hbiswas01/haridas-crypto-app/internal/candle"
	"github.com/hbiswas01/haridas-crypto-app/internal/decay"
)

// Direction enumerates the two signal sides.
type Direction string

const (
	Buy   Direction = "BUY"
	Short Direction = "SHORT"
)

// Signal expresses a directional trade setup. Immutable once created; the
// target always sits at the configured reward:risk multiple from entry.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	Target      float64   `json:"target"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Config holds the tunable knobs of the detector.
type Config struct {
	// ChannelLookback is the Donchian window for entry levels.
	ChannelLookback int
	// StopLookback is the shorter window used for stop placement.
	StopLookback int
	// MinEnergyPct gates emission on decay-model energy; zero or negative
	// disables the gate.
	MinEnergyPct int
	// RewardRisk is the target distance as a multiple of risk.
	RewardRisk float64
}

// DefaultConfig mirrors the production parameters: 20/10 channels, energy
// gate at 30, 1:3 reward to risk.
func DefaultConfig() Config {
	return Config{ChannelLookback: 20, StopLookback: 10, MinEnergyPct: 30, RewardRisk: 3}
}

func (c Config) withDefaults() Config {
	if c.ChannelLookback <= 0 {
		c.ChannelLookback = 20
	}
	if c.StopLookback <= 0 {
		c.StopLookback = 10
	}
	if c.RewardRisk <= 0 {
		c.RewardRisk = 3
	}
	return c
}

// Detect evaluates one series against its decay metrics and returns at most
// one signal. Channels are evaluated one bar behind the current bar so a
// candle never breaks out of a channel it helped build; that makes the
// effective history requirement lookback+1 bars, below which Detect reports
// no signal rather than computing on a short window.
//
// BUY is evaluated before SHORT and wins should degenerate channel data ever
// set both conditions at once.
func Detect(series candle.Series, m decay.Metrics, cfg Config) *Signal {
	cfg = cfg.withDefaults()
	bars := series.Candles
	n := len(bars)
	if n < cfg.ChannelLookback+1 || n < cfg.StopLookback+1 {
		return nil
	}

	channel := bars[n-1-cfg.ChannelLookback : n-1]
	upper := candle.HighestHigh(channel)
	lower := candle.LowestLow(channel)

	stops := bars[n-1-cfg.StopLookback : n-1]
	slLong := candle.LowestLow(stops)
	slShort := candle.HighestHigh(stops)

	if cfg.MinEnergyPct > 0 && m.EnergyPct <= cfg.MinEnergyPct {
		return nil
	}

	current := bars[n-1]
	generatedAt := current.Ts

	switch {
	case current.High >= upper && m.Phase == decay.Bull:
		return build(series.Symbol, Buy, upper, slLong, cfg.RewardRisk, generatedAt)
	case current.Low <= lower && m.Phase == decay.Bear:
		return build(series.Symbol, Short, lower, slShort, cfg.RewardRisk, generatedAt)
	}
	return nil
}

func build(symbol string, dir Direction, entry, stop, rewardRisk float64, at time.Time) *Signal {
	risk := entry - stop
	if dir == Short {
		risk = stop - entry
	}
	if risk <= 0 {
		// A zero-risk signal is meaningless; drop it.
		return nil
	}
	target := entry + rewardRisk*risk
	if dir == Short {
		target = entry - rewardRisk*risk
	}
	return &Signal{
		Symbol:      symbol,
		Direction:   dir,
		Entry:       entry,
		StopLoss:    stop,
		Target:      target,
		GeneratedAt: at,
	}
}
