// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string
	LogLevel    string
}

// Market describes where candle history and live prices come from.
type Market struct {
	// Provider selects the data backend: "bybit" or "stub".
	Provider           string `yaml:"provider"`
	BaseURL            string `yaml:"base_url"`
	WSURL              string `yaml:"ws_url"`
	Timeframe          string `yaml:"timeframe"`
	CandleCount        int    `yaml:"candle_count"`
	CandleCacheTTLSecs int    `yaml:"candle_cache_ttl_secs"`
}

// Scan groups the watchlist scanner knobs.
type Scan struct {
	Watchlist         []string `yaml:"watchlist"`
	Workers           int      `yaml:"workers"`
	TaskTimeoutSecs   int      `yaml:"task_timeout_secs"`
	BatchCacheTTLSecs int      `yaml:"batch_cache_ttl_secs"`
	IntervalSecs      int      `yaml:"interval_secs"`
	Sentiment         string   `yaml:"sentiment"`
}

// Signal holds the breakout detector parameters.
type Signal struct {
	MinEnergyPct    int     `yaml:"min_energy_pct"`
	ChannelLookback int     `yaml:"channel_lookback"`
	StopLookback    int     `yaml:"stop_lookback"`
	RewardRisk      float64 `yaml:"reward_risk"`
}

// Ledger configures trade state persistence.
type Ledger struct {
	StoreDir string `yaml:"store_dir"`
}

// Risk encodes position sizing inputs and notional guard-rails.
type Risk struct {
	EquityUSD           float64 `yaml:"equity_usd"`
	RiskFraction        float64 `yaml:"risk_fraction"`
	LotStep             float64 `yaml:"lot_step"`
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App    App    `yaml:"app"`
	Market Market `yaml:"market"`
	Scan   Scan   `yaml:"scan"`
	Signal Signal `yaml:"signal"`
	Ledger Ledger `yaml:"ledger"`
	Risk   Risk   `yaml:"risk"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
