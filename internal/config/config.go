// Package config exposes strongly typed engine configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quantbot-go/internal/trade"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Gateway describes market data and execution venue connectivity.
type Gateway struct {
	Provider          string   `yaml:"provider"` // binance or stub
	BaseURL           string   `yaml:"base_url"`
	Pairs             []string `yaml:"pairs"`
	RetryAttempts     int      `yaml:"retry_attempts"`
	RetryDelayMS      int      `yaml:"retry_delay_ms"`
	DryRunFundingRate float64  `yaml:"dry_run_funding_rate"`
	LiveOrders        bool     `yaml:"live_orders"`
	StreamEnabled     bool     `yaml:"stream_enabled"`
}

// RetryDelay returns the configured delay as a duration.
func (g Gateway) RetryDelay() time.Duration {
	return time.Duration(g.RetryDelayMS) * time.Millisecond
}

// Limits are the admission concurrency caps.
type Limits struct {
	MaxGlobalOpen  int `yaml:"max_global_open"`
	MaxPerStrategy int `yaml:"max_per_strategy"`
	BucketLimit    int `yaml:"bucket_limit"`
	RetryQueueSize int `yaml:"retry_queue_size"`
}

// Monitor tunes the per-trade lifecycle supervisors.
type Monitor struct {
	PollIntervalMS     int            `yaml:"poll_interval_ms"`
	PriceRetryAttempts int            `yaml:"price_retry_attempts"`
	PriceRetryDelayMS  int            `yaml:"price_retry_delay_ms"`
	TimeoutSecs        map[string]int `yaml:"timeout_secs"`
	LossAlertPercent   float64        `yaml:"loss_alert_percent"`
}

// PollInterval returns the poll cadence as a duration.
func (m Monitor) PollInterval() time.Duration {
	if m.PollIntervalMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(m.PollIntervalMS) * time.Millisecond
}

// PriceRetryDelay returns the per-poll retry delay as a duration.
func (m Monitor) PriceRetryDelay() time.Duration {
	if m.PriceRetryDelayMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(m.PriceRetryDelayMS) * time.Millisecond
}

// Timeout returns the budget for a timeframe, falling back to defaults.
// Budgets grow monotonically with timeframe granularity.
func (m Monitor) Timeout(tf trade.Timeframe) time.Duration {
	if secs, ok := m.TimeoutSecs[string(tf)]; ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	defaults := map[trade.Timeframe]time.Duration{
		trade.TF1m:  30 * time.Second,
		trade.TF5m:  150 * time.Second,
		trade.TF15m: 450 * time.Second,
		trade.TF1h:  30 * time.Minute,
		trade.TF4h:  2 * time.Hour,
		trade.TF1d:  4 * time.Hour,
	}
	if d, ok := defaults[tf]; ok {
		return d
	}
	return 2 * time.Hour
}

// Feedback tunes the adaptive threshold controller. MinClosedTrades gates
// adjustment on history size; zero adjusts from the first closed trade.
type Feedback struct {
	Schedule        string  `yaml:"schedule"` // cron spec with seconds field
	LowWinRate      float64 `yaml:"low_win_rate"`
	HighWinRate     float64 `yaml:"high_win_rate"`
	RaiseStep       float64 `yaml:"raise_step"`
	LowerStep       float64 `yaml:"lower_step"`
	Ceiling         float64 `yaml:"ceiling"`
	Floor           float64 `yaml:"floor"`
	MinClosedTrades int     `yaml:"min_closed_trades"`
}

// Notify configures the outbound notification sink.
type Notify struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Store selects the trade store backend.
type Store struct {
	Driver      string `yaml:"driver"` // memory or postgres
	DSN         string `yaml:"dsn"`
	JournalPath string `yaml:"journal_path"`
}

// Engine drives the scheduling loop.
type Engine struct {
	CycleSecs    int     `yaml:"cycle_secs"`
	BarsPerFetch int     `yaml:"bars_per_fetch"`
	QuantityUSD  float64 `yaml:"quantity_usd"`
}

// CycleInterval returns the scheduling cadence as a duration.
func (e Engine) CycleInterval() time.Duration {
	if e.CycleSecs <= 0 {
		return time.Minute
	}
	return time.Duration(e.CycleSecs) * time.Second
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Engine   Engine   `yaml:"engine"`
	Gateway  Gateway  `yaml:"gateway"`
	Limits   Limits   `yaml:"limits"`
	Monitor  Monitor  `yaml:"monitor"`
	Feedback Feedback `yaml:"feedback"`
	Notify   Notify   `yaml:"notify"`
	Store    Store    `yaml:"store"`
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
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Limits.MaxGlobalOpen <= 0 {
		c.Limits.MaxGlobalOpen = 540
	}
	if c.Limits.MaxPerStrategy <= 0 {
		c.Limits.MaxPerStrategy = 36
	}
	if c.Limits.BucketLimit <= 0 {
		c.Limits.BucketLimit = 1
	}
	if c.Limits.RetryQueueSize <= 0 {
		c.Limits.RetryQueueSize = 256
	}
	if c.Gateway.RetryAttempts <= 0 {
		c.Gateway.RetryAttempts = 3
	}
	if c.Gateway.RetryDelayMS <= 0 {
		c.Gateway.RetryDelayMS = 500
	}
	if c.Monitor.PriceRetryAttempts <= 0 {
		c.Monitor.PriceRetryAttempts = 3
	}
	if c.Feedback.Schedule == "" {
		c.Feedback.Schedule = "0 0 * * * *"
	}
	if c.Feedback.LowWinRate <= 0 {
		c.Feedback.LowWinRate = 40
	}
	if c.Feedback.HighWinRate <= 0 {
		c.Feedback.HighWinRate = 80
	}
	if c.Feedback.RaiseStep <= 0 {
		c.Feedback.RaiseStep = 0.10
	}
	if c.Feedback.LowerStep <= 0 {
		c.Feedback.LowerStep = 0.05
	}
	if c.Feedback.Ceiling <= 0 {
		c.Feedback.Ceiling = 1.0
	}
	if c.Feedback.Floor <= 0 {
		c.Feedback.Floor = 0.1
	}
	if c.Engine.BarsPerFetch <= 0 {
		c.Engine.BarsPerFetch = 100
	}
	if c.Engine.QuantityUSD <= 0 {
		c.Engine.QuantityUSD = 10
	}
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
