// Package common provides shared configuration and logging for Keel
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/keel/internal/models"
)

// Config holds all configuration for Keel
type Config struct {
	Environment string `toml:"environment"`

	Portfolio PortfolioConfig `toml:"portfolio"`
	Universe  UniverseConfig  `toml:"universe"`
	Regime    RegimeConfig    `toml:"regime"`
	Health    HealthConfig    `toml:"health"`
	Scanner   ScannerConfig   `toml:"scanner"`
	Data      DataConfig      `toml:"data"`
	Clients   ClientsConfig   `toml:"clients"`
	Email     EmailConfig     `toml:"email"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`

	ExternalHoldings []models.ExternalHolding `toml:"external_holdings"`
}

// PortfolioConfig holds portfolio-level parameters and current holdings.
type PortfolioConfig struct {
	TotalValue         float64          `toml:"total_value"`
	MaxPositions       int              `toml:"max_positions"`
	MinCashPct         float64          `toml:"min_cash_pct"`
	MaxRiskPerTradePct float64          `toml:"max_risk_per_trade_pct"`
	Holdings           []models.Holding `toml:"holdings"`
}

// UniverseConfig controls which tickers get scanned.
type UniverseConfig struct {
	Sources      []string `toml:"sources"` // "sp500", "nasdaq100"
	MinPrice     float64  `toml:"min_price"`
	MaxPrice     float64  `toml:"max_price"`
	MinAvgVolume float64  `toml:"min_avg_volume"`
	BatchSize    int      `toml:"batch_size"`
}

// RegimeConfig holds market regime engine parameters.
type RegimeConfig struct {
	BenchmarkTicker      string  `toml:"benchmark_ticker"`
	VolIndexTicker       string  `toml:"vol_index_ticker"`
	RateTicker           string  `toml:"rate_ticker"`
	LookbackDays         int     `toml:"lookback_days"`
	MALong               int     `toml:"ma_long"`
	MAShort              int     `toml:"ma_short"`
	TrendWindow          int     `toml:"trend_window"`
	VolElevatedThreshold float64 `toml:"vol_elevated_threshold"`
}

// HealthConfig holds holding health scorer parameters.
type HealthConfig struct {
	ATRPeriod       int     `toml:"atr_period"`
	ATRStopMult     float64 `toml:"atr_stop_mult"`
	FallbackStopPct float64 `toml:"fallback_stop_pct"`
}

// ScannerConfig holds opportunity scanner parameters.
type ScannerConfig struct {
	RSIMin                   float64 `toml:"rsi_min"`
	RSIMax                   float64 `toml:"rsi_max"`
	RSIPeriod                int     `toml:"rsi_period"`
	VolumeExpansionThreshold float64 `toml:"volume_expansion_threshold"`
	VolumeLookback           int     `toml:"volume_lookback"`
	EarningsBlackoutDays     int     `toml:"earnings_blackout_days"`
	TopN                     int     `toml:"top_n"`

	// Composite score weights
	WeightTrend            float64 `toml:"weight_trend"`
	WeightFundamental      float64 `toml:"weight_fundamental"`
	WeightRelativeStrength float64 `toml:"weight_relative_strength"`
	WeightVolume           float64 `toml:"weight_volume"`
	WeightValuation        float64 `toml:"weight_valuation"`
}

// DataConfig holds data integrity and retry settings.
type DataConfig struct {
	MinCoveragePct    float64 `toml:"min_coverage_pct"`
	MaxRetries        int     `toml:"max_retries"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
	DailyLookbackDays int     `toml:"daily_lookback_days"`
}

// RetryDelay returns the retry delay as a duration.
func (c *DataConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	MarketData MarketDataConfig `toml:"marketdata"`
}

// MarketDataConfig holds market data API configuration
type MarketDataConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *MarketDataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// EmailConfig holds SMTP delivery settings for the daily report.
type EmailConfig struct {
	Enabled        bool   `toml:"enabled"`
	SMTPServer     string `toml:"smtp_server"`
	SMTPPort       int    `toml:"smtp_port"`
	SenderEmail    string `toml:"sender_email"`
	SenderPassword string `toml:"sender_password"`
	RecipientEmail string `toml:"recipient_email"`
}

// StorageConfig holds run history storage configuration.
type StorageConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Portfolio: PortfolioConfig{
			TotalValue:         100000,
			MaxPositions:       12,
			MinCashPct:         10,
			MaxRiskPerTradePct: 1.0,
		},
		Universe: UniverseConfig{
			Sources:      []string{"sp500", "nasdaq100"},
			MinPrice:     10,
			MaxPrice:     10000,
			MinAvgVolume: 1000000,
			BatchSize:    50,
		},
		Regime: RegimeConfig{
			BenchmarkTicker:      "SPY",
			VolIndexTicker:       "^VIX",
			RateTicker:           "^TNX",
			LookbackDays:         250,
			MALong:               200,
			MAShort:              50,
			TrendWindow:          20,
			VolElevatedThreshold: 25,
		},
		Health: HealthConfig{
			ATRPeriod:       14,
			ATRStopMult:     2.0,
			FallbackStopPct: 8.0,
		},
		Scanner: ScannerConfig{
			RSIMin:                   45,
			RSIMax:                   65,
			RSIPeriod:                14,
			VolumeExpansionThreshold: 1.2,
			VolumeLookback:           30,
			EarningsBlackoutDays:     5,
			TopN:                     10,
			WeightTrend:              0.30,
			WeightFundamental:        0.25,
			WeightRelativeStrength:   0.20,
			WeightVolume:             0.15,
			WeightValuation:          0.10,
		},
		Data: DataConfig{
			MinCoveragePct:    80,
			MaxRetries:        3,
			RetryDelaySeconds: 5,
			DailyLookbackDays: 300,
		},
		Clients: ClientsConfig{
			MarketData: MarketDataConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Email: EmailConfig{
			Enabled:    false,
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
		},
		Storage: StorageConfig{
			Path: "data/runs",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/keel.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	// Tickers are matched case-sensitively downstream
	normalizeHoldings(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("KEEL_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("KEEL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("KEEL_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if key := os.Getenv("KEEL_MARKETDATA_API_KEY"); key != "" {
		config.Clients.MarketData.APIKey = key
	} else if key := os.Getenv("EODHD_API_KEY"); key != "" {
		config.Clients.MarketData.APIKey = key
	}

	if url := os.Getenv("KEEL_MARKETDATA_BASE_URL"); url != "" {
		config.Clients.MarketData.BaseURL = url
	}

	if v := os.Getenv("KEEL_EMAIL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Email.Enabled = b
		}
	}
	if v := os.Getenv("KEEL_EMAIL_SENDER_PASSWORD"); v != "" {
		config.Email.SenderPassword = v
	}
	if v := os.Getenv("KEEL_EMAIL_RECIPIENT"); v != "" {
		config.Email.RecipientEmail = v
	}

	if v := os.Getenv("KEEL_PORTFOLIO_TOTAL_VALUE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			config.Portfolio.TotalValue = f
		}
	}
}

// normalizeHoldings uppercases holding tickers so lookups against market data
// keys always match.
func normalizeHoldings(config *Config) {
	for i := range config.Portfolio.Holdings {
		config.Portfolio.Holdings[i].Ticker = strings.ToUpper(strings.TrimSpace(config.Portfolio.Holdings[i].Ticker))
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Portfolio.TotalValue <= 0 {
		return fmt.Errorf("portfolio.total_value must be positive, got %.2f", c.Portfolio.TotalValue)
	}
	if c.Portfolio.MaxPositions <= 0 {
		return fmt.Errorf("portfolio.max_positions must be positive, got %d", c.Portfolio.MaxPositions)
	}
	if c.Portfolio.MinCashPct < 0 || c.Portfolio.MinCashPct > 100 {
		return fmt.Errorf("portfolio.min_cash_pct must be in [0,100], got %.2f", c.Portfolio.MinCashPct)
	}
	if c.Scanner.RSIMin >= c.Scanner.RSIMax {
		return fmt.Errorf("scanner.rsi_min (%.1f) must be below scanner.rsi_max (%.1f)", c.Scanner.RSIMin, c.Scanner.RSIMax)
	}
	if c.Data.MinCoveragePct < 0 || c.Data.MinCoveragePct > 100 {
		return fmt.Errorf("data.min_coverage_pct must be in [0,100], got %.2f", c.Data.MinCoveragePct)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
