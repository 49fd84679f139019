package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FxSentinel/internal/analysis"
	"FxSentinel/internal/model"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	DataSource     DataSource `yaml:"data_source"`
	Instruments    []string   `yaml:"instruments" default:"[\"EUR/USD\",\"GBP/USD\",\"JPY/USD\",\"AUD/USD\"]" validate:"required,min=1,dive,required"`
	ReferenceAsset string     `yaml:"reference_asset" default:"BTC" validate:"required"`
	Fetch          Fetch      `yaml:"fetch"`
	Quota          Quota      `yaml:"quota"`
	Analysis       Analysis   `yaml:"analysis"`
	Store          struct {
		MaxPoints int `yaml:"max_points" default:"1000" validate:"gte=0"`
	} `yaml:"store"`
	Schedule struct {
		Cron       string `yaml:"cron" default:"0 0 */4 * * *" validate:"required"`
		RunOnStart bool   `yaml:"run_on_start" default:"true"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/fxsentinel.db"`
	} `yaml:"database"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Addr    string `yaml:"addr" default:":9108"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
}

type DataSource struct {
	Provider     string        `yaml:"provider" default:"alphavantage" validate:"oneof=alphavantage yahoo mock"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	CryptoMarket string        `yaml:"crypto_market" default:"USD"`
	Timeout      time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
}

type Fetch struct {
	Mode        string        `yaml:"mode" default:"daily" validate:"oneof=daily quote"`
	MaxRetries  int           `yaml:"max_retries" default:"3" validate:"gte=1"`
	BackoffBase time.Duration `yaml:"backoff_base" default:"2s" validate:"gt=0"`
	BackoffMax  time.Duration `yaml:"backoff_max" default:"1m" validate:"gt=0"`
}

type Quota struct {
	MaxPerMinute int    `yaml:"max_per_minute" default:"5" validate:"gt=0"`
	MaxPerDay    int    `yaml:"max_per_day" default:"500" validate:"gt=0"`
	LedgerFile   string `yaml:"ledger_file" default:"data/quota.json"`
}

type Analysis struct {
	CorrelationWindow  int           `yaml:"correlation_window" default:"30" validate:"gte=2"`
	CorrelationEpsilon float64       `yaml:"correlation_epsilon" default:"0.05" validate:"gte=0"`
	AlignmentTolerance time.Duration `yaml:"alignment_tolerance" default:"12h" validate:"gte=0"`
	TrendWindow        int           `yaml:"trend_window" default:"7" validate:"gte=2"`
	TrendThreshold     float64       `yaml:"trend_threshold" default:"0.005" validate:"gte=0"`
	RiskFreeRate       float64       `yaml:"risk_free_rate" default:"0.02" validate:"gte=0"`
	Arbitrage          Arbitrage     `yaml:"arbitrage"`
}

type Arbitrage struct {
	MinDeviation       float64       `yaml:"min_deviation" default:"0.001" validate:"gt=0"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold" default:"96h" validate:"gt=0"`
	AllowInverse       bool          `yaml:"allow_inverse" default:"true"`
	Cycles             [][]string    `yaml:"cycles"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("FX_INSTRUMENTS"); v != "" {
		cfg.Instruments = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.DataSource.Provider == "alphavantage" && c.DataSource.APIKey == "" {
		return fmt.Errorf("%w: data_source.api_key is required for alphavantage", ErrInvalid)
	}
	if _, err := c.InstrumentList(); err != nil {
		return err
	}
	ref, err := model.ParseInstrument(c.ReferenceAsset)
	if err != nil {
		return fmt.Errorf("%w: reference_asset: %v", ErrInvalid, err)
	}
	if ref.IsPair() {
		return fmt.Errorf("%w: reference_asset %q must be a single asset", ErrInvalid, c.ReferenceAsset)
	}
	if _, err := c.ArbitrageCycles(); err != nil {
		return err
	}
	if c.Fetch.BackoffMax < c.Fetch.BackoffBase {
		return fmt.Errorf("%w: fetch.backoff_max must be >= fetch.backoff_base", ErrInvalid)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("%w: telegram.bot_token and telegram.chat_id must be set together", ErrInvalid)
	}
	return nil
}

// InstrumentList parses the configured instruments in priority order.
func (c *Config) InstrumentList() ([]model.Instrument, error) {
	out := make([]model.Instrument, 0, len(c.Instruments))
	seen := make(map[model.Instrument]bool)
	for _, s := range c.Instruments {
		inst, err := model.ParseInstrument(s)
		if err != nil {
			return nil, fmt.Errorf("%w: instruments: %v", ErrInvalid, err)
		}
		if seen[inst] {
			return nil, fmt.Errorf("%w: instruments: duplicate %s", ErrInvalid, inst)
		}
		seen[inst] = true
		out = append(out, inst)
	}
	return out, nil
}

// Reference returns the parsed reference asset.
func (c *Config) Reference() model.Instrument {
	ref, _ := model.ParseInstrument(c.ReferenceAsset)
	return ref
}

// ArbitrageCycles parses explicit cycles; each must be three pair legs forming a closed chain.
func (c *Config) ArbitrageCycles() ([][3]model.Instrument, error) {
	var out [][3]model.Instrument
	for i, chain := range c.Analysis.Arbitrage.Cycles {
		if len(chain) != 3 {
			return nil, fmt.Errorf("%w: arbitrage cycle %d has %d legs, want 3", ErrInvalid, i, len(chain))
		}
		var cyc [3]model.Instrument
		for j, s := range chain {
			inst, err := model.ParseInstrument(s)
			if err != nil || !inst.IsPair() {
				return nil, fmt.Errorf("%w: arbitrage cycle %d leg %q is not a pair", ErrInvalid, i, s)
			}
			cyc[j] = inst
		}
		for j := range cyc {
			if cyc[j].Quote() != cyc[(j+1)%3].Base() {
				return nil, fmt.Errorf("%w: arbitrage cycle %d is not a closed chain", ErrInvalid, i)
			}
		}
		out = append(out, cyc)
	}
	return out, nil
}

// AnalysisConfig converts the analysis section for the engine.
func (c *Config) AnalysisConfig() analysis.Config {
	cycles, _ := c.ArbitrageCycles()
	a := c.Analysis
	return analysis.Config{
		Correlation: analysis.CorrelationConfig{
			Window:    a.CorrelationWindow,
			Epsilon:   a.CorrelationEpsilon,
			Tolerance: a.AlignmentTolerance,
		},
		TrendWindow:    a.TrendWindow,
		TrendThreshold: a.TrendThreshold,
		RiskFreeRate:   a.RiskFreeRate,
		Arbitrage: analysis.ArbitrageConfig{
			MinDeviation: a.Arbitrage.MinDeviation,
			Staleness:    a.Arbitrage.StalenessThreshold,
			AllowInverse: a.Arbitrage.AllowInverse,
			Cycles:       cycles,
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
