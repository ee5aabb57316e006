package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFileENV  = "CONFIG_FILE"
	logLevelENV    = "LOG_LEVEL"
	storagePathENV = "STORAGE_PATH"

	DateLayout = "2006-01-02"
)

const (
	FeedYahoo = "yahoo"
	FeedCSV   = "csv"
)

type Config struct {
	Symbol   string         `yaml:"symbol"`
	Start    string         `yaml:"start"`
	End      string         `yaml:"end"`
	Strategy StrategyConfig `yaml:"strategy"`
	Feed     FeedConfig     `yaml:"feed"`
	Broker   BrokerConfig   `yaml:"broker"`
	Chart    ChartConfig    `yaml:"chart"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

type StrategyConfig struct {
	TakeProfitPct  float64 `yaml:"take_profit_pct"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	MaxHoldingDays int     `yaml:"max_holding_days"`
	Stake          int64   `yaml:"stake"`
}

type FeedConfig struct {
	Source  string        `yaml:"source"` // yahoo or csv
	BaseURL string        `yaml:"base_url"`
	CSVPath string        `yaml:"csv_path"`
	Timeout time.Duration `yaml:"timeout"`
}

type BrokerConfig struct {
	StartingCash  float64 `yaml:"starting_cash"`
	CommissionPct float64 `yaml:"commission_pct"`
}

type ChartConfig struct {
	Output    string `yaml:"output"`
	Title     string `yaml:"title"`
	MAWindows []int  `yaml:"ma_windows"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns the reference run: SPY over 2022 with 20% exits.
func Default() *Config {
	return &Config{
		Symbol: "SPY",
		Start:  "2022-01-01",
		End:    "2023-01-01",
		Strategy: StrategyConfig{
			TakeProfitPct:  0.20,
			StopLossPct:    0.20,
			MaxHoldingDays: 45,
			Stake:          1,
		},
		Feed: FeedConfig{
			Source:  FeedYahoo,
			BaseURL: "https://query1.finance.yahoo.com",
			Timeout: 10 * time.Second,
		},
		Broker: BrokerConfig{
			StartingCash: 10000,
		},
		Chart: ChartConfig{
			Output:    "advanced_trading_strategy_chart.html",
			Title:     "Advanced Trading Strategy Visualization with Buy/Sell Signals and Moving Averages",
			MAWindows: []int{50, 200},
		},
		Storage: StorageConfig{
			Path: "backtest.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads the YAML file at path (or $CONFIG_FILE when path is empty) on
// top of Default. With neither set, the defaults are used as is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(configFileENV)
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if v := os.Getenv(logLevelENV); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(storagePathENV); v != "" {
		cfg.Storage.Path = v
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Period returns the parsed [start, end) range.
func (c *Config) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q: %w", c.Start, err)
	}
	end, err := time.Parse(DateLayout, c.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q: %w", c.End, err)
	}
	return start, end, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	start, end, err := cfg.Period()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("end must be after start")
	}
	if cfg.Strategy.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be > 0")
	}
	if cfg.Strategy.StopLossPct <= 0 {
		return fmt.Errorf("stop_loss_pct must be > 0")
	}
	if cfg.Strategy.MaxHoldingDays <= 0 {
		return fmt.Errorf("max_holding_days must be > 0")
	}
	if cfg.Strategy.Stake <= 0 {
		return fmt.Errorf("stake must be > 0")
	}
	switch cfg.Feed.Source {
	case FeedYahoo:
		if cfg.Feed.BaseURL == "" {
			return fmt.Errorf("feed.base_url is required for the yahoo feed")
		}
	case FeedCSV:
		if cfg.Feed.CSVPath == "" {
			return fmt.Errorf("feed.csv_path is required for the csv feed")
		}
	default:
		return fmt.Errorf("invalid feed source: %s", cfg.Feed.Source)
	}
	if cfg.Broker.StartingCash <= 0 {
		return fmt.Errorf("starting_cash must be > 0")
	}
	if cfg.Broker.CommissionPct < 0 {
		return fmt.Errorf("commission_pct must be >= 0")
	}
	for _, w := range cfg.Chart.MAWindows {
		if w <= 0 {
			return fmt.Errorf("ma_windows must be > 0, got %d", w)
		}
	}
	if cfg.Chart.Output == "" {
		return fmt.Errorf("chart.output is required")
	}
	// checked even when disabled: -serve starts the server regardless
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	return nil
}
