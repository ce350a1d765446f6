package config

import (
	"errors"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	Quoter    QuoterConfig    `yaml:"quoter"`
	Journal   JournalConfig   `yaml:"journal"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	MarketURL      string        `yaml:"market_url"`
	UserURL        string        `yaml:"user_url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type QuoterConfig struct {
	Symbol       string          `yaml:"symbol"`
	Asset        string          `yaml:"asset"`
	OrderSize    decimal.Decimal `yaml:"order_size"`
	PriceOffset  decimal.Decimal `yaml:"price_offset"`
	BalanceLimit decimal.Decimal `yaml:"balance_limit"`
	Testnet      bool            `yaml:"testnet"`
}

type JournalConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		if cfg.Quoter.Testnet {
			cfg.REST.BaseURL = "https://testnet.binancefuture.com"
		} else {
			cfg.REST.BaseURL = "https://fapi.binance.com"
		}
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.MarketURL == "" {
		if cfg.Quoter.Testnet {
			cfg.WS.MarketURL = "wss://stream.binancefuture.com"
		} else {
			cfg.WS.MarketURL = "wss://fstream.binance.com"
		}
	}
	if cfg.WS.UserURL == "" {
		cfg.WS.UserURL = cfg.WS.MarketURL
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.Quoter.OrderSize.IsZero() {
		cfg.Quoter.OrderSize = decimal.NewFromFloat(0.01)
	}
	if cfg.Quoter.PriceOffset.IsZero() {
		cfg.Quoter.PriceOffset = decimal.NewFromInt(10)
	}
	if cfg.Quoter.BalanceLimit.IsZero() {
		cfg.Quoter.BalanceLimit = decimal.NewFromInt(1)
	}
	if cfg.Journal.SQLitePath == "" {
		cfg.Journal.SQLitePath = "data/bnf-quoter-bot.db"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9090"
	}
}

func validate(cfg *Config) error {
	if cfg.Quoter.Symbol == "" {
		return errors.New("quoter.symbol is required")
	}
	if cfg.Quoter.OrderSize.IsNegative() {
		return errors.New("quoter.order_size must be > 0")
	}
	if cfg.Quoter.PriceOffset.IsNegative() {
		return errors.New("quoter.price_offset must be > 0")
	}
	if cfg.Quoter.BalanceLimit.IsNegative() {
		return errors.New("quoter.balance_limit must be >= 0")
	}
	return nil
}
