// Package config loads engine configuration from config.yaml with
// environment-variable overrides. API credentials are only ever read here;
// nothing else touches the environment.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full engine configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Trading TradingConfig `mapstructure:"trading"`
	Symbols []string      `mapstructure:"symbols"`
	TFQE    TFQEConfig    `mapstructure:"tfqe"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Log     LogConfig     `mapstructure:"log"`
}

// APIConfig holds the broker credentials and endpoints.
type APIConfig struct {
	Key            string        `mapstructure:"key"`
	Secret         string        `mapstructure:"secret"`
	PublicBase     string        `mapstructure:"public_base"`
	PrivateBase    string        `mapstructure:"private_base"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ClockSkewMaxMS int           `mapstructure:"clock_skew_max_ms"`
}

// TradingConfig gates order submission. Off by default: the engine is
// read-only market data + signals unless explicitly enabled.
type TradingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TFQEConfig tunes the pullback strategy.
type TFQEConfig struct {
	SessionStartHour int     `mapstructure:"session_start"` // JST
	SessionEndHour   int     `mapstructure:"session_end"`   // JST
	ATRStopMult      float64 `mapstructure:"atr_stop_mult"`
	TP1Mult          float64 `mapstructure:"tp1_mult"`
	TP2Mult          float64 `mapstructure:"tp2_mult"`
}

// LimitsConfig mirrors the broker's documented rate ceilings.
type LimitsConfig struct {
	GetPerSec   float64 `mapstructure:"get_per_sec"`
	PostPerSec  float64 `mapstructure:"post_per_sec"`
	WSSubPerSec float64 `mapstructure:"ws_sub_per_sec"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	APIAddr     string `mapstructure:"api_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// RedisConfig configures the optional quote/candle cache.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SQLiteConfig configures the optional candle archive.
type SQLiteConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads config.local.yaml, then config.yaml, then env overrides
// (FXASSIST_API_KEY overrides api.key, and so on).
func Load() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("FXASSIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config.local")
	if err := viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("api.key", "")
	viper.SetDefault("api.secret", "")
	viper.SetDefault("api.public_base", "https://forex-api.coin.z.com/public")
	viper.SetDefault("api.private_base", "https://forex-api.coin.z.com/private")
	viper.SetDefault("api.timeout", 10*time.Second)
	viper.SetDefault("api.clock_skew_max_ms", 5000)
	viper.SetDefault("trading.enabled", false)
	viper.SetDefault("symbols", []string{"USD_JPY", "EUR_JPY"})
	viper.SetDefault("tfqe.session_start", 16)
	viper.SetDefault("tfqe.session_end", 24)
	viper.SetDefault("tfqe.atr_stop_mult", 1.5)
	viper.SetDefault("tfqe.tp1_mult", 1.0)
	viper.SetDefault("tfqe.tp2_mult", 2.0)
	viper.SetDefault("limits.get_per_sec", 6.0)
	viper.SetDefault("limits.post_per_sec", 1.0)
	viper.SetDefault("limits.ws_sub_per_sec", 1.0)
	viper.SetDefault("server.api_addr", ":8080")
	viper.SetDefault("server.metrics_addr", ":9090")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("sqlite.enabled", false)
	viper.SetDefault("sqlite.path", "data/candles.db")
	viper.SetDefault("log.level", "info")
}
