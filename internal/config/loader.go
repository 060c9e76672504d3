package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LOYALTY_LEDGER"

// envKeys are the config keys that may be set from the environment.
// Tokens are structured and come from the config file only.
var envKeys = []string{
	"ledger_rpc_url", "ledger_rpc_urls",
	"mainnet_rpc_url", "mainnet_rpc_urls",
	"log_level", "http_port", "timezone",
	"gas_oracle.url",
	"market.url", "market.reference_pair", "market.fiat_pair",
	"history_api.url",
	"exchange.wallets", "exchange.sample_amount", "exchange.refresh_interval", "exchange.run_immediately",
	"rate_limit.requests_per_second", "rate_limit.burst",
}

// secretEnv maps secrets to the bare variable names used by deployment tooling,
// in addition to their prefixed form.
var secretEnv = map[string]string{
	"market.access_key":   "MARKET_ACCESS_KEY",
	"market.secret_key":   "MARKET_SECRET_KEY",
	"history_api.api_key": "HISTORY_API_KEY",
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("http_port", 8080)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("exchange.refresh_interval", "5m")
	v.SetDefault("exchange.sample_amount", "1")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	// LOYALTY_LEDGER_MARKET_URL -> market.url
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	for key, bare := range secretEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, bare)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("config normalization failed: %w", err)
	}

	if err := NewValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with DATABASE_URL from environment
func LoadWithDefaults(configPath string) (*Config, string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, "", err
	}

	databaseURL, err := DatabaseURL()
	if err != nil {
		return nil, "", err
	}
	return cfg, databaseURL, nil
}

// DatabaseURL reads the PostgreSQL DSN from LOYALTY_LEDGER_DATABASE_URL or DATABASE_URL.
func DatabaseURL() (string, error) {
	v := viper.New()
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	databaseURL := v.GetString("database_url")
	if databaseURL == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return databaseURL, nil
}
