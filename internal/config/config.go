package config

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	LedgerRPCUrl   string   `mapstructure:"ledger_rpc_url" validate:"omitempty,url"`
	LedgerRPCUrls  []string `mapstructure:"ledger_rpc_urls" validate:"required,min=1,dive,url"`
	MainnetRPCUrl  string   `mapstructure:"mainnet_rpc_url" validate:"omitempty,url"`
	MainnetRPCUrls []string `mapstructure:"mainnet_rpc_urls" validate:"required,min=1,dive,url"`

	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort int    `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	Timezone string `mapstructure:"timezone" validate:"omitempty,timezone"`

	GasOracle  GasOracleConfig  `mapstructure:"gas_oracle"`
	Market     MarketConfig     `mapstructure:"market"`
	HistoryAPI HistoryAPIConfig `mapstructure:"history_api"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`

	Tokens []TokenConfig `mapstructure:"tokens" validate:"required,min=1,dive"`
}

// GasOracleConfig points at the public-chain gas price quote service.
type GasOracleConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// MarketConfig configures the signed order-book rate service.
type MarketConfig struct {
	URL           string `mapstructure:"url" validate:"required,url"`
	AccessKey     string `mapstructure:"access_key" validate:"required"`
	SecretKey     string `mapstructure:"secret_key" validate:"required"`
	ReferencePair string `mapstructure:"reference_pair" validate:"required"`
	// FiatPair is required as soon as one token is fiat-backed.
	FiatPair string `mapstructure:"fiat_pair"`
}

// HistoryAPIConfig configures the public-chain explorer API.
type HistoryAPIConfig struct {
	URL    string `mapstructure:"url" validate:"required,url"`
	APIKey string `mapstructure:"api_key"`
}

// ExchangeConfig lists intake wallets and how they are refreshed.
type ExchangeConfig struct {
	Wallets         []string `mapstructure:"wallets" validate:"dive,eth_addr"`
	SampleAmount    string   `mapstructure:"sample_amount" validate:"omitempty,decimal_positive"`
	RefreshInterval string   `mapstructure:"refresh_interval" validate:"omitempty,duration_or_cron"`
	RunImmediately  *bool    `mapstructure:"run_immediately"`
}

// RateLimitConfig bounds API requests per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

// TokenConfig represents a single token configuration
type TokenConfig struct {
	Symbol     string `mapstructure:"symbol" validate:"required,min=1,max=32"`
	Address    string `mapstructure:"address" validate:"required,eth_addr"`
	Decimals   uint8  `mapstructure:"decimals" validate:"max=36"`
	Rate       string `mapstructure:"rate" validate:"omitempty,decimal_positive"`
	FiatBacked bool   `mapstructure:"fiat_backed"`
	FiatRate   string `mapstructure:"fiat_rate" validate:"omitempty,decimal_positive"`
}

// Normalize folds the single *_rpc_url keys into their list forms and trims list entries.
func (c *Config) Normalize() error {
	var err error
	if c.LedgerRPCUrls, err = foldURL("ledger", c.LedgerRPCUrl, c.LedgerRPCUrls); err != nil {
		return err
	}
	c.LedgerRPCUrl = ""

	if c.MainnetRPCUrls, err = foldURL("mainnet", c.MainnetRPCUrl, c.MainnetRPCUrls); err != nil {
		return err
	}
	c.MainnetRPCUrl = ""

	c.Exchange.Wallets = trimList(c.Exchange.Wallets)
	return nil
}

func foldURL(name, single string, list []string) ([]string, error) {
	list = trimList(list)
	if len(list) > 0 {
		return list, nil
	}
	if single = strings.TrimSpace(single); single != "" {
		return []string{single}, nil
	}
	return nil, errors.New(name + "_rpc_url or " + name + "_rpc_urls is required")
}

// trimList trims entries and drops empty ones. A single entry holding a
// comma-separated list, as set from an environment variable, is split.
func trimList(in []string) []string {
	if len(in) == 1 && strings.Contains(in[0], ",") {
		in = strings.Split(in[0], ",")
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetTimezone returns the configured location, UTC when unset or unknown.
func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShouldRunImmediately reports whether the wallet refresh runs at startup. Defaults to true.
func (c *Config) ShouldRunImmediately() bool {
	if c.Exchange.RunImmediately == nil {
		return true
	}
	return *c.Exchange.RunImmediately
}

// ExchangeWallets returns the statically configured intake wallets.
func (c *Config) ExchangeWallets() []common.Address {
	out := make([]common.Address, 0, len(c.Exchange.Wallets))
	for _, w := range c.Exchange.Wallets {
		out = append(out, common.HexToAddress(w))
	}
	return out
}

// SampleAmount is the token amount used for gas estimation. Defaults to 1.
func (c *Config) SampleAmount() *big.Int {
	if c.Exchange.SampleAmount == "" {
		return big.NewInt(1)
	}
	d, err := decimal.NewFromString(c.Exchange.SampleAmount)
	if err != nil {
		return big.NewInt(1)
	}
	return d.BigInt()
}

// DomainTokens converts the token table into validated domain tokens.
func (c *Config) DomainTokens() ([]domain.Token, error) {
	out := make([]domain.Token, 0, len(c.Tokens))
	for _, tc := range c.Tokens {
		t, err := tc.Token()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Token builds the domain token for this entry.
func (tc TokenConfig) Token() (domain.Token, error) {
	addr := common.HexToAddress(tc.Address)
	if tc.FiatBacked {
		rate, err := decimal.NewFromString(tc.FiatRate)
		if err != nil {
			return domain.Token{}, errors.Join(domain.ErrInvalidInput, err)
		}
		return domain.NewFiatToken(tc.Symbol, addr, tc.Decimals, rate)
	}
	rate, err := decimal.NewFromString(tc.Rate)
	if err != nil {
		return domain.Token{}, errors.Join(domain.ErrInvalidInput, err)
	}
	return domain.NewReferenceToken(tc.Symbol, addr, tc.Decimals, rate)
}
