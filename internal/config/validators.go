package config

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/matrixise/loyalty-ledger/internal/scheduler"
	"github.com/shopspring/decimal"
)

// ethAddressValidator validates Ethereum addresses
func ethAddressValidator(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

// scheduleValidator accepts clock-aligned durations and cron expressions.
func scheduleValidator(fl validator.FieldLevel) bool {
	return scheduler.ValidateScheduleInterval(fl.Field().String()) == nil
}

// decimalPositiveValidator accepts decimal strings strictly above zero.
func decimalPositiveValidator(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// tokenStructLevel enforces exactly one valuation mode per token.
func tokenStructLevel(sl validator.StructLevel) {
	tc := sl.Current().Interface().(TokenConfig)
	if tc.FiatBacked {
		if tc.FiatRate == "" {
			sl.ReportError(tc.FiatRate, "FiatRate", "fiat_rate", "required_if_fiat_backed", "")
		}
		if tc.Rate != "" {
			sl.ReportError(tc.Rate, "Rate", "rate", "excluded_if_fiat_backed", "")
		}
		return
	}
	if tc.Rate == "" {
		sl.ReportError(tc.Rate, "Rate", "rate", "required_unless_fiat_backed", "")
	}
	if tc.FiatRate != "" {
		sl.ReportError(tc.FiatRate, "FiatRate", "fiat_rate", "excluded_unless_fiat_backed", "")
	}
}

// configStructLevel requires a fiat pair when a fiat-backed token is configured.
func configStructLevel(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Market.FiatPair != "" {
		return
	}
	for _, tc := range cfg.Tokens {
		if tc.FiatBacked {
			sl.ReportError(cfg.Market.FiatPair, "Market.FiatPair", "fiat_pair", "required_with_fiat_token", "")
			return
		}
	}
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("eth_addr", ethAddressValidator)
	_ = validate.RegisterValidation("duration_or_cron", scheduleValidator)
	_ = validate.RegisterValidation("decimal_positive", decimalPositiveValidator)
	validate.RegisterStructValidation(tokenStructLevel, TokenConfig{})
	validate.RegisterStructValidation(configStructLevel, Config{})
	return validate
}
