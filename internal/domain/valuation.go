package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Valuation is the net value of an exchange-bound transfer, in reference-currency
// base units, together with the market inputs it was computed from.
type Valuation struct {
	GrossValue        decimal.Decimal
	Fee               decimal.Decimal
	EstimatedChainFee decimal.Decimal
	GasCost           decimal.Decimal
	NetValue          decimal.Decimal

	ReferenceToChainRate decimal.Decimal
	ChainToFiatRate      decimal.Decimal
	GasPrice             decimal.Decimal
	GasUnits             decimal.Decimal
}

func (v Valuation) String() string {
	s := fmt.Sprintf("gross=%s fee=%s chain_fee=%s gas_cost=%s net=%s reference_to_chain=%s gas_price=%s gas_units=%s",
		v.GrossValue, v.Fee, v.EstimatedChainFee, v.GasCost, v.NetValue,
		v.ReferenceToChainRate, v.GasPrice, v.GasUnits)
	if !v.ChainToFiatRate.IsZero() {
		s += " chain_to_fiat=" + v.ChainToFiatRate.String()
	}
	return s
}
