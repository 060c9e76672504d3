package valuation

import (
	"fmt"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// divisionPrecision is the number of fractional digits kept by every division.
// Token amounts carry up to 18 decimals and rates can be as small as 1e-9.
const divisionPrecision = 36

var protocolFeeRate = decimal.RequireFromString("0.01")

// CalculateFee applies the 1% protocol fee and the gas reimbursement to a gross
// value expressed in reference-currency base units.
//
//	fee       = floor(gross * 0.01)
//	chainFee  = gasUnits * gasPrice
//	gasCost   = chainFee / referenceToChainRate
//	net       = floor(gross - fee - gasCost)
func CalculateFee(gross, gasUnits, gasPrice, referenceToChainRate decimal.Decimal) (domain.Valuation, error) {
	switch {
	case gross.IsNegative():
		return domain.Valuation{}, fmt.Errorf("%w: negative gross value %s", domain.ErrInvalidInput, gross)
	case gasUnits.IsNegative():
		return domain.Valuation{}, fmt.Errorf("%w: negative gas units %s", domain.ErrInvalidInput, gasUnits)
	case gasPrice.IsNegative():
		return domain.Valuation{}, fmt.Errorf("%w: negative gas price %s", domain.ErrInvalidInput, gasPrice)
	case !referenceToChainRate.IsPositive():
		return domain.Valuation{}, fmt.Errorf("%w: non-positive reference/chain rate %s", domain.ErrInvalidInput, referenceToChainRate)
	}

	fee := gross.Mul(protocolFeeRate).Floor()
	chainFee := gasUnits.Mul(gasPrice)
	gasCost := chainFee.DivRound(referenceToChainRate, divisionPrecision)
	net := gross.Sub(fee).Sub(gasCost).Floor()

	return domain.Valuation{
		GrossValue:           gross,
		Fee:                  fee,
		EstimatedChainFee:    chainFee,
		GasCost:              gasCost,
		NetValue:             net,
		ReferenceToChainRate: referenceToChainRate,
		GasPrice:             gasPrice,
		GasUnits:             gasUnits,
	}, nil
}
