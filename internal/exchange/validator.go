// Package exchange decides whether a transfer into an exchange-intake wallet
// carries enough value to cover its fee and the public-chain gas it will cost.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/loyalty-ledger/internal/blockchain"
	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/metrics"
)

// WalletSet reports exchange-intake addresses.
type WalletSet interface {
	Contains(addr common.Address) bool
}

// GasEstimator estimates gas for an ERC-20 transfer to an address.
type GasEstimator interface {
	EstimateTransferGas(ctx context.Context, to common.Address, sample *big.Int) (domain.GasEstimate, error)
}

// Valuer prices a raw token amount net of fee and gas.
type Valuer interface {
	Value(ctx context.Context, amount *big.Int, token domain.Token, gasUnits uint64) (domain.Valuation, error)
}

// Validator makes one decision per transfer. It holds no per-request state.
type Validator struct {
	wallets WalletSet
	gas     GasEstimator
	valuer  Valuer
	sample  *big.Int
}

// NewValidator creates a validator. sample is the token amount used for gas estimation.
func NewValidator(wallets WalletSet, gas GasEstimator, valuer Valuer, sample *big.Int) *Validator {
	if sample == nil {
		sample = big.NewInt(1)
	}
	return &Validator{wallets: wallets, gas: gas, valuer: valuer, sample: sample}
}

// Validate classifies transfer of token to destination.
func (v *Validator) Validate(ctx context.Context, token domain.Token, destination common.Address, transfer domain.DecodedTransfer) domain.Decision {
	d := v.decide(ctx, token, destination, transfer)
	metrics.ValidationDecisions.WithLabelValues(string(d.Outcome)).Inc()
	return d
}

func (v *Validator) decide(ctx context.Context, token domain.Token, destination common.Address, transfer domain.DecodedTransfer) domain.Decision {
	if !v.wallets.Contains(destination) {
		return domain.Decision{
			Outcome: domain.OutcomeNotApplicable,
			Message: "recipient is not an exchange wallet",
		}
	}

	errored := func(err error) domain.Decision {
		slog.Error("Exchange transfer validation failed",
			"token", token.Symbol,
			"recipient", destination.Hex(),
			"amount", amountString(transfer.Amount),
			"error", err)
		return domain.Decision{
			Outcome: domain.OutcomeErrored,
			Message: err.Error(),
			Err:     err,
		}
	}

	if transfer.Amount == nil {
		return errored(fmt.Errorf("%w: transfer has no amount", domain.ErrInvalidInput))
	}

	estimate, err := v.gas.EstimateTransferGas(ctx, destination, v.sample)
	if err != nil {
		return errored(fmt.Errorf("estimate gas: %w", err))
	}

	valuation, err := v.valuer.Value(ctx, transfer.Amount, token, estimate.Conservative)
	if err != nil {
		return errored(fmt.Errorf("value transfer: %w", err))
	}

	if valuation.NetValue.IsNegative() {
		msg := fmt.Sprintf("insufficient value: amount=%s (%s %s) gas_estimate=%d %s",
			transfer.Amount, blockchain.HumanBalance(transfer.Amount, token.Decimals), token.Symbol,
			estimate.Conservative, valuation)
		slog.Info("Exchange transfer rejected",
			"token", token.Symbol,
			"recipient", destination.Hex(),
			"net_value", valuation.NetValue.String())
		return domain.Decision{
			Outcome:   domain.OutcomeRejected,
			Message:   msg,
			Valuation: &valuation,
		}
	}

	// Zero net value is accepted.
	return domain.Decision{
		Outcome:   domain.OutcomeAccepted,
		Message:   "net value covers fee and gas",
		Valuation: &valuation,
	}
}

func amountString(a *big.Int) string {
	if a == nil {
		return "<nil>"
	}
	return a.String()
}
