// Package valuation prices exchange-bound transfers in reference-currency base units.
package valuation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// referenceScale converts reference-currency units into base units (18 decimals).
var referenceScale = decimal.New(1, 18)

// RateSource returns the live rate for a currency pair.
type RateSource interface {
	Rate(ctx context.Context, pair string) (decimal.Decimal, error)
}

// GasPriceSource returns the public-chain gas price in base units.
type GasPriceSource interface {
	GasPrice(ctx context.Context) (decimal.Decimal, error)
}

// Pairs names the market pairs used for valuation.
type Pairs struct {
	// ReferenceToChain quotes the public-chain coin per one reference unit.
	ReferenceToChain string
	// ChainToFiat quotes fiat per one public-chain coin. Only fiat-backed tokens need it.
	ChainToFiat string
}

// Orchestrator fetches fresh market data and applies CalculateFee.
type Orchestrator struct {
	rates RateSource
	gas   GasPriceSource
	pairs Pairs
}

// NewOrchestrator creates an orchestrator over the given market collaborators.
func NewOrchestrator(rates RateSource, gas GasPriceSource, pairs Pairs) *Orchestrator {
	return &Orchestrator{rates: rates, gas: gas, pairs: pairs}
}

// Value computes the valuation of a raw private-chain amount of token, reimbursing
// gasUnits of public-chain gas. Any failed fetch aborts the whole valuation.
func (o *Orchestrator) Value(ctx context.Context, amount *big.Int, token domain.Token, gasUnits uint64) (domain.Valuation, error) {
	if amount == nil || amount.Sign() < 0 {
		return domain.Valuation{}, fmt.Errorf("%w: transfer amount must be non-negative", domain.ErrInvalidInput)
	}
	if err := token.Validate(); err != nil {
		return domain.Valuation{}, err
	}

	raw := decimal.NewFromBigInt(amount, 0)
	units := decimal.NewFromBigInt(new(big.Int).SetUint64(gasUnits), 0)

	var gasPrice, referenceToChain, chainToFiat decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := o.gas.GasPrice(gctx)
		if err != nil {
			return fmt.Errorf("gas price: %w", err)
		}
		gasPrice = p
		return nil
	})
	g.Go(func() error {
		r, err := o.rates.Rate(gctx, o.pairs.ReferenceToChain)
		if err != nil {
			return fmt.Errorf("rate %s: %w", o.pairs.ReferenceToChain, err)
		}
		referenceToChain = r
		return nil
	})
	if token.FiatBacked() {
		g.Go(func() error {
			r, err := o.rates.Rate(gctx, o.pairs.ChainToFiat)
			if err != nil {
				return fmt.Errorf("rate %s: %w", o.pairs.ChainToFiat, err)
			}
			chainToFiat = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Valuation{}, err
	}

	var gross decimal.Decimal
	if token.FiatBacked() {
		// smallest token unit per one fiat unit
		effectiveRate := token.FiatRate.Mul(decimal.New(1, int32(token.Decimals)))
		grossInFiat := raw.DivRound(effectiveRate, divisionPrecision)

		referenceToFiat := referenceToChain.Mul(chainToFiat)
		if !referenceToFiat.IsPositive() {
			return domain.Valuation{}, fmt.Errorf("%w: non-positive reference/fiat rate %s", domain.ErrInvalidInput, referenceToFiat)
		}
		gross = grossInFiat.DivRound(referenceToFiat, divisionPrecision).Mul(referenceScale).Floor()
	} else {
		gross = raw.DivRound(token.Rate, divisionPrecision)
	}

	v, err := CalculateFee(gross, units, gasPrice, referenceToChain)
	if err != nil {
		return domain.Valuation{}, err
	}
	v.ChainToFiatRate = chainToFiat
	return v, nil
}
