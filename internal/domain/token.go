package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Backing selects how a token is valued against the reference currency.
type Backing int

const (
	// BackingReference tokens carry a fixed Rate: token units per one reference unit.
	BackingReference Backing = iota
	// BackingFiat tokens carry a FiatRate: fiat units per one reference unit.
	BackingFiat
)

func (b Backing) String() string {
	switch b {
	case BackingReference:
		return "reference"
	case BackingFiat:
		return "fiat"
	default:
		return fmt.Sprintf("backing(%d)", int(b))
	}
}

// Token is a loyalty token known to the ledger. Exactly one of Rate or FiatRate
// is meaningful, selected by Backing.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	Backing  Backing
	Rate     decimal.Decimal
	FiatRate decimal.Decimal
}

// NewReferenceToken builds a reference-currency-backed token.
func NewReferenceToken(symbol string, address common.Address, decimals uint8, rate decimal.Decimal) (Token, error) {
	t := Token{
		Symbol:   symbol,
		Address:  address,
		Decimals: decimals,
		Backing:  BackingReference,
		Rate:     rate,
	}
	return t, t.Validate()
}

// NewFiatToken builds a fiat-backed token.
func NewFiatToken(symbol string, address common.Address, decimals uint8, fiatRate decimal.Decimal) (Token, error) {
	t := Token{
		Symbol:   symbol,
		Address:  address,
		Decimals: decimals,
		Backing:  BackingFiat,
		FiatRate: fiatRate,
	}
	return t, t.Validate()
}

// FiatBacked reports whether the token is valued through a fiat rate.
func (t Token) FiatBacked() bool {
	return t.Backing == BackingFiat
}

// Validate checks the valuation mode invariants.
func (t Token) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("%w: token symbol is empty", ErrInvalidInput)
	}
	switch t.Backing {
	case BackingReference:
		if !t.Rate.IsPositive() {
			return fmt.Errorf("%w: token %s: rate must be positive", ErrInvalidInput, t.Symbol)
		}
		if !t.FiatRate.IsZero() {
			return fmt.Errorf("%w: token %s: fiat rate set on reference-backed token", ErrInvalidInput, t.Symbol)
		}
	case BackingFiat:
		if !t.FiatRate.IsPositive() {
			return fmt.Errorf("%w: token %s: fiat rate must be positive", ErrInvalidInput, t.Symbol)
		}
		if !t.Rate.IsZero() {
			return fmt.Errorf("%w: token %s: rate set on fiat-backed token", ErrInvalidInput, t.Symbol)
		}
	default:
		return fmt.Errorf("%w: token %s: unknown backing %s", ErrInvalidInput, t.Symbol, t.Backing)
	}
	return nil
}
