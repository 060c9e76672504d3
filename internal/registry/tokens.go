// Package registry holds the token and exchange-wallet lookups.
package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

// Tokens is an immutable token lookup by contract address or symbol.
type Tokens struct {
	byAddress map[common.Address]domain.Token
	bySymbol  map[string]domain.Token
}

// NewTokens indexes tokens. Duplicate addresses or symbols are rejected.
func NewTokens(tokens []domain.Token) (*Tokens, error) {
	r := &Tokens{
		byAddress: make(map[common.Address]domain.Token, len(tokens)),
		bySymbol:  make(map[string]domain.Token, len(tokens)),
	}
	for _, t := range tokens {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		sym := strings.ToUpper(t.Symbol)
		if _, dup := r.byAddress[t.Address]; dup {
			return nil, fmt.Errorf("duplicate token address %s", t.Address.Hex())
		}
		if _, dup := r.bySymbol[sym]; dup {
			return nil, fmt.Errorf("duplicate token symbol %s", t.Symbol)
		}
		r.byAddress[t.Address] = t
		r.bySymbol[sym] = t
	}
	return r, nil
}

// ByAddress returns the token deployed at addr.
func (r *Tokens) ByAddress(addr common.Address) (domain.Token, error) {
	t, ok := r.byAddress[addr]
	if !ok {
		return domain.Token{}, fmt.Errorf("%w: address %s", domain.ErrTokenNotFound, addr.Hex())
	}
	return t, nil
}

// BySymbol returns the token with the given symbol, case-insensitively.
func (r *Tokens) BySymbol(symbol string) (domain.Token, error) {
	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return domain.Token{}, fmt.Errorf("%w: symbol %s", domain.ErrTokenNotFound, symbol)
	}
	return t, nil
}

// Len returns the number of registered tokens.
func (r *Tokens) Len() int {
	return len(r.byAddress)
}
