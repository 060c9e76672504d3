package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DecodedTransfer is an ERC-20 transfer extracted from a signed ledger transaction.
type DecodedTransfer struct {
	Hash      common.Hash
	From      common.Address
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
}

// GasEstimate bounds the gas needed to move value out on the public chain.
// Conservative is never below Generous.
type GasEstimate struct {
	Conservative uint64
	Generous     uint64
}
