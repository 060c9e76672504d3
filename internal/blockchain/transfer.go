package blockchain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

// DecodeSignedTransfer parses a raw signed transaction (legacy RLP or typed envelope),
// recovers its sender and decodes the ERC-20 transfer it carries.
func (c *Client) DecodeSignedTransfer(ctx context.Context, raw []byte) (domain.DecodedTransfer, *types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return domain.DecodedTransfer{}, nil, fmt.Errorf("%w: decode transaction: %v", domain.ErrInvalidInput, err)
	}
	if tx.To() == nil {
		return domain.DecodedTransfer{}, nil, fmt.Errorf("%w: contract creation is not a transfer", domain.ErrInvalidInput)
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return domain.DecodedTransfer{}, nil, err
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return domain.DecodedTransfer{}, nil, fmt.Errorf("%w: recover sender: %v", domain.ErrInvalidInput, err)
	}

	recipient, amount, err := c.decodeTransferCall(tx.Data())
	if err != nil {
		return domain.DecodedTransfer{}, nil, err
	}

	return domain.DecodedTransfer{
		Hash:      tx.Hash(),
		From:      from,
		Token:     *tx.To(),
		Recipient: recipient,
		Amount:    amount,
	}, tx, nil
}

// SendTransaction broadcasts a signed transaction. It is attempted once: a
// resubmission is left to the caller.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ethClient, url, err := c.failoverClient.GetClient()
	if err != nil {
		return fmt.Errorf("%w: no RPC endpoint available: %w", domain.ErrExternalFetch, err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	if err := ethClient.SendTransaction(rpcCtx, tx); err != nil {
		return fmt.Errorf("%w: send transaction %s via %s: %w", domain.ErrExternalFetch, tx.Hash().Hex(), url, err)
	}
	return nil
}
