package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

// EstimateTransferGas estimates the gas needed to send sample wei to `to`.
// The node estimate is the generous figure; the conservative one adds 50%.
func (c *Client) EstimateTransferGas(ctx context.Context, to common.Address, sample *big.Int) (domain.GasEstimate, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	msg := ethereum.CallMsg{To: &to, Value: sample}

	var gas uint64
	err := c.retryWithBackoff(rpcCtx, func(ec *ethclient.Client) error {
		var err error
		gas, err = ec.EstimateGas(rpcCtx, msg)
		return err
	})
	if err != nil {
		return domain.GasEstimate{}, fmt.Errorf("%w: estimate gas to %s: %w", domain.ErrExternalFetch, to.Hex(), err)
	}

	return newGasEstimate(gas), nil
}

func newGasEstimate(gas uint64) domain.GasEstimate {
	return domain.GasEstimate{
		Conservative: gas + (gas+1)/2,
		Generous:     gas,
	}
}
