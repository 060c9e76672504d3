package blockchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

// decodeTransferCall extracts recipient and amount from ERC-20 transfer calldata
func (c *Client) decodeTransferCall(data []byte) (common.Address, *big.Int, error) {
	if len(data) < 4 {
		return common.Address{}, nil, fmt.Errorf("%w: calldata too short", domain.ErrInvalidInput)
	}

	method, err := c.parsedABI.MethodById(data[:4])
	if err != nil || method.Name != "transfer" {
		return common.Address{}, nil, fmt.Errorf("%w: not an ERC-20 transfer", domain.ErrInvalidInput)
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: unpack transfer: %v", domain.ErrInvalidInput, err)
	}

	recipient, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("%w: unexpected recipient type %T", domain.ErrInvalidInput, args[0])
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("%w: unexpected amount type %T", domain.ErrInvalidInput, args[1])
	}
	return recipient, amount, nil
}
