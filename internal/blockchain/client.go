package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

const (
	rpcTimeout    = 10 * time.Second
	maxRetries    = 3
	retryInterval = 500 * time.Millisecond
)

// Client wraps Ethereum RPC client functionality with failover support.
// One Client talks to one chain: the private ledger or the public mainnet.
type Client struct {
	failoverClient *FailoverClient
	parsedABI      abi.ABI

	chainIDMu sync.Mutex
	chainID   *big.Int
}

// NewClient creates a new blockchain client with failover support
func NewClient(rpcURLs []string) (*Client, error) {
	failoverClient, err := NewFailoverClient(rpcURLs)
	if err != nil {
		return nil, err
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	return &Client{
		failoverClient: failoverClient,
		parsedABI:      parsedABI,
	}, nil
}

// Close closes all RPC client connections
func (c *Client) Close() {
	c.failoverClient.Close()
}

// ChainID returns the chain ID, fetched once and cached.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.chainIDMu.Lock()
	defer c.chainIDMu.Unlock()

	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}

	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	var id *big.Int
	err := c.retryWithBackoff(rpcCtx, func(ec *ethclient.Client) error {
		var err error
		id, err = ec.ChainID(rpcCtx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %w", domain.ErrExternalFetch, err)
	}

	c.chainID = id
	return new(big.Int).Set(id), nil
}

// GetHealthyEndpoint returns a healthy ethclient and its URL
func (c *Client) GetHealthyEndpoint() (*ethclient.Client, string, error) {
	return c.failoverClient.GetClient()
}

// GetEndpointsHealth reports the health flag of every configured endpoint by URL
func (c *Client) GetEndpointsHealth() map[string]bool {
	return c.failoverClient.Health()
}

// retryWithBackoff executes fn against a healthy endpoint with exponential backoff
// and automatic failover
func (c *Client) retryWithBackoff(ctx context.Context, fn func(*ethclient.Client) error) error {
	var lastErr error

	for attempt := range maxRetries {
		if attempt > 0 {
			backoff := retryInterval * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		ethClient, currentURL, err := c.failoverClient.GetClient()
		if err != nil {
			lastErr = err
			continue
		}

		if err := fn(ethClient); err != nil {
			lastErr = err
			// Mark endpoint unhealthy so the next attempt fails over
			c.failoverClient.MarkUnhealthy(currentURL, err)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Probe asks the current healthy endpoint for its chain ID and returns the endpoint URL.
func (c *Client) Probe(ctx context.Context) (string, error) {
	client, url, err := c.GetHealthyEndpoint()
	if err != nil {
		return "", err
	}
	if _, err := client.ChainID(ctx); err != nil {
		return url, err
	}
	return url, nil
}

// HumanBalance converts a raw token amount to a human-readable decimal string
func HumanBalance(rawBalance *big.Int, decimals uint8) string {
	if rawBalance.Sign() == 0 {
		return "0"
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	intPart := new(big.Int).Div(rawBalance, divisor)
	remainder := new(big.Int).Mod(rawBalance, divisor)

	if remainder.Sign() == 0 {
		return intPart.String()
	}

	fracStr := fmt.Sprintf("%0*s", int(decimals), remainder.String())
	fracStr = strings.TrimRight(fracStr, "0")
	return fmt.Sprintf("%s.%s", intPart.String(), fracStr)
}
