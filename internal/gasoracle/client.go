// Package gasoracle reads the public-chain gas price from a quote service.
package gasoracle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	DefaultTimeout = 10 * time.Second

	// Tier is the quote tier used for validation.
	Tier = "standard"
)

// quotes are in gwei; base units are wei.
var gweiToWei = decimal.New(1, 9)

// Client fetches gas price quotes ({safeLow, standard, fast, fastest}).
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a gas oracle client. A nil httpClient uses a default with DefaultTimeout.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{url: url, httpClient: httpClient}
}

// GasPrice returns the standard-tier gas price in base units.
func (c *Client) GasPrice(ctx context.Context) (price decimal.Decimal, err error) {
	started := time.Now()
	defer func() { metrics.ObserveFetch("gas_oracle", started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Gas oracle request failed", "endpoint", c.url, "error", err)
		return decimal.Zero, fmt.Errorf("%w: gas oracle: %w", domain.ErrExternalFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read gas oracle response: %w", domain.ErrExternalFetch, err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Gas oracle request rejected", "endpoint", c.url, "status", resp.StatusCode)
		return decimal.Zero, fmt.Errorf("%w: gas oracle: status %d", domain.ErrExternalFetch, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return decimal.Zero, fmt.Errorf("gas oracle: %w: invalid JSON", domain.ErrMalformedResponse)
	}

	quote := gjson.GetBytes(body, Tier)
	var gwei decimal.Decimal
	switch quote.Type {
	case gjson.Number:
		gwei, err = decimal.NewFromString(quote.Raw)
	case gjson.String:
		gwei, err = decimal.NewFromString(quote.Str)
	default:
		err = fmt.Errorf("missing %q tier", Tier)
	}
	if err != nil {
		slog.Error("Unexpected gas oracle response", "endpoint", c.url, "error", err)
		return decimal.Zero, fmt.Errorf("gas oracle: %w: %v", domain.ErrMalformedResponse, err)
	}
	if gwei.IsNegative() {
		return decimal.Zero, fmt.Errorf("gas oracle: %w: negative %s quote %s", domain.ErrMalformedResponse, Tier, gwei)
	}

	return gwei.Mul(gweiToWei), nil
}
