// Package market queries an order-book service for live currency-pair rates.
package market

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// Client fetches the best bid for a pair using a signed order-book query.
type Client struct {
	url        string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock overrides the timestamp source used for signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a market client posting order-book queries to url.
func NewClient(url, accessKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		accessKey:  accessKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns the limit price of the best bid for pair.
func (c *Client) Rate(ctx context.Context, pair string) (rate decimal.Decimal, err error) {
	started := time.Now()
	defer func() { metrics.ObserveFetch("market", started, err) }()

	payload := c.signedPayload(map[string]string{
		"symbol": pair,
		"limit":  "1",
	})

	body, err := json.Marshal(payload)
	if err != nil {
		return decimal.Zero, fmt.Errorf("marshal order book query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Market rate request failed", "endpoint", c.url, "pair", pair, "error", err)
		return decimal.Zero, fmt.Errorf("%w: market rate %s: %w", domain.ErrExternalFetch, pair, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read market response: %w", domain.ErrExternalFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Market rate request rejected",
			"endpoint", c.url,
			"pair", pair,
			"status", resp.StatusCode,
			"body", truncate(respBody, 256),
		)
		return decimal.Zero, fmt.Errorf("%w: market rate %s: status %d", domain.ErrExternalFetch, pair, resp.StatusCode)
	}

	rate, err = bestBid(respBody)
	if err != nil {
		slog.Error("Unexpected market response", "endpoint", c.url, "pair", pair, "error", err)
		return decimal.Zero, fmt.Errorf("market rate %s: %w", pair, err)
	}
	return rate, nil
}

// signedPayload adds the access key, a millisecond timestamp and the signature
// to params. The secret key takes part in the digest but is never sent.
func (c *Client) signedPayload(params map[string]string) map[string]string {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)

	signing := make(map[string]string, len(params)+3)
	for k, v := range params {
		signing[k] = v
	}
	signing["access_key"] = c.accessKey
	signing["secret_key"] = c.secretKey
	signing["timestamp"] = ts

	out := make(map[string]string, len(params)+3)
	for k, v := range params {
		out[k] = v
	}
	out["access_key"] = c.accessKey
	out["timestamp"] = ts
	out["signature"] = Sign(signing)
	return out
}

// Sign joins params as key=value pairs sorted by key, separated by '&', and
// returns the lowercase hex SHA-256 of the UTF-8 bytes.
func Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}

func bestBid(body []byte) (decimal.Decimal, error) {
	if !gjson.ValidBytes(body) {
		return decimal.Zero, fmt.Errorf("%w: invalid JSON", domain.ErrMalformedResponse)
	}

	bids := gjson.GetBytes(body, "data.result.bids")
	if !bids.IsArray() || len(bids.Array()) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no bids in order book", domain.ErrMalformedResponse)
	}

	price, err := parseDecimal(bids.Array()[0].Get("limitPrice"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: limit price: %v", domain.ErrMalformedResponse, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive limit price %s", domain.ErrMalformedResponse, price)
	}
	return price, nil
}

// parseDecimal reads a JSON number or numeric string without a float64 round trip.
func parseDecimal(r gjson.Result) (decimal.Decimal, error) {
	switch r.Type {
	case gjson.String:
		return decimal.NewFromString(r.Str)
	case gjson.Number:
		return decimal.NewFromString(r.Raw)
	default:
		return decimal.Zero, fmt.Errorf("expected number, got %s", r.Type)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
