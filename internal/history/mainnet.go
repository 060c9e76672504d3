package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	DefaultTimeout = 15 * time.Second

	// noTransactions is the explorer's message for an address without history.
	noTransactions = "No transactions found"
)

// MainnetClient reads a wallet's public-chain transaction list from an
// Etherscan-compatible explorer API.
type MainnetClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewMainnetClient creates an explorer client. A nil httpClient uses a default with DefaultTimeout.
func NewMainnetClient(baseURL, apiKey string, httpClient *http.Client) *MainnetClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &MainnetClient{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// Transactions returns the wallet's transactions, newest first.
func (c *MainnetClient) Transactions(ctx context.Context, wallet string) (records []domain.HistoryRecord, err error) {
	started := time.Now()
	defer func() { metrics.ObserveFetch("mainnet_history", started, err) }()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse history url: %w", err)
	}
	q := u.Query()
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", wallet)
	q.Set("sort", "desc")
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("History feed request failed", "endpoint", c.baseURL, "wallet", wallet, "error", err)
		return nil, fmt.Errorf("%w: history feed: %w", domain.ErrExternalFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read history response: %w", domain.ErrExternalFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("History feed request rejected", "endpoint", c.baseURL, "wallet", wallet, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: history feed: status %d", domain.ErrExternalFetch, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("history feed: %w: invalid JSON", domain.ErrMalformedResponse)
	}

	parsed := gjson.ParseBytes(body)
	if parsed.Get("status").String() == "0" {
		message := parsed.Get("message").String()
		if message == noTransactions {
			return []domain.HistoryRecord{}, nil
		}
		slog.Error("History feed returned an error", "endpoint", c.baseURL, "wallet", wallet,
			"message", message, "result", parsed.Get("result").String())
		return nil, fmt.Errorf("%w: history feed: %s", domain.ErrExternalFetch, message)
	}

	result := parsed.Get("result")
	if !result.IsArray() {
		return nil, fmt.Errorf("history feed: %w: result is not a list", domain.ErrMalformedResponse)
	}

	items := result.Array()
	records = make([]domain.HistoryRecord, 0, len(items))
	for i, item := range items {
		rec, err := parseExplorerTx(item)
		if err != nil {
			return nil, fmt.Errorf("history feed: %w: entry %d: %v", domain.ErrMalformedResponse, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseExplorerTx(item gjson.Result) (domain.HistoryRecord, error) {
	ts, err := strconv.ParseInt(item.Get("timeStamp").String(), 10, 64)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("timeStamp: %w", err)
	}
	value, err := decimal.NewFromString(item.Get("value").String())
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("value: %w", err)
	}
	return domain.HistoryRecord{
		Hash:            item.Get("hash").String(),
		Timestamp:       time.Unix(ts, 0).UTC(),
		From:            item.Get("from").String(),
		To:              item.Get("to").String(),
		Value:           value,
		Source:          domain.SourceChain,
		ContractAddress: item.Get("contractAddress").String(),
	}, nil
}
