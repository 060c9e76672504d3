package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	intake    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	sender    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	wallet    = "0x1111111111111111111111111111111111111111"
)

type fakeDecoder struct {
	transfer domain.DecodedTransfer
	err      error
}

func (f fakeDecoder) DecodeSignedTransfer(context.Context, []byte) (domain.DecodedTransfer, *types.Transaction, error) {
	if f.err != nil {
		return domain.DecodedTransfer{}, nil, f.err
	}
	return f.transfer, types.NewTx(&types.LegacyTx{Nonce: 1}), nil
}

type fakeSubmitter struct {
	err   error
	calls int
}

func (f *fakeSubmitter) SendTransaction(context.Context, *types.Transaction) error {
	f.calls++
	return f.err
}

type fakeTokens struct{ token domain.Token }

func (f fakeTokens) ByAddress(addr common.Address) (domain.Token, error) {
	if addr != f.token.Address {
		return domain.Token{}, fmt.Errorf("%w: address %s", domain.ErrTokenNotFound, addr.Hex())
	}
	return f.token, nil
}

type fakeValidator struct{ decision domain.Decision }

func (f fakeValidator) Validate(context.Context, domain.Token, common.Address, domain.DecodedTransfer) domain.Decision {
	return f.decision
}

type fakeHistory struct {
	records   []domain.HistoryRecord
	err       error
	gotWallet string
	gotSource domain.Source
	gotLimit  int
}

func (f *fakeHistory) History(_ context.Context, w string, source domain.Source, limit int) ([]domain.HistoryRecord, error) {
	f.gotWallet, f.gotSource, f.gotLimit = w, source, limit
	return f.records, f.err
}

type fakeRecorder struct {
	records []storage.LedgerTransfer
	err     error
}

func (f *fakeRecorder) InsertLedgerTransfer(_ context.Context, t storage.LedgerTransfer) error {
	f.records = append(f.records, t)
	return f.err
}

func testToken(t *testing.T) domain.Token {
	t.Helper()
	tok, err := domain.NewReferenceToken("PTS", tokenAddr, 18, decimal.NewFromInt(100))
	require.NoError(t, err)
	return tok
}

func testTransfer() domain.DecodedTransfer {
	return domain.DecodedTransfer{
		Hash:      common.HexToHash("0x01"),
		From:      sender,
		Token:     tokenAddr,
		Recipient: intake,
		Amount:    big.NewInt(400),
	}
}

func accepted() domain.Decision {
	return domain.Decision{
		Outcome:   domain.OutcomeAccepted,
		Valuation: &domain.Valuation{NetValue: decimal.NewFromInt(2960), GrossValue: decimal.NewFromInt(4000)},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"raw_transaction":"0xf86b01"}`

func TestValidateTransfer(t *testing.T) {
	tests := []struct {
		name       string
		decoder    fakeDecoder
		decision   domain.Decision
		body       string
		wantStatus int
		wantValid  bool
	}{
		{
			name:       "accepted",
			decoder:    fakeDecoder{transfer: testTransfer()},
			decision:   accepted(),
			body:       validBody,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "not applicable",
			decoder:    fakeDecoder{transfer: testTransfer()},
			decision:   domain.Decision{Outcome: domain.OutcomeNotApplicable},
			body:       validBody,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "rejected",
			decoder:    fakeDecoder{transfer: testTransfer()},
			decision:   domain.Decision{Outcome: domain.OutcomeRejected, Message: "insufficient value", Valuation: &domain.Valuation{NetValue: decimal.NewFromInt(-1)}},
			body:       validBody,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "errored by external fetch",
			decoder:    fakeDecoder{transfer: testTransfer()},
			decision:   domain.Decision{Outcome: domain.OutcomeErrored, Err: fmt.Errorf("gas price: %w", domain.ErrExternalFetch)},
			body:       validBody,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "errored otherwise",
			decoder:    fakeDecoder{transfer: testTransfer()},
			decision:   domain.Decision{Outcome: domain.OutcomeErrored, Err: errors.New("boom")},
			body:       validBody,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			h := NewRouter(Deps{
				Decoder:   tt.decoder,
				Submitter: sub,
				Tokens:    fakeTokens{token: testToken(t)},
				Validator: fakeValidator{decision: tt.decision},
			})

			rec := do(t, h, http.MethodPost, "/v1/transfers/validate", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var resp transferResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.decision.Outcome, resp.Outcome)
			assert.Equal(t, tt.wantValid, resp.Valid)
			assert.Equal(t, "PTS", resp.Symbol)
			assert.Equal(t, "400", resp.Amount)
			assert.Equal(t, intake.Hex(), resp.To)
			assert.False(t, resp.Submitted)
			assert.Zero(t, sub.calls, "dry run never submits")
		})
	}
}

func TestValidateTransferRequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		decoder    fakeDecoder
		tokens     fakeTokens
		body       string
		wantStatus int
	}{
		{"invalid json", fakeDecoder{transfer: testTransfer()}, fakeTokens{}, `{`, http.StatusBadRequest},
		{"missing raw transaction", fakeDecoder{transfer: testTransfer()}, fakeTokens{}, `{}`, http.StatusBadRequest},
		{"not hex", fakeDecoder{transfer: testTransfer()}, fakeTokens{}, `{"raw_transaction":"0xzz"}`, http.StatusBadRequest},
		{"no 0x prefix", fakeDecoder{transfer: testTransfer()}, fakeTokens{}, `{"raw_transaction":"f86b01"}`, http.StatusBadRequest},
		{"odd length hex", fakeDecoder{transfer: testTransfer()}, fakeTokens{}, `{"raw_transaction":"0xf86"}`, http.StatusBadRequest},
		{"undecodable transaction", fakeDecoder{err: fmt.Errorf("%w: not an ERC-20 transfer", domain.ErrInvalidInput)}, fakeTokens{}, validBody, http.StatusBadRequest},
		{"chain unreachable", fakeDecoder{err: fmt.Errorf("%w: chain id", domain.ErrExternalFetch)}, fakeTokens{}, validBody, http.StatusBadGateway},
		{"unknown token", fakeDecoder{transfer: testTransfer()}, fakeTokens{}, validBody, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Deps{
				Decoder:   tt.decoder,
				Tokens:    tt.tokens,
				Validator: fakeValidator{decision: accepted()},
			})

			rec := do(t, h, http.MethodPost, "/v1/transfers/validate", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSubmitTransfer(t *testing.T) {
	t.Run("accepted transfer is submitted and recorded", func(t *testing.T) {
		sub := &fakeSubmitter{}
		recorder := &fakeRecorder{}
		h := NewRouter(Deps{
			Decoder:   fakeDecoder{transfer: testTransfer()},
			Submitter: sub,
			Tokens:    fakeTokens{token: testToken(t)},
			Validator: fakeValidator{decision: accepted()},
			Recorder:  recorder,
		})

		rec := do(t, h, http.MethodPost, "/v1/transfers", validBody)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		var resp transferResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Submitted)
		require.NotNil(t, resp.Valuation)
		assert.Equal(t, "2960", resp.Valuation.NetValue)

		assert.Equal(t, 1, sub.calls)
		require.Len(t, recorder.records, 1)
		got := recorder.records[0]
		assert.Equal(t, "PTS", got.Symbol)
		assert.Equal(t, sender.Hex(), got.From)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, domain.OutcomeAccepted, got.Outcome)
		assert.True(t, got.NetValue.Valid)
	})

	t.Run("rejected transfer is not submitted", func(t *testing.T) {
		sub := &fakeSubmitter{}
		recorder := &fakeRecorder{}
		h := NewRouter(Deps{
			Decoder:   fakeDecoder{transfer: testTransfer()},
			Submitter: sub,
			Tokens:    fakeTokens{token: testToken(t)},
			Validator: fakeValidator{decision: domain.Decision{Outcome: domain.OutcomeRejected, Message: "insufficient value"}},
			Recorder:  recorder,
		})

		rec := do(t, h, http.MethodPost, "/v1/transfers", validBody)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, sub.calls)
		assert.Empty(t, recorder.records)
	})

	t.Run("submission failure is a gateway error", func(t *testing.T) {
		sub := &fakeSubmitter{err: errors.New("nonce too low")}
		recorder := &fakeRecorder{}
		h := NewRouter(Deps{
			Decoder:   fakeDecoder{transfer: testTransfer()},
			Submitter: sub,
			Tokens:    fakeTokens{token: testToken(t)},
			Validator: fakeValidator{decision: accepted()},
			Recorder:  recorder,
		})

		rec := do(t, h, http.MethodPost, "/v1/transfers", validBody)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Empty(t, recorder.records)
	})

	t.Run("recording failure still reports submission", func(t *testing.T) {
		h := NewRouter(Deps{
			Decoder:   fakeDecoder{transfer: testTransfer()},
			Submitter: &fakeSubmitter{},
			Tokens:    fakeTokens{token: testToken(t)},
			Validator: fakeValidator{decision: domain.Decision{Outcome: domain.OutcomeNotApplicable}},
			Recorder:  &fakeRecorder{err: errors.New("db down")},
		})

		rec := do(t, h, http.MethodPost, "/v1/transfers", validBody)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestWalletHistory(t *testing.T) {
	records := []domain.HistoryRecord{
		{Hash: "0xa", Timestamp: time.Unix(1700000000, 0).UTC(), Value: decimal.NewFromInt(5), Source: domain.SourceChain},
		{Hash: "0xb", Timestamp: time.Unix(1700000100, 0).UTC(), Value: decimal.NewFromInt(7), Source: domain.SourceLedger},
	}

	t.Run("returns merged history", func(t *testing.T) {
		hist := &fakeHistory{records: records}
		h := NewRouter(Deps{History: hist})

		rec := do(t, h, http.MethodGet, "/v1/wallets/"+wallet+"/transactions?limit=10", "")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, "0xa", resp.Transactions[0].Hash)
		assert.Equal(t, domain.SourceLedger, resp.Transactions[1].Source)

		assert.Equal(t, common.HexToAddress(wallet).Hex(), hist.gotWallet)
		assert.Equal(t, domain.Source(""), hist.gotSource)
		assert.Equal(t, 10, hist.gotLimit)
	})

	t.Run("passes source filter", func(t *testing.T) {
		hist := &fakeHistory{records: records[:1]}
		h := NewRouter(Deps{History: hist})

		rec := do(t, h, http.MethodGet, "/v1/wallets/"+wallet+"/transactions?source=chain", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.SourceChain, hist.gotSource)
		assert.Equal(t, 0, hist.gotLimit)
	})

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{"invalid address", "/v1/wallets/not-an-address/transactions", nil, http.StatusBadRequest},
		{"invalid limit", "/v1/wallets/" + wallet + "/transactions?limit=ten", nil, http.StatusBadRequest},
		{"unknown source", "/v1/wallets/" + wallet + "/transactions?source=btc", fmt.Errorf("%w: unknown history source", domain.ErrInvalidInput), http.StatusBadRequest},
		{"feed failure", "/v1/wallets/" + wallet + "/transactions", fmt.Errorf("mainnet history: %w", domain.ErrExternalFetch), http.StatusBadGateway},
		{"ledger failure", "/v1/wallets/" + wallet + "/transactions", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Deps{History: &fakeHistory{err: tt.err}})

			rec := do(t, h, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h := NewRouter(Deps{Health: health, History: &fakeHistory{}})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// generate one instrumented request
	do(t, h, http.MethodGet, "/v1/wallets/"+wallet+"/transactions", "")

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loyalty_ledger_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/v1/wallets/{address}/transactions"`)
}

func TestRateLimit(t *testing.T) {
	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := NewRouter(Deps{History: &fakeHistory{}, Health: health, RequestsPerSecond: 1, Burst: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, h, http.MethodGet, "/v1/wallets/"+wallet+"/transactions", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// only /v1 is limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "clients have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, rl.allow("10.0.0.1"), "bucket refills")

	now = now.Add(2 * idleLimiterTTL)
	rl.allow("10.0.0.3")
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.clients, 1, "idle clients are evicted")
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientKey(r))

	r.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", clientKey(r))
}
