// Package api exposes transfer validation and wallet history over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/metrics"
	"github.com/matrixise/loyalty-ledger/internal/storage"
)

// requestTimeout bounds a single API request, including its external calls.
const requestTimeout = 30 * time.Second

// TransferDecoder turns raw signed ledger transactions into transfers.
type TransferDecoder interface {
	DecodeSignedTransfer(ctx context.Context, raw []byte) (domain.DecodedTransfer, *types.Transaction, error)
}

// TransferSubmitter broadcasts signed transactions to the ledger chain.
type TransferSubmitter interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TokenLookup resolves the token a transfer moves.
type TokenLookup interface {
	ByAddress(addr common.Address) (domain.Token, error)
}

// TransferValidator decides whether a transfer may proceed.
type TransferValidator interface {
	Validate(ctx context.Context, token domain.Token, destination common.Address, transfer domain.DecodedTransfer) domain.Decision
}

// HistoryService serves merged wallet history.
type HistoryService interface {
	History(ctx context.Context, wallet string, source domain.Source, limit int) ([]domain.HistoryRecord, error)
}

// LedgerRecorder persists submitted transfers.
type LedgerRecorder interface {
	InsertLedgerTransfer(ctx context.Context, t storage.LedgerTransfer) error
}

// Deps are the collaborators served by the router.
type Deps struct {
	Decoder   TransferDecoder
	Submitter TransferSubmitter
	Tokens    TokenLookup
	Validator TransferValidator
	History   HistoryService
	Recorder  LedgerRecorder
	Health    http.Handler

	// RequestsPerSecond and Burst limit each client IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

type server struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &server{deps: d, validate: validator.New(), now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if d.RequestsPerSecond > 0 {
			r.Use(newRateLimiter(d.RequestsPerSecond, d.Burst).Handler)
		}
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/transfers", s.submitTransfer)
		r.Post("/transfers/validate", s.validateTransfer)
		r.Get("/wallets/{address}/transactions", s.walletHistory)
	})

	return r
}
