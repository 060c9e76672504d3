package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

const maxTransferBody = 128 << 10

type transferRequest struct {
	RawTransaction string `json:"raw_transaction" validate:"required,startswith=0x,hexadecimal"`
}

type valuationResponse struct {
	GrossValue           string `json:"gross_value"`
	Fee                  string `json:"fee"`
	EstimatedChainFee    string `json:"estimated_chain_fee"`
	GasCost              string `json:"gas_cost"`
	NetValue             string `json:"net_value"`
	ReferenceToChainRate string `json:"reference_to_chain_rate"`
	ChainToFiatRate      string `json:"chain_to_fiat_rate,omitempty"`
	GasPrice             string `json:"gas_price"`
	GasUnits             string `json:"gas_units"`
}

type transferResponse struct {
	Hash      string             `json:"hash"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Token     string             `json:"token"`
	Symbol    string             `json:"symbol"`
	Amount    string             `json:"amount"`
	Outcome   domain.Outcome     `json:"outcome"`
	Valid     bool               `json:"valid"`
	Message   string             `json:"message,omitempty"`
	Valuation *valuationResponse `json:"valuation,omitempty"`
	Submitted bool               `json:"submitted"`
}

func newValuationResponse(v *domain.Valuation) *valuationResponse {
	if v == nil {
		return nil
	}
	out := &valuationResponse{
		GrossValue:           v.GrossValue.String(),
		Fee:                  v.Fee.String(),
		EstimatedChainFee:    v.EstimatedChainFee.String(),
		GasCost:              v.GasCost.String(),
		NetValue:             v.NetValue.String(),
		ReferenceToChainRate: v.ReferenceToChainRate.String(),
		GasPrice:             v.GasPrice.String(),
		GasUnits:             v.GasUnits.String(),
	}
	if !v.ChainToFiatRate.IsZero() {
		out.ChainToFiatRate = v.ChainToFiatRate.String()
	}
	return out
}

// evaluation is a decoded and validated transfer.
type evaluation struct {
	transfer domain.DecodedTransfer
	tx       *types.Transaction
	token    domain.Token
	decision domain.Decision
}

func (e evaluation) response() transferResponse {
	return transferResponse{
		Hash:      e.transfer.Hash.Hex(),
		From:      e.transfer.From.Hex(),
		To:        e.transfer.Recipient.Hex(),
		Token:     e.transfer.Token.Hex(),
		Symbol:    e.token.Symbol,
		Amount:    e.transfer.Amount.String(),
		Outcome:   e.decision.Outcome,
		Valid:     e.decision.Valid(),
		Message:   e.decision.Message,
		Valuation: newValuationResponse(e.decision.Valuation),
	}
}

// evaluate decodes the request and validates the transfer. On failure it writes
// the error response and returns false.
func (s *server) evaluate(w http.ResponseWriter, r *http.Request) (evaluation, bool) {
	var req transferRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTransferBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return evaluation{}, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "raw_transaction must be a 0x-prefixed hex string")
		return evaluation{}, false
	}

	raw, err := hexutil.Decode(req.RawTransaction)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("raw_transaction: %v", err))
		return evaluation{}, false
	}

	transfer, tx, err := s.deps.Decoder.DecodeSignedTransfer(r.Context(), raw)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return evaluation{}, false
	}

	token, err := s.deps.Tokens.ByAddress(transfer.Token)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return evaluation{}, false
	}

	decision := s.deps.Validator.Validate(r.Context(), token, transfer.Recipient, transfer)
	return evaluation{transfer: transfer, tx: tx, token: token, decision: decision}, true
}

// validateTransfer is a dry run: nothing is submitted or recorded.
func (s *server) validateTransfer(w http.ResponseWriter, r *http.Request) {
	e, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	writeJSON(w, statusForDecision(e.decision, http.StatusOK), e.response())
}

// submitTransfer validates a transfer, broadcasts it to the ledger chain and records it.
func (s *server) submitTransfer(w http.ResponseWriter, r *http.Request) {
	e, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	resp := e.response()

	if !e.decision.Valid() {
		writeJSON(w, statusForDecision(e.decision, http.StatusAccepted), resp)
		return
	}

	if err := s.deps.Submitter.SendTransaction(r.Context(), e.tx); err != nil {
		slog.Error("Transfer submission failed", "hash", resp.Hash, "error", err)
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, "submit transaction: "+err.Error())
		return
	}
	resp.Submitted = true

	if s.deps.Recorder != nil {
		record := storage.LedgerTransfer{
			Hash:         resp.Hash,
			BlockTime:    s.now().UTC(),
			From:         resp.From,
			To:           resp.To,
			TokenAddress: resp.Token,
			Symbol:       e.token.Symbol,
			Amount:       decimal.NewFromBigInt(e.transfer.Amount, 0),
			Outcome:      e.decision.Outcome,
		}
		if v := e.decision.Valuation; v != nil {
			record.NetValue = decimal.NewNullDecimal(v.NetValue)
		}
		// already broadcast: recording failures are only logged
		if err := s.deps.Recorder.InsertLedgerTransfer(r.Context(), record); err != nil {
			slog.Error("Failed to record ledger transfer", "hash", resp.Hash, "error", err)
		}
	}

	slog.Info("Transfer submitted", "hash", resp.Hash, "token", resp.Symbol, "outcome", resp.Outcome)
	writeJSON(w, http.StatusAccepted, resp)
}
