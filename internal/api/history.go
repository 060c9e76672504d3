package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

type historyResponse struct {
	Wallet       string                 `json:"wallet"`
	Source       string                 `json:"source,omitempty"`
	Count        int                    `json:"count"`
	Transactions []domain.HistoryRecord `json:"transactions"`
}

func (s *server) walletHistory(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	wallet := common.HexToAddress(address).Hex()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	source := domain.Source(r.URL.Query().Get("source"))
	records, err := s.deps.History.History(r.Context(), wallet, source, limit)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Wallet:       wallet,
		Source:       string(source),
		Count:        len(records),
		Transactions: records,
	})
}
