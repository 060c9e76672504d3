package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/matrixise/loyalty-ledger/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusForError maps the error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrWalletNotRecognized):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExternalFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusForDecision maps a validation outcome onto an HTTP status. ok is the
// status used for transfers that may proceed.
func statusForDecision(d domain.Decision, ok int) int {
	switch d.Outcome {
	case domain.OutcomeAccepted, domain.OutcomeNotApplicable:
		return ok
	case domain.OutcomeRejected:
		return http.StatusBadRequest
	default:
		if errors.Is(d.Err, domain.ErrExternalFetch) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
