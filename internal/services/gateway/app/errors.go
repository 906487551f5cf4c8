package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/harvest"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
)

// StatusFor maps pipeline errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, harvest.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, harvest.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, harvest.ErrNotFound),
		errors.Is(err, harvest.ErrCodeNotFound),
		errors.Is(err, ledger.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, harvest.ErrAlreadyMinted),
		errors.Is(err, harvest.ErrNotEligible),
		errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, harvest.ErrNetworkFailure),
		errors.Is(err, harvest.ErrValidationFailed),
		errors.Is(err, harvest.ErrOCRFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code >= 500 {
		log.Errorw("request failed", "status", code, "err", err)
	} else {
		log.Debugw("request rejected", "status", code, "err", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
