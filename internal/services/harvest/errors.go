package harvest

import (
	"errors"

	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/persistence"
)

var (
	// ErrInvalidInput: missing or malformed form fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNetworkFailure: an upstream call could not complete or returned a non-2xx status.
	ErrNetworkFailure = errors.New("network failure")
	// ErrValidationFailed: the feasibility computation produced no usable result.
	ErrValidationFailed = errors.New("validation failed")
	// ErrOCRFailure: the recognition engine failed.
	ErrOCRFailure = errors.New("ocr failure")
	// ErrCodeNotFound: no live one-time code for the harvest.
	ErrCodeNotFound = errors.New("harvest code not found or expired")
	// ErrNotEligible: a gate required for submission or minting is not satisfied.
	ErrNotEligible = errors.New("harvest not eligible")

	ErrUnauthorized  = ledger.ErrUnauthorized
	ErrAlreadyMinted = ledger.ErrAlreadyMinted
	ErrNotFound      = persistence.ErrNotFound
)
