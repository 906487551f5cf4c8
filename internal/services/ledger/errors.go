package ledger

import "errors"

var (
	// ErrUnauthorized is returned when a non-owner attempts to mint.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyMinted is returned when a reference was already credited.
	ErrAlreadyMinted = errors.New("already minted")
	// ErrInsufficientBalance is returned by transfers exceeding the sender balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned for zero, negative or unparseable amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidAddress is returned for malformed wallet addresses.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrListingNotFound is returned when a trade names an unknown listing.
	ErrListingNotFound = errors.New("listing not found")
)
