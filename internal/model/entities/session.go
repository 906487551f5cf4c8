package entities

import "strings"

// Session is the wallet and network context of the caller.
// It is passed explicitly to every component that needs it.
type Session struct {
	WalletAddress string `json:"walletAddress"`
	ChainID       string `json:"chainId,omitempty"`
	Connected     bool   `json:"connected"`
}

// Owns reports whether the session wallet matches addr (case-insensitive hex).
func (s Session) Owns(addr string) bool {
	return s.Connected && SameAddress(s.WalletAddress, addr)
}

// SameAddress compares two wallet addresses ignoring case and surrounding blanks.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
