package ledger

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Decimals is the token precision (ERC-20 style).
const Decimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ParseUnits converts a decimal amount such as "12.5" into base units.
// Digits beyond Decimals are truncated.
func ParseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	s = strings.TrimPrefix(s, "+")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		frac = frac[:Decimals]
	}
	frac += strings.Repeat("0", Decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FloatUnits converts a float amount, as produced by the reward computation,
// into base units.
func FloatUnits(f float64) (*big.Int, error) {
	if f < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, f)
	}
	return ParseUnits(strconv.FormatFloat(f, 'f', -1, 64))
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))

	out := q.String()
	if r.Sign() != 0 {
		frac := r.String()
		frac = strings.Repeat("0", Decimals-len(frac)) + frac
		out += "." + strings.TrimRight(frac, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
