package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts an on-chain integer amount encoded as a decimal string into an
// exact decimal. Fractions, negatives and empty strings are rejected.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %q", ErrInvalidAmount, value)
	}
	if !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("%w: fractional %q", ErrInvalidAmount, value)
	}
	return d.Truncate(0), nil
}

// ParseOptionalAmount is ParseAmount that maps an empty string to nil.
func ParseOptionalAmount(value string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := ParseAmount(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AmountFromBig converts a decoded ABI integer into an exact decimal.
func AmountFromBig(value *big.Int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, 0)
}

// NormalizeAddress lower-cases and trims an address. Empty input stays empty.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
