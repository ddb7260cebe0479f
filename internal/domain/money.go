package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitsPerMajor is the scale between API amounts (major units) and the
// int64 minor units stored in the ledger.
const minorUnitsPerMajor = 100

// ErrInvalidAmount rejects API amounts that are not positive decimals
// representable in whole minor units.
var ErrInvalidAmount = errors.New("amount must be a positive decimal with at most two fraction digits")

// ParseAmount converts a decimal string in major currency units (e.g.
// "2500.75") into int64 minor units. Parsing goes through decimal arithmetic
// so monetary values never touch floating point.
func ParseAmount(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	minor := value.Mul(decimal.NewFromInt(minorUnitsPerMajor))
	if !minor.IsInteger() || !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !minor.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}

	return minor.IntPart(), nil
}

// FormatAmount renders a signed minor-unit amount as a major-unit decimal
// string with two fraction digits.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
