package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied quantity to a float.
//
// Both "12.5" and "12,5" are accepted. Negative values are rejected, zero is
// allowed because a reset or a correction legitimately records nothing eaten.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return d.InexactFloat64(), nil
}

// FormatAmount renders v with one decimal place, the precision used in
// suggestion lines and reports.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1)
}

// RoundPercent rounds a percentage to one decimal for presentation.
func RoundPercent(p float64) float64 {
	return decimal.NewFromFloat(p).Round(1).InexactFloat64()
}
