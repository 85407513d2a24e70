package payment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are int64 minor units everywhere inside the core. Providers that
// speak major-unit decimals are converted here, at the adapter edge, with a
// fixed two decimal places.

func minorToMajor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

func minorToMajorNumber(amount int64) json.Number {
	return json.Number(minorToMajor(amount))
}

func majorToMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Round(2).Shift(2).IntPart(), nil
}
