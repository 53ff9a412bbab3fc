package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Places is the number of fractional digits kept for currency amounts.
	Places = 2
	// PercentagePlaces is the number of fractional digits allowed in a BTW rate.
	PercentagePlaces = 2
)

// ErrInvalidAmount is returned for malformed or out-of-range monetary input.
var ErrInvalidAmount = errors.New("money: invalid amount")

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Round rounds to currency precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ComputeBTW splits a gross amount into its BTW share and the net remainder.
// The two parts always add up to gross exactly and neither is negative.
// Gross must be a whole number of cents.
func ComputeBTW(gross, percentage decimal.Decimal) (btw decimal.Decimal, net decimal.Decimal, err error) {
	if err := ValidAmount("gross", gross); err != nil {
		return zero, zero, err
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return zero, zero, fmt.Errorf("%w: btw percentage %s outside [0,100]", ErrInvalidAmount, percentage.String())
	}
	if err := WithinPlaces("btw percentage", percentage, PercentagePlaces); err != nil {
		return zero, zero, err
	}
	btw = Round(gross.Mul(percentage).Shift(-2))
	net = gross.Sub(btw)
	return btw, net, nil
}

// Sum adds amounts exactly. An empty input sums to zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

// NonNegative returns ErrInvalidAmount when d is below zero.
func NonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidAmount, field)
	}
	return nil
}

// WithinPlaces returns ErrInvalidAmount when d carries more than places
// significant fractional digits. Trailing zeros are ignored.
func WithinPlaces(field string, d decimal.Decimal, places int32) error {
	if !d.Equal(d.Truncate(places)) {
		return fmt.Errorf("%w: %s %s has more than %d decimals", ErrInvalidAmount, field, d.String(), places)
	}
	return nil
}

// ValidAmount checks a stored currency amount: not negative, whole cents.
func ValidAmount(field string, d decimal.Decimal) error {
	if err := NonNegative(field, d); err != nil {
		return err
	}
	return WithinPlaces(field, d, Places)
}

// ParseAmount parses a decimal string such as "12.50".
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return d, nil
}

// MustParse parses a literal amount and panics on malformed input.
func MustParse(value string) decimal.Decimal {
	d, err := ParseAmount(value)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders an amount with currency precision.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
