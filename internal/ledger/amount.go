package ledger

import (
	"strings"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"github.com/shopspring/decimal"
)

// MaxScale is the most decimal places an amount may carry. Satoshi amounts
// need 8; anything past 18 is noise.
const MaxScale = 18

// MaxAmount bounds the magnitude of any single amount.
var MaxAmount = decimal.New(1, 15)

// maxExponent keeps "1e400000000"-style input from reaching a comparison,
// which would rescale it into an enormous integer.
const maxExponent = 15

// ParseAmount parses a signed decimal amount. decimal rejects NaN and
// infinities, so any value that parses is finite. The exponent is checked
// before any arithmetic touches the value.
func ParseAmount(raw domain.RawAmount, field string) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return decimal.Zero, &domain.ErrInvalidAmount{Field: field, Reason: "required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &domain.ErrInvalidAmount{Field: field, Reason: "not a number"}
	}
	if err := CheckRange(d, field); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckRange rejects amounts with more than MaxScale decimal places or a
// magnitude above MaxAmount. Decimals decoded straight from JSON must pass
// through it before they are compared or added.
func CheckRange(d decimal.Decimal, field string) error {
	if exp := d.Exponent(); exp < -MaxScale {
		return &domain.ErrInvalidAmount{Field: field, Reason: "too many decimal places"}
	} else if exp > maxExponent {
		return &domain.ErrInvalidAmount{Field: field, Reason: "out of range"}
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return &domain.ErrInvalidAmount{Field: field, Reason: "out of range"}
	}
	return nil
}

// ParsePositiveAmount parses an amount that must be strictly greater than zero.
func ParsePositiveAmount(raw domain.RawAmount, field string) (decimal.Decimal, error) {
	d, err := ParseAmount(raw, field)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, &domain.ErrInvalidAmount{Field: field, Reason: "must be positive"}
	}
	return d, nil
}
