// Package money provides the exact decimal amount used for balances and
// mutation amounts. Arithmetic never rounds.
package money

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an exact decimal quantity of money. The zero value is zero.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{}

// NewFromString parses a decimal string such as "100.00" or "-3.5".
func NewFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustParse is NewFromString for constants and tests; it panics on bad input.
func MustParse(s string) Amount {
	a, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

func NewFromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// Decimal exposes the underlying value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Sign() int           { return a.d.Sign() }
func (a Amount) IsPositive() bool    { return a.d.IsPositive() }
func (a Amount) IsNegative() bool    { return a.d.IsNegative() }
func (a Amount) IsZero() bool        { return a.d.IsZero() }
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Cmp(b Amount) int    { return a.d.Cmp(b.d) }

// Equal compares numerically, so 1.0 equals 1.
func (a Amount) Equal(b Amount) bool              { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool           { return a.d.LessThan(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }

func (a Amount) String() string { return a.d.String() }

// Scale returns the number of fractional digits, ignoring trailing zeros.
func (a Amount) Scale() int32 {
	if a.d.IsZero() {
		return 0
	}
	digits := a.coefficientDigits()
	zeros := len(digits) - len(strings.TrimRight(digits, "0"))
	scale := -int64(a.d.Exponent()) - int64(zeros)
	if scale < 0 {
		return 0
	}
	return int32(scale)
}

// IntegerDigits returns the number of digits before the decimal point, zero
// when the magnitude is below one.
func (a Amount) IntegerDigits() int {
	if a.d.IsZero() {
		return 0
	}
	n := int64(len(a.coefficientDigits())) + int64(a.d.Exponent())
	if n < 0 {
		return 0
	}
	return int(n)
}

func (a Amount) coefficientDigits() string {
	return new(big.Int).Abs(a.d.Coefficient()).String()
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.d.Value()
}

// Scan implements sql.Scanner. Numeric columns arrive as string, []byte,
// float64 or int64 depending on the driver.
func (a *Amount) Scan(value any) error {
	if value == nil {
		a.d = decimal.Zero
		return nil
	}
	return a.d.Scan(value)
}

// MarshalJSON renders the amount as a JSON string to keep every digit.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("amount must not be null")
	}
	s := string(bytes.Trim(data, `"`))
	parsed, err := NewFromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
