package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). All cart and pricing arithmetic
// happens on Money; conversion to and from decimal numbers only happens at
// the wire boundary.
type Money int64

// MoneyFromFloat converts a decimal price as sent by the backend into cents,
// rounding half away from zero.
func MoneyFromFloat(f float64) Money {
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// MoneyFromDecimal converts a decimal amount into cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Float64 returns the amount in major units for wire encoding.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// Mul multiplies the amount by a quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// MarshalJSON encodes the amount in major units, the way the backend expects.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*m = MoneyFromDecimal(d)
	return nil
}
