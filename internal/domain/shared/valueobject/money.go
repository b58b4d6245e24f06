package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// TND is the Tunisian dinar, subdivided into 1000 millimes.
const TND Currency = "TND"

// DefaultCurrency is the default currency for the system
const DefaultCurrency = TND

// millimesPerDinar is the minor unit factor for TND
var millimesPerDinar = decimal.NewFromInt(1000)

// Money is a value object representing monetary amounts.
// It is immutable; all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoneyTND creates Money in dinars
func NewMoneyTND(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: TND}
}

// NewMoneyFromString creates TND Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyTND(d), nil
}

// FromMillimes builds TND Money from an integer amount of millimes
func FromMillimes(millimes int64) Money {
	return NewMoneyTND(decimal.NewFromInt(millimes).Div(millimesPerDinar))
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Millimes returns the amount in the minor unit, rounded half-up
func (m Money) Millimes() int64 {
	return m.amount.Mul(millimesPerDinar).Round(0).IntPart()
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}
}

// MultiplyByInt returns the amount times factor
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor)), currency: m.currency}
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// String formats the amount with three decimals and the currency code
func (m Money) String() string {
	return m.amount.StringFixed(3) + " " + string(m.currency)
}
