// Package vat converts between net and gross monetary amounts.
package vat

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidRate is returned for negative VAT rates.
var ErrInvalidRate = errors.New("invalid_vat_rate")

var one = decimal.NewFromInt(1)

// Calculator is a pure converter. Results are rounded half-up to the
// configured number of decimal places after each conversion, not
// before, so repeated conversions are idempotent.
type Calculator struct {
	places int32
}

func New(places int32) Calculator {
	return Calculator{places: places}
}

// GrossFromNet returns net × (1 + rate), rounded.
func (c Calculator) GrossFromNet(net, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsNegative() {
		return decimal.Zero, ErrInvalidRate
	}
	return net.Mul(one.Add(rate)).Round(c.places), nil
}

// NetFromGross returns gross ÷ (1 + rate), rounded.
func (c Calculator) NetFromGross(gross, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsNegative() {
		return decimal.Zero, ErrInvalidRate
	}
	return gross.Div(one.Add(rate)).Round(c.places), nil
}

// Round applies the calculator's monetary rounding to an amount.
func (c Calculator) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.places)
}
