package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnits maps ISO 4217 currency codes to their minor-unit exponent.
// These are the currencies PayRush invoices in.
var minorUnits = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"NGN": 2, // Nigerian Naira
	"KES": 2, // Kenyan Shilling
	"GHS": 2, // Ghanaian Cedi
	"ZAR": 2, // South African Rand
	"UGX": 0, // Ugandan Shilling has no minor unit
	"RWF": 0, // Rwandan Franc has no minor unit
}

// Supported reports whether the code is a currency this service understands.
func Supported(code string) bool {
	_, ok := minorUnits[code]
	return ok
}

// Exponent returns the minor-unit exponent for a currency code.
func Exponent(code string) (int32, error) {
	exp, ok := minorUnits[code]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", code)
	}
	return exp, nil
}

// Normalize rounds an amount to the currency's canonical minor-unit form for
// storage and display. It must not be used before comparing amounts: rounding
// would absorb sub-minor-unit deltas that a comparison has to see. Unknown
// currencies fall back to two decimal places rather than failing, since the
// invoice record is the authority on whether the currency is acceptable.
func Normalize(amount decimal.Decimal, code string) decimal.Decimal {
	exp, ok := minorUnits[code]
	if !ok {
		exp = 2
	}
	return amount.Round(exp)
}
