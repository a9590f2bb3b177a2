// Copyright 2026 Mandatevault Ltd.

package verifier

import "github.com/shopspring/decimal"

// knownCurrencies is the recognized subset of ISO-4217 currency codes.
var knownCurrencies = map[string]bool{
	"AUD": true, "BRL": true, "CAD": true, "CHF": true, "CNY": true,
	"CZK": true, "DKK": true, "EUR": true, "GBP": true, "HKD": true,
	"INR": true, "JPY": true, "KRW": true, "MXN": true, "NOK": true,
	"NZD": true, "PLN": true, "SEK": true, "SGD": true, "USD": true,
	"ZAR": true,
}

// KnownCurrency reports whether the given code is in the recognized
// ISO-4217 subset.
func KnownCurrency(code string) bool {
	return knownCurrencies[code]
}

// maxAmountLimit is the upper bound on any amount limit.
var maxAmountLimit = decimal.New(10, 11).Sub(decimal.New(1, -2))

// ValidAmount reports whether the given amount is positive, within the
// global bound, and has at most two fractional digits.
func ValidAmount(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	if d.GreaterThan(maxAmountLimit) {
		return false
	}
	return d.Exponent() >= -2
}
