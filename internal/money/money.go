// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package money formats amounts stored in minor units (cents) for display.
package money

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Scale returns the number of decimal digits of a currency (2 for EUR, 0 for KRW).
// Unknown codes default to 2.
func Scale(code string) int {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Format renders an amount in minor units with the currency symbol for lang,
// e.g. 1250 EUR in English is "€ 12.50". Unknown currencies fall back to the
// plain code.
func Format(minor int64, code string, lang language.Tag) string {
	p := message.NewPrinter(lang)
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return p.Sprintf("%s %.2f", strings.ToUpper(code), float64(minor)/100)
	}
	scale, _ := currency.Standard.Rounding(unit)
	major := float64(minor) / math.Pow10(scale)
	return p.Sprint(currency.Symbol(unit.Amount(major)))
}

// FormatEnglish is Format with language.English.
func FormatEnglish(minor int64, code string) string {
	return Format(minor, code, language.English)
}
