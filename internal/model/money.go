package model

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ParseAmount converts a decimal string in major units ("16.00", "10") to a Decimal.
// Empty or malformed input yields zero; upstream commerce APIs occasionally
// send "" for totals of empty carts.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromMinorUnits converts an amount already in minor units to major units.
// WooCommerce Store API sends prices this way, together with currency_minor_unit.
// Examples: ("1600", 2) → 16.00, ("500", 0) → 500
func FromMinorUnits(s string, minorUnit int) decimal.Decimal {
	return ParseAmount(s).Shift(int32(-minorUnit))
}

// FormatAmount renders a monetary amount with exactly two decimals, using the
// separators of the given host locale ("en_US", "de_DE", ...).
// Examples: (10, "") → "10.00", (1234.5, "en_US") → "1,234.50", (1234.5, "de_DE") → "1.234,50"
func FormatAmount(amount decimal.Decimal, locale string) string {
	p := message.NewPrinter(LocaleTag(locale))
	return p.Sprintf("%v", number.Decimal(
		amount.Round(2).InexactFloat64(),
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}

// LocaleTag maps a WordPress locale string to a language tag.
// Unknown or empty locales fall back to American English.
func LocaleTag(locale string) language.Tag {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return language.AmericanEnglish
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}
