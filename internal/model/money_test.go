package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"whole number", "99.00", "99"},
		{"with cents", "123.45", "123.45"},
		{"zero", "0.00", "0"},
		{"empty string", "", "0"},
		{"no decimals", "100", "100"},
		{"whitespace", "  16.5 ", "16.5"},
		{"invalid string", "abc", "0"},
		{"negative", "-10.00", "-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.input)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		minorUnit int
		want      string
	}{
		{"two decimals", "1600", 2, "16"},
		{"cents", "1234", 2, "12.34"},
		{"zero-decimal currency", "500", 0, "500"},
		{"three decimals", "1500", 3, "1.5"},
		{"empty", "", 2, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromMinorUnits(tt.input, tt.minorUnit)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("FromMinorUnits(%q, %d) = %s, want %s", tt.input, tt.minorUnit, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		locale string
		want   string
	}{
		{"integer gets two decimals", "10", "", "10.00"},
		{"one decimal padded", "9.9", "en_US", "9.90"},
		{"rounds half up", "1.005", "en_US", "1.01"},
		{"thousands separator", "1234.5", "en_US", "1,234.50"},
		{"german separators", "1234.5", "de_DE", "1.234,50"},
		{"dutch decimal comma", "16", "nl_NL", "16,00"},
		{"unknown locale falls back", "16", "not a locale", "16.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAmount(decimal.RequireFromString(tt.amount), tt.locale)
			if got != tt.want {
				t.Errorf("FormatAmount(%s, %q) = %q, want %q", tt.amount, tt.locale, got, tt.want)
			}
		})
	}
}
