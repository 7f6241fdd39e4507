package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{"USD", USD, false},
		{" gbp ", GBP, false},
		{"ZAR", ZAR, false},
		{"XYZ", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownCurrency) {
				t.Errorf("ParseCurrency(%q) err = %v, want ErrUnknownCurrency", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCurrency(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseCurrency(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSupportedCurrencies(t *testing.T) {
	if len(SupportedCurrencies) != 21 {
		t.Fatalf("expected 21 supported currencies, got %d", len(SupportedCurrencies))
	}
	if Currency("BTC").Supported() {
		t.Error("BTC should not be supported")
	}
}

func TestCurrency_Format(t *testing.T) {
	got := USD.Format(decimal.RequireFromString("1234.5"))
	if got != "$1,234.50" {
		t.Errorf("USD.Format = %q, want %q", got, "$1,234.50")
	}
}

func TestCurrency_FormatOverflow(t *testing.T) {
	got := USD.Format(decimal.RequireFromString("100000000000000000000"))
	if want := "100000000000000000000.00 USD"; got != want {
		t.Errorf("USD.Format = %q, want %q", got, want)
	}
}
