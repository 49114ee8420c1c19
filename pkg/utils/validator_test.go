package utils

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"btcusdt", "BTCUSDT"},
		{"  ETHUSDT  ", "ETHUSDT"},
		{"BtcUsdt", "BTCUSDT"},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.input); got != tt.expected {
			t.Errorf("NormalizeSymbol(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"BTCUSDT", "ethusdt", "1000PEPEUSDT"}
	invalid := []string{"", "   ", "BTC/USDT", "BTC-USDT", "VERYLONGSYMBOLNAME12345"}

	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Errorf("ValidateSymbol(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range invalid {
		if err := ValidateSymbol(s); err == nil {
			t.Errorf("ValidateSymbol(%q) expected error", s)
		}
	}
}

func TestValidateSide(t *testing.T) {
	if err := ValidateSide("BUY"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSide("SELL"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, s := range []string{"buy", "LONG", ""} {
		if err := ValidateSide(s); err == nil {
			t.Errorf("ValidateSide(%q) expected error", s)
		}
	}
}

func TestValidatePrice(t *testing.T) {
	if err := ValidatePrice(50000); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, p := range []float64{0, -1} {
		if err := ValidatePrice(p); err == nil {
			t.Errorf("ValidatePrice(%f) expected error", p)
		}
	}
}
