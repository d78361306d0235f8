package dex

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		text     string
		decimals uint8
		want     string
	}{
		{"0.25", 18, "250000000000000000"},
		{"40", 6, "40000000"},
		{"1.123456789", 6, "1123456"},
		{"0", 18, "0"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.text, tc.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tc.text, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q, %d) = %s, want %s", tc.text, tc.decimals, got, tc.want)
		}
	}

	for _, bad := range []string{"", "abc", "-1"} {
		if _, err := ParseUnits(bad, 18); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatUnits(value, 18); got != "1.500000000000000000" {
		t.Fatalf("FormatUnits = %s", got)
	}
	if got := FormatUnits(big.NewInt(7_500_000_000), 9); got != "7.500000000" {
		t.Fatalf("FormatUnits gwei = %s", got)
	}
	if got := FormatUnits(big.NewInt(42), 0); got != "42" {
		t.Fatalf("FormatUnits no decimals = %s", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Fatalf("FormatUnits nil = %s", got)
	}
}
