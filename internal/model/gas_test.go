package model

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMulCeil(t *testing.T) {
	cases := []struct {
		value int64
		m     string
		want  int64
	}{
		{100, "1.1", 110},
		{110, "1.1", 121},
		{121, "1.1", 134},
		{5_000_000_000, "1.5", 7_500_000_000},
		{7, "1", 7},
	}
	for _, tc := range cases {
		got := MulCeil(big.NewInt(tc.value), decimal.RequireFromString(tc.m))
		if got.Int64() != tc.want {
			t.Fatalf("MulCeil(%d, %s) = %s, want %d", tc.value, tc.m, got, tc.want)
		}
	}
	if MulCeil(nil, decimal.NewFromInt(2)) != nil {
		t.Fatalf("expected nil for nil value")
	}
}

func TestScaledKeepsFeeCapAboveTip(t *testing.T) {
	gas := &GasOverride{Style: FeeMarket, GasFeeCap: big.NewInt(100), GasTipCap: big.NewInt(95)}
	scaled := gas.Scaled(decimal.RequireFromString("1.1"))
	if scaled.GasTipCap.Int64() != 105 || scaled.GasFeeCap.Int64() != 105 {
		t.Fatalf("unexpected scaled gas: tip %s cap %s", scaled.GasTipCap, scaled.GasFeeCap)
	}
	if gas.GasTipCap.Int64() != 95 {
		t.Fatalf("Scaled mutated its receiver")
	}

	legacy := (&GasOverride{Style: FeeLegacy, GasPrice: big.NewInt(100)}).Scaled(decimal.RequireFromString("1.1"))
	if legacy.GasPrice.Int64() != 110 || legacy.GasTipCap != nil {
		t.Fatalf("unexpected legacy gas: %+v", legacy)
	}
}
