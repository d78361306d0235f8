package detect

import (
	"context"
	"math/big"
	"testing"

	"liquiditySniper/internal/model"
)

func TestListingAddMinimumLiquidity(t *testing.T) {
	input := packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)

	tests := []struct {
		name    string
		minimum int64
		want    bool
	}{
		{name: "quote side above minimum", minimum: 40, want: true},
		{name: "quote side equal to minimum", minimum: 50, want: true},
		{name: "quote side below minimum", minimum: 60, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := baseContext(t)
			dc.MinimumLiquidity = big.NewInt(tt.minimum)
			out := ListingAdd{}.Detect(context.Background(), legacyTx(dev, router, input), dc)
			if !tt.want {
				if out.Verdict != nil {
					t.Fatalf("expected no verdict, got %+v", out.Verdict)
				}
				return
			}
			if out.Verdict == nil {
				t.Fatalf("expected verdict")
			}
			if out.Verdict.Kind != model.TriggerListing {
				t.Fatalf("kind = %s", out.Verdict.Kind)
			}
			if *out.Verdict.LiquidityToken != tokenB {
				t.Fatalf("liquidity token = %s, want %s", out.Verdict.LiquidityToken.Hex(), tokenB.Hex())
			}
		})
	}
}

func TestListingAddPurchaseOnSecondSide(t *testing.T) {
	input := packRouter(t, "addLiquidity", tokenB, tokenA, big.NewInt(45), big.NewInt(1000), big.NewInt(1), big.NewInt(1), self, deadline)
	dc := baseContext(t)
	out := ListingAdd{}.Detect(context.Background(), legacyTx(dev, router, input), dc)
	if out.Verdict == nil || *out.Verdict.LiquidityToken != tokenB {
		t.Fatalf("expected liquidity token %s, got %+v", tokenB.Hex(), out.Verdict)
	}
}

func TestListingAddNative(t *testing.T) {
	input := packRouter(t, "addLiquidityETH", tokenA, big.NewInt(1000), big.NewInt(1), big.NewInt(1), self, deadline)
	dc := baseContext(t)

	tx := legacyTx(dev, router, input)
	tx.Value = big.NewInt(39)
	if out := (ListingAdd{}).Detect(context.Background(), tx, dc); out.Verdict != nil {
		t.Fatalf("expected no verdict below minimum")
	}

	tx.Value = big.NewInt(40)
	out := ListingAdd{}.Detect(context.Background(), tx, dc)
	if out.Verdict == nil || *out.Verdict.LiquidityToken != wrapped {
		t.Fatalf("expected wrapped native liquidity, got %+v", out.Verdict)
	}
}

func TestListingAddRejectsOtherLockedToken(t *testing.T) {
	input := packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)
	dc := baseContext(t)
	dc.LiquidityToken = model.AddressPtr(tokenC)
	if out := (ListingAdd{}).Detect(context.Background(), legacyTx(dev, router, input), dc); out.Verdict != nil {
		t.Fatalf("expected no verdict when locked to another liquidity token")
	}
}

func TestListingAddIgnoresOtherTargets(t *testing.T) {
	input := packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)
	dc := baseContext(t)
	if out := (ListingAdd{}).Detect(context.Background(), legacyTx(dev, tokenC, input), dc); out.Verdict != nil {
		t.Fatalf("expected no verdict for a call that does not hit the router")
	}
}
