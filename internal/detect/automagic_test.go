package detect

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquiditySniper/internal/model"
)

func TestAutoMagicLiquidityAdd(t *testing.T) {
	dc := baseContext(t)
	dc.PurchaseToken = nil
	dc.DevWallet = nil
	input := packRouter(t, "addLiquidity", tokenC, tokenB, big.NewInt(1000), big.NewInt(45), big.NewInt(1), big.NewInt(1), stranger, deadline)

	out := AutoMagic{}.Detect(context.Background(), legacyTx(stranger, router, input), dc)
	if out.Verdict == nil {
		t.Fatalf("expected verdict")
	}
	v := out.Verdict
	if v.Kind != model.TriggerAutoMagic || *v.PurchaseToken != tokenC || *v.LiquidityToken != tokenB || *v.DevWallet != stranger {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestAutoMagicMethodID(t *testing.T) {
	dc := baseContext(t)
	dc.PurchaseToken = nil
	dc.ListingSelectors = model.SelectorSet{{0xc9, 0x56, 0x7b, 0xf9}}
	dc.Market = &fakeMarket{
		decimals:  map[common.Address]uint8{tokenC: 18},
		liquidity: map[common.Address]*big.Int{wrapped: big.NewInt(20)},
	}

	out := AutoMagic{}.Detect(context.Background(), legacyTx(stranger, tokenC, []byte{0xc9, 0x56, 0x7b, 0xf9}), dc)
	if out.Verdict == nil || *out.Verdict.PurchaseToken != tokenC || *out.Verdict.LiquidityToken != wrapped {
		t.Fatalf("expected method-id listing, got %+v", out.Verdict)
	}

	dc.AutoMagic.MethodID = false
	if out := (AutoMagic{}).Detect(context.Background(), legacyTx(stranger, tokenC, []byte{0xc9, 0x56, 0x7b, 0xf9}), dc); out.Verdict != nil {
		t.Fatalf("disabled sub-detector must not fire")
	}
}

func TestAutoMagicPinksaleNeedsTokens(t *testing.T) {
	dc := baseContext(t)
	dc.PurchaseToken = nil
	tx := legacyTx(stranger, tokenC, PinksaleFinalize[:])
	if out := (AutoMagic{}).Detect(context.Background(), tx, dc); out.Verdict != nil {
		t.Fatalf("pinksale alone carries no pair")
	}

	dc.PurchaseToken = model.AddressPtr(tokenA)
	dc.LiquidityToken = model.AddressPtr(tokenB)
	out := AutoMagic{}.Detect(context.Background(), tx, dc)
	if out.Verdict == nil || *out.Verdict.DevWallet != stranger {
		t.Fatalf("expected pinksale through auto magic, got %+v", out.Verdict)
	}
}

func TestVerdictMergeKeepsEarlierFields(t *testing.T) {
	first := &model.Verdict{Valid: true, Kind: model.TriggerListing, PurchaseToken: model.AddressPtr(tokenA)}
	second := &model.Verdict{Valid: true, Kind: model.TriggerPinksale, PurchaseToken: model.AddressPtr(tokenC), LiquidityToken: model.AddressPtr(tokenB)}

	merged := first.Merge(second)
	if merged.Kind != model.TriggerListing || *merged.PurchaseToken != tokenA || *merged.LiquidityToken != tokenB {
		t.Fatalf("unexpected merge %+v", merged)
	}
	if first.LiquidityToken != nil {
		t.Fatalf("merge mutated its receiver")
	}
}

func TestPinksaleFinalize(t *testing.T) {
	dc := baseContext(t)
	dc.LiquidityToken = model.AddressPtr(tokenB)
	if out := (Pinksale{}).Detect(context.Background(), legacyTx(dev, tokenC, PinksaleFinalize[:]), dc); out.Verdict == nil {
		t.Fatalf("expected pinksale verdict")
	}
	if out := (Pinksale{}).Detect(context.Background(), legacyTx(stranger, tokenC, PinksaleFinalize[:]), dc); out.Verdict != nil {
		t.Fatalf("finalize from another wallet must not fire")
	}
}
