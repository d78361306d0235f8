package detect

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquiditySniper/internal/model"
)

func TestFollowWalletCopiesBuy(t *testing.T) {
	dc := baseContext(t)
	dc.PurchaseToken = nil
	dc.FollowTokens = []common.Address{wrapped, tokenB}
	input := packRouter(t, "swapExactETHForTokensSupportingFeeOnTransferTokens", big.NewInt(1), []common.Address{wrapped, tokenC}, stranger, deadline)

	out := FollowWallet{}.Detect(context.Background(), legacyTx(stranger, router, input), dc)
	if out.Verdict == nil {
		t.Fatalf("expected follow verdict")
	}
	v := out.Verdict
	if *v.PurchaseToken != tokenC || *v.LiquidityToken != wrapped || *v.Followed != stranger {
		t.Fatalf("unexpected verdict %+v", v)
	}

	if out := (FollowWallet{}).Detect(context.Background(), legacyTx(dev, router, input), dc); out.Verdict != nil {
		t.Fatalf("unfollowed sender must not fire")
	}
}

func TestFollowWalletTokenAllowList(t *testing.T) {
	dc := baseContext(t)
	dc.FollowTokens = []common.Address{tokenB}
	input := packRouter(t, "swapExactETHForTokens", big.NewInt(1), []common.Address{wrapped, tokenC}, stranger, deadline)
	if out := (FollowWallet{}).Detect(context.Background(), legacyTx(stranger, router, input), dc); out.Verdict != nil {
		t.Fatalf("path input outside the allow list must not fire")
	}
}

func TestFollowWalletGasCap(t *testing.T) {
	dc := baseContext(t)
	input := packRouter(t, "swapExactETHForTokens", big.NewInt(1), []common.Address{wrapped, tokenC}, stranger, deadline)
	tx := feeMarketTx(stranger, router, input)

	dc.FollowMaxGas = &model.GasOverride{GasFeeCap: big.NewInt(30_000_000_000)}
	if out := (FollowWallet{}).Detect(context.Background(), tx, dc); out.Verdict != nil {
		t.Fatalf("fee cap at the limit must be ignored")
	}
	dc.FollowMaxGas = &model.GasOverride{GasFeeCap: big.NewInt(31_000_000_000)}
	if out := (FollowWallet{}).Detect(context.Background(), tx, dc); out.Verdict == nil {
		t.Fatalf("fee cap below the limit should fire")
	}
}

func TestFollowWalletSell(t *testing.T) {
	dc := baseContext(t)
	dc.LiquidityToken = model.AddressPtr(wrapped)
	dc.Followed = model.AddressPtr(stranger)
	dc.PurchaseBalance = big.NewInt(500)

	exactIn := packRouter(t, "swapExactTokensForETH", big.NewInt(500), big.NewInt(0), []common.Address{tokenA, wrapped}, stranger, deadline)
	out := FollowWalletSell{}.Detect(context.Background(), legacyTx(stranger, router, exactIn), dc)
	if out.Verdict == nil || out.Verdict.Kind != model.TriggerFollowSell || !out.Verdict.IsSell() {
		t.Fatalf("expected follow sell, got %+v", out.Verdict)
	}

	exactOut := packRouter(t, "swapTokensForExactETH", big.NewInt(1), big.NewInt(600), []common.Address{tokenA, wrapped}, stranger, deadline)
	if out := (FollowWalletSell{}).Detect(context.Background(), legacyTx(stranger, router, exactOut), dc); out.Verdict == nil {
		t.Fatalf("exact-output sell with enough input should fire")
	}

	small := packRouter(t, "swapExactTokensForETH", big.NewInt(499), big.NewInt(0), []common.Address{tokenA, wrapped}, stranger, deadline)
	if out := (FollowWalletSell{}).Detect(context.Background(), legacyTx(stranger, router, small), dc); out.Verdict != nil {
		t.Fatalf("sell below holding must not fire")
	}

	other := packRouter(t, "swapExactTokensForETH", big.NewInt(900), big.NewInt(0), []common.Address{tokenC, wrapped}, stranger, deadline)
	if out := (FollowWalletSell{}).Detect(context.Background(), legacyTx(stranger, router, other), dc); out.Verdict != nil {
		t.Fatalf("sell of another token must not fire")
	}
}
