package detect

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquiditySniper/internal/model"
)

// FollowWallet copies buys made by any of the followed wallets.
type FollowWallet struct{}

func (FollowWallet) Name() string { return "follow_wallet" }

func (FollowWallet) Detect(_ context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil || exceedsGasCap(tx, dc.FollowMaxGas) {
		return Outcome{}
	}
	followed, ok := findAddress(dc.FollowWallets, tx.From)
	if !ok {
		return Outcome{}
	}
	call := dc.decode(tx)
	if !call.IsBuy() || len(call.Path) < 2 {
		return Outcome{}
	}
	input, output := call.Path[0], call.Path[len(call.Path)-1]
	if input == output {
		return Outcome{}
	}
	if len(dc.FollowTokens) > 0 {
		if _, ok := findAddress(dc.FollowTokens, input); !ok {
			return Outcome{}
		}
	}

	v := dc.newVerdict(tx, model.TriggerFollowBuy)
	if v == nil {
		return Outcome{}
	}
	v.PurchaseToken = model.AddressPtr(output)
	v.LiquidityToken = model.AddressPtr(input)
	v.Followed = model.AddressPtr(followed)
	return Outcome{Verdict: v}
}

// FollowWalletSell fires when the followed wallet sells at least as much of
// the purchase token as the bot holds.
type FollowWalletSell struct{}

func (FollowWalletSell) Name() string { return "follow_wallet_sell" }

func (FollowWalletSell) Detect(_ context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil {
		return Outcome{}
	}
	if dc.Followed != nil && tx.From != *dc.Followed {
		return Outcome{}
	}
	if !sellsAtLeast(dc.decode(tx), dc.PurchaseToken, dc.PurchaseBalance) {
		return Outcome{}
	}
	v := dc.newVerdict(tx, model.TriggerFollowSell)
	if v == nil {
		return Outcome{}
	}
	v.Followed = copyAddress(dc.Followed)
	return Outcome{Verdict: v}
}

// sellsAtLeast reports whether call sells token with an input amount of at
// least threshold. For the exact-output variants the maximum input counts.
func sellsAtLeast(call model.Call, token *common.Address, threshold *big.Int) bool {
	if token == nil || !call.IsSell() || len(call.Path) == 0 || call.Path[0] != *token {
		return false
	}
	if threshold == nil {
		threshold = new(big.Int)
	}
	return call.AmountIn != nil && call.AmountIn.Cmp(threshold) >= 0
}

func exceedsGasCap(tx *model.PendingTransaction, limit *model.GasOverride) bool {
	if limit == nil {
		return false
	}
	if tx.FeeStyle() == model.FeeMarket {
		return limit.GasFeeCap != nil && tx.GasFeeCap.Cmp(limit.GasFeeCap) >= 0
	}
	return limit.GasPrice != nil && tx.GasPrice != nil && tx.GasPrice.Cmp(limit.GasPrice) >= 0
}
