package detect

import (
	"context"

	"github.com/shopspring/decimal"

	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/model"
)

// RugPull watches the dev wallet and the purchase token for anything that
// would strand the bot's holding: a blacklist call naming the bot, a dev
// sell larger than the scaled holding, a toxic method id, or a liquidity
// removal from the locked pair.
type RugPull struct{}

func (RugPull) Name() string { return "rug_pull" }

func (RugPull) Detect(_ context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil || dc.DevWallet == nil {
		return Outcome{}
	}
	fromDev := tx.From == *dc.DevWallet
	selector, hasSelector := tx.Selector()

	if fromDev || (dc.PurchaseToken != nil && tx.SentTo(*dc.PurchaseToken)) {
		if hasSelector && !dc.NonToxicSelectors.Contains(selector) && dex.MatchesBlacklist(tx.Input, dc.Self) {
			return Outcome{Verdict: dc.newVerdict(tx, model.TriggerBlacklist)}
		}
	}
	if !fromDev {
		return Outcome{}
	}

	call := dc.decode(tx)
	threshold := model.MulCeil(dc.PurchaseBalance, multiplierOrOne(dc.BalanceCheckMultiplier))
	if dc.PurchaseBalance != nil && sellsAtLeast(call, dc.PurchaseToken, threshold) {
		return Outcome{Verdict: dc.newVerdict(tx, model.TriggerDevSell)}
	}

	var obs *Observation
	if dc.ToxicDetection && hasSelector {
		toxic := dc.ToxicSelectors
		if len(toxic) == 0 && !dc.NonToxicSelectors.Contains(selector) {
			learned := selector
			obs = &Observation{ToxicSelector: &learned}
			toxic = model.SelectorSet{selector}
		}
		if toxic.Contains(selector) {
			return Outcome{Verdict: dc.newVerdict(tx, model.TriggerToxicID), Observation: obs}
		}
	}

	if !tx.SentTo(dc.Router) || dc.PurchaseToken == nil || dc.LiquidityToken == nil {
		return Outcome{Observation: obs}
	}
	purchase, locked := *dc.PurchaseToken, *dc.LiquidityToken
	pulled := false
	switch call.Kind {
	case model.CallRemoveLiquidityETH:
		pulled = call.TokenA == purchase && locked == dc.WrappedNative
	case model.CallRemoveLiquidity:
		pulled = (call.TokenA == purchase && call.TokenB == locked) ||
			(call.TokenB == purchase && call.TokenA == locked)
	}
	if !pulled {
		return Outcome{Observation: obs}
	}
	return Outcome{Verdict: dc.newVerdict(tx, model.TriggerRugPull), Observation: obs}
}

func multiplierOrOne(m decimal.Decimal) decimal.Decimal {
	if !m.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return m
}
