package detect

import (
	"context"

	"github.com/shopspring/decimal"

	"liquiditySniper/internal/model"
)

// DevAction fires when the dev wallet calls one of the watched methods and
// the purchase token already trades against one of the candidates.
type DevAction struct{}

func (DevAction) Name() string { return "dev_action" }

func (DevAction) Detect(ctx context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil || dc.DevWallet == nil || tx.From != *dc.DevWallet {
		return Outcome{}
	}
	selector, ok := tx.Selector()
	if !ok {
		return Outcome{}
	}

	var obs *Observation
	allowed := dc.DevActionSelectors
	if len(allowed) == 0 {
		if dc.DevActionIgnore.Contains(selector) {
			return Outcome{}
		}
		learned := selector
		obs = &Observation{DevSelector: &learned}
		allowed = model.SelectorSet{selector}
	}
	if !allowed.Contains(selector) || dc.PurchaseToken == nil || dc.Market == nil {
		return Outcome{Observation: obs}
	}

	purchase := *dc.PurchaseToken
	decimals, err := dc.Market.Decimals(ctx, purchase)
	if err != nil {
		return Outcome{Observation: obs}
	}
	for _, candidate := range dc.Candidates {
		if candidate.Token == purchase {
			return Outcome{Observation: obs}
		}
	}
	liquidity := ScanLiquidity(ctx, dc.Market, purchase, decimals, dc.Candidates)
	if liquidity == nil {
		return Outcome{Observation: obs}
	}

	v := dc.newVerdict(tx, model.TriggerDevAction)
	if v == nil {
		return Outcome{Observation: obs}
	}
	if dc.GasAction == 0 {
		v.Gas = dc.outbid(tx, decimal.NewFromInt(1))
	}
	v.LiquidityToken = liquidity
	v.DevWallet = copyAddress(dc.DevWallet)
	v.SellOnDevAction = dc.DevActionSell
	return Outcome{Verdict: v, Observation: obs}
}
