package detect

import (
	"context"

	"liquiditySniper/internal/model"
)

// Instant produces its verdict without looking at the chain. The scheduler
// runs it once at startup for the instant-buy and instant-sell modes.
type Instant struct {
	Kind model.TriggerKind
}

func (d Instant) Name() string { return string(d.Kind) }

func (d Instant) Detect(_ context.Context, _ *model.PendingTransaction, dc *Context) Outcome {
	if dc.PurchaseToken == nil || dc.LiquidityToken == nil {
		return Outcome{}
	}
	return Outcome{Verdict: &model.Verdict{
		Valid:          true,
		Kind:           d.Kind,
		PurchaseToken:  copyAddress(dc.PurchaseToken),
		LiquidityToken: copyAddress(dc.LiquidityToken),
	}}
}
