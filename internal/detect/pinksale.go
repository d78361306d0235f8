package detect

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"liquiditySniper/internal/model"
)

// Pinksale fires when the dev wallet finalizes its launchpad sale.
type Pinksale struct{}

func (Pinksale) Name() string { return "pinksale" }

func (Pinksale) Detect(_ context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if !pinksaleFinalized(tx, dc.DevWallet) || dc.PurchaseToken == nil || dc.LiquidityToken == nil {
		return Outcome{}
	}
	v := dc.newVerdict(tx, model.TriggerPinksale)
	if v != nil {
		v.DevWallet = copyAddress(dc.DevWallet)
	}
	return Outcome{Verdict: v}
}

func pinksaleFinalized(tx *model.PendingTransaction, dev *common.Address) bool {
	if tx.To == nil || dev == nil || tx.From != *dev {
		return false
	}
	selector, ok := tx.Selector()
	return ok && selector == PinksaleFinalize
}
