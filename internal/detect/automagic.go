package detect

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"liquiditySniper/internal/model"
)

// AutoMagic treats every sender as a potential dev wallet and fans out to
// the enabled listing detectors. Results are merged in the order
// liquidity-add, method-id, pinksale: fields set by an earlier detector are
// kept and later detectors only fill fields still empty.
type AutoMagic struct{}

func (AutoMagic) Name() string { return "auto_magic" }

func (AutoMagic) Detect(ctx context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil {
		return Outcome{}
	}
	dev := tx.From

	// Merge keeps fields already set, so a pinksale match never overrides
	// tokens found by the liquidity-add or method-id checks.
	var merged *model.Verdict
	if dc.AutoMagic.LiquidityAdd {
		merged = merged.Merge(autoLiquidityAdd(tx, dc))
	}
	if dc.AutoMagic.MethodID {
		merged = merged.Merge(methodIDListing(ctx, tx, dc))
	}
	if dc.AutoMagic.Pinksale && pinksaleFinalized(tx, &dev) {
		merged = merged.Merge(dc.newVerdict(tx, model.TriggerPinksale))
	}
	if merged == nil || merged.PurchaseToken == nil || merged.LiquidityToken == nil {
		return Outcome{}
	}

	out := *merged
	out.Kind = model.TriggerAutoMagic
	out.DevWallet = model.AddressPtr(dev)
	return Outcome{Verdict: &out}
}

// autoLiquidityAdd matches an add-liquidity call whose quote side is one of
// the candidates and brings at least that candidate's minimum.
func autoLiquidityAdd(tx *model.PendingTransaction, dc *Context) *model.Verdict {
	if !tx.SentTo(dc.Router) {
		return nil
	}
	call := dc.decode(tx)
	var purchase, liquidity common.Address
	switch call.Kind {
	case model.CallAddLiquidityETH:
		candidate, ok := findCandidate(dc.Candidates, dc.WrappedNative)
		if !ok || !atLeast(tx.Value, candidate.Minimum) {
			return nil
		}
		purchase, liquidity = call.TokenA, dc.WrappedNative
	case model.CallAddLiquidity:
		if candidate, ok := findCandidate(dc.Candidates, call.TokenB); ok && atLeast(call.AmountBDesired, candidate.Minimum) {
			purchase, liquidity = call.TokenA, call.TokenB
		} else if candidate, ok := findCandidate(dc.Candidates, call.TokenA); ok && atLeast(call.AmountADesired, candidate.Minimum) {
			purchase, liquidity = call.TokenB, call.TokenA
		} else {
			return nil
		}
	default:
		return nil
	}

	v := dc.newVerdict(tx, model.TriggerListing)
	if v == nil {
		return nil
	}
	v.PurchaseToken = model.AddressPtr(purchase)
	v.LiquidityToken = model.AddressPtr(liquidity)
	return v
}

// methodIDListing matches a call to a token contract with one of the
// listing selectors, then scans the candidates for the pair it trades in.
func methodIDListing(ctx context.Context, tx *model.PendingTransaction, dc *Context) *model.Verdict {
	selector, ok := tx.Selector()
	if !ok || !dc.ListingSelectors.Contains(selector) || dc.Market == nil {
		return nil
	}
	token := *tx.To
	if _, isCandidate := findCandidate(dc.Candidates, token); isCandidate {
		return nil
	}
	decimals, err := dc.Market.Decimals(ctx, token)
	if err != nil {
		return nil
	}
	liquidity := ScanLiquidity(ctx, dc.Market, token, decimals, dc.Candidates)
	if liquidity == nil {
		return nil
	}

	v := dc.newVerdict(tx, model.TriggerListing)
	if v == nil {
		return nil
	}
	v.PurchaseToken = model.AddressPtr(token)
	v.LiquidityToken = liquidity
	return v
}

func findCandidate(candidates []LiquidityCandidate, token common.Address) (LiquidityCandidate, bool) {
	for _, candidate := range candidates {
		if candidate.Token == token {
			return candidate, true
		}
	}
	return LiquidityCandidate{}, false
}
