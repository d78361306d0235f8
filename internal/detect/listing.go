package detect

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquiditySniper/internal/model"
)

// ListingAdd fires when liquidity is first added for the purchase token.
type ListingAdd struct{}

func (ListingAdd) Name() string { return "listing_add" }

func (ListingAdd) Detect(_ context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil || dc.PurchaseToken == nil || !tx.SentTo(dc.Router) {
		return Outcome{}
	}
	call := dc.decode(tx)
	liquidity, ok := listingLiquidityToken(call, tx.Value, *dc.PurchaseToken, dc.WrappedNative, dc.MinimumLiquidity)
	if !ok {
		return Outcome{}
	}
	if dc.LiquidityToken != nil && *dc.LiquidityToken != liquidity {
		return Outcome{}
	}

	v := dc.newVerdict(tx, model.TriggerListing)
	if v == nil {
		return Outcome{}
	}
	v.LiquidityToken = model.AddressPtr(liquidity)
	return Outcome{Verdict: v}
}

// listingLiquidityToken returns the quote side of an add-liquidity call
// pooling purchase, provided the quote side brings at least minimum.
func listingLiquidityToken(call model.Call, value *big.Int, purchase, wrapped common.Address, minimum *big.Int) (common.Address, bool) {
	switch call.Kind {
	case model.CallAddLiquidityETH:
		if call.TokenA != purchase || !atLeast(value, minimum) {
			return common.Address{}, false
		}
		return wrapped, true
	case model.CallAddLiquidity:
		switch purchase {
		case call.TokenA:
			if !atLeast(call.AmountBDesired, minimum) {
				return common.Address{}, false
			}
			return call.TokenB, true
		case call.TokenB:
			if !atLeast(call.AmountADesired, minimum) {
				return common.Address{}, false
			}
			return call.TokenA, true
		}
	}
	return common.Address{}, false
}
