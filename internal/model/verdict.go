package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// TriggerKind tags what a verdict was produced for.
type TriggerKind string

const (
	TriggerListing      TriggerKind = "listing"
	TriggerRugPull      TriggerKind = "rug_pull"
	TriggerBlacklist    TriggerKind = "blacklist"
	TriggerToxicID      TriggerKind = "toxic_id"
	TriggerDevSell      TriggerKind = "dev_sell"
	TriggerGain         TriggerKind = "gain"
	TriggerTrailingStop TriggerKind = "trailing_stop"
	TriggerDevAction    TriggerKind = "dev_action"
	TriggerFollowBuy    TriggerKind = "follow_buy"
	TriggerFollowSell   TriggerKind = "follow_sell"
	TriggerPinksale     TriggerKind = "pinksale"
	TriggerAutoMagic    TriggerKind = "auto_magic"
	TriggerInstantBuy   TriggerKind = "instant_buy"
	TriggerInstantSell  TriggerKind = "instant_sell"
	TriggerManualSell   TriggerKind = "manual_sell"
)

// Verdict is the result of one detector invocation that matched.
type Verdict struct {
	Valid          bool
	Kind           TriggerKind
	TxHash         common.Hash
	LiquidityToken *common.Address
	PurchaseToken  *common.Address
	Followed       *common.Address
	DevWallet      *common.Address
	Gas            *GasOverride
	// SellOnDevAction marks a dev-action verdict that should trigger the
	// sell stage instead of a buy.
	SellOnDevAction bool
}

// IsSell reports whether the verdict triggers the sell stage.
func (v *Verdict) IsSell() bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case TriggerRugPull, TriggerBlacklist, TriggerToxicID, TriggerDevSell,
		TriggerGain, TriggerTrailingStop, TriggerFollowSell,
		TriggerInstantSell, TriggerManualSell:
		return true
	case TriggerDevAction:
		return v.SellOnDevAction
	default:
		return false
	}
}

// Merge returns a verdict holding v's fields plus any of other's fields that
// v leaves empty. Fields already set on v always win.
func (v *Verdict) Merge(other *Verdict) *Verdict {
	if v == nil {
		return other
	}
	if other == nil {
		return v
	}
	out := *v
	if out.LiquidityToken == nil {
		out.LiquidityToken = other.LiquidityToken
	}
	if out.PurchaseToken == nil {
		out.PurchaseToken = other.PurchaseToken
	}
	if out.Followed == nil {
		out.Followed = other.Followed
	}
	if out.DevWallet == nil {
		out.DevWallet = other.DevWallet
	}
	if out.Gas == nil {
		out.Gas = other.Gas
	}
	if out.TxHash == (common.Hash{}) {
		out.TxHash = other.TxHash
	}
	out.Valid = out.Valid || other.Valid
	return &out
}

// AddressPtr returns a pointer to a copy of addr.
func AddressPtr(addr common.Address) *common.Address {
	return &addr
}
