package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// GasOverride carries the fee fields a reaction transaction should use.
// Exactly one style is populated.
type GasOverride struct {
	Style     FeeStyle
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// Value returns the fee value used for escalation: gas price for legacy,
// priority fee for fee-market.
func (g *GasOverride) Value() *big.Int {
	if g == nil {
		return nil
	}
	if g.Style == FeeMarket {
		return g.GasTipCap
	}
	return g.GasPrice
}

// Scaled returns a copy whose escalation value is multiplied by m.
func (g *GasOverride) Scaled(m decimal.Decimal) *GasOverride {
	if g == nil {
		return nil
	}
	out := *g
	if g.Style == FeeMarket {
		out.GasTipCap = MulCeil(g.GasTipCap, m)
		out.GasFeeCap = maxBig(copyBig(g.GasFeeCap), out.GasTipCap)
	} else {
		out.GasPrice = MulCeil(g.GasPrice, m)
	}
	return &out
}

// GasPolicy is the configured fee style and multiplier.
type GasPolicy struct {
	Style      FeeStyle
	Multiplier decimal.Decimal
}

// Outbid derives the gas override for reacting to tx.
func (p GasPolicy) Outbid(tx *PendingTransaction) *GasOverride {
	if tx.FeeStyle() == FeeMarket {
		tip := MulCeil(tx.GasTipCap, p.Multiplier)
		return &GasOverride{
			Style:     FeeMarket,
			GasFeeCap: maxBig(copyBig(tx.GasFeeCap), tip),
			GasTipCap: tip,
		}
	}
	return &GasOverride{
		Style:    FeeLegacy,
		GasPrice: MulCeil(tx.GasPrice, p.Multiplier),
	}
}

// MulCeil returns ceil(v * m), so a multiplier of 1.1 scales 100 to 110.
// A nil value yields nil.
func MulCeil(v *big.Int, m decimal.Decimal) *big.Int {
	if v == nil {
		return nil
	}
	return decimal.NewFromBigInt(v, 0).Mul(m).Ceil().BigInt()
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func maxBig(a, b *big.Int) *big.Int {
	if a == nil {
		return copyBig(b)
	}
	if b != nil && b.Cmp(a) > 0 {
		return new(big.Int).Set(b)
	}
	return a
}
