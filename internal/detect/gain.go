package detect

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySniper/internal/model"
)

// PercentageGain re-quotes the pair after each confirmed router call and
// fires on either the gain target or the trailing stop.
type PercentageGain struct{}

func (PercentageGain) Name() string { return "percentage_gain" }

func (PercentageGain) Detect(ctx context.Context, tx *model.PendingTransaction, dc *Context) Outcome {
	if tx.To == nil || dc.BuyPrice == nil || dc.PurchaseToken == nil || dc.LiquidityToken == nil || dc.Market == nil {
		return Outcome{}
	}
	if !tx.SentTo(dc.Router) {
		return Outcome{}
	}
	if dc.Confirmer != nil {
		if err := dc.Confirmer.WaitConfirmed(ctx, tx.Hash); err != nil {
			return Outcome{}
		}
	}
	price, err := dc.Market.Price(ctx, *dc.PurchaseToken, *dc.LiquidityToken)
	if err != nil {
		return Outcome{}
	}

	result := EvaluateGain(dc.BuyPrice, price, dc.HighWaterMark, dc.GainBps, dc.FallPct)
	obs := &Observation{Price: price, HighWaterMark: result.HighWaterMark, GainBps: result.GainBps}
	if dc.FallPct.IsPositive() {
		obs.TrailingStop = dc.newVerdict(tx, model.TriggerTrailingStop)
	}
	if result.Kind == "" {
		return Outcome{Observation: obs}
	}
	return Outcome{Verdict: dc.newVerdict(tx, result.Kind), Observation: obs}
}

// GainResult is the outcome of one price observation while holding.
type GainResult struct {
	HighWaterMark *big.Int
	// GainBps is nil unless price is above the buy price.
	GainBps *big.Int
	// Kind is empty when nothing fires.
	Kind model.TriggerKind
}

// EvaluateGain folds price into the high-water mark and decides whether to
// sell. The trailing stop fires when price <= hwm*(1-fallPct/100) and is
// checked first; the gain target fires when the gain in basis points
// reaches gainBps. Either check is off when its threshold is not positive.
func EvaluateGain(buyPrice, price, highWaterMark *big.Int, gainBps int64, fallPct decimal.Decimal) GainResult {
	hwm := new(big.Int).Set(price)
	if highWaterMark != nil && highWaterMark.Cmp(price) > 0 {
		hwm.Set(highWaterMark)
	}
	result := GainResult{HighWaterMark: hwm}

	if buyPrice != nil && buyPrice.Sign() > 0 && price.Cmp(buyPrice) > 0 {
		bps := new(big.Int).Sub(price, buyPrice)
		bps.Mul(bps, big.NewInt(10000))
		bps.Quo(bps, buyPrice)
		result.GainBps = bps
	}

	if fallPct.IsPositive() && belowTrailingStop(price, hwm, fallPct) {
		result.Kind = model.TriggerTrailingStop
		return result
	}
	if gainBps > 0 && result.GainBps != nil && result.GainBps.Cmp(big.NewInt(gainBps)) >= 0 {
		result.Kind = model.TriggerGain
	}
	return result
}

func belowTrailingStop(price, hwm *big.Int, fallPct decimal.Decimal) bool {
	hundred := decimal.NewFromInt(100)
	scaled := decimal.NewFromBigInt(price, 0).Mul(hundred)
	stop := decimal.NewFromBigInt(hwm, 0).Mul(hundred.Sub(fallPct))
	return scaled.LessThanOrEqual(stop)
}

// PercentToBps converts a percentage such as 5.5 into basis points.
func PercentToBps(pct decimal.Decimal) int64 {
	return pct.Shift(2).Round(0).IntPart()
}
