package detect

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/model"
)

// Detector inspects one pending transaction. Implementations never mutate
// the context and never panic on malformed input; a nil verdict means no
// match.
type Detector interface {
	Name() string
	Detect(ctx context.Context, tx *model.PendingTransaction, dc *Context) Outcome
}

// Outcome is a detector result. Observation carries state learned during
// the evaluation, even when no verdict was produced, for the scheduler to
// fold into its session.
type Outcome struct {
	Verdict     *model.Verdict
	Observation *Observation
}

// Observation is state a detector learned while evaluating a transaction.
type Observation struct {
	Price         *big.Int
	HighWaterMark *big.Int
	GainBps       *big.Int
	// TrailingStop is the sell verdict for this price, raised when the
	// session's live high-water mark puts Price at or below the stop.
	TrailingStop  *model.Verdict
	DevSelector   *model.Selector
	ToxicSelector *model.Selector
}

// Market answers the read-only chain queries detectors need.
type Market interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Price(ctx context.Context, token, quote common.Address) (*big.Int, error)
	AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
	PoolLiquidity(ctx context.Context, token, liquidityToken common.Address) (*big.Int, error)
}

// Confirmer waits until a transaction is mined successfully.
type Confirmer interface {
	WaitConfirmed(ctx context.Context, hash common.Hash) error
}

// Decoder turns call data into a model.Call.
type Decoder interface {
	Decode(data []byte) model.Call
}

// LiquidityCandidate is a token the bot accepts as the quote side of a pair.
type LiquidityCandidate struct {
	Token   common.Address
	Minimum *big.Int
	Maximum *big.Int
}

// AutoMagicOptions selects the sub-detectors AutoMagic fans out to.
type AutoMagicOptions struct {
	LiquidityAdd bool
	MethodID     bool
	Pinksale     bool
}

// Context is a read-only snapshot of session and configuration taken before
// detectors run.
type Context struct {
	Self          common.Address
	Router        common.Address
	WrappedNative common.Address

	PurchaseToken  *common.Address
	LiquidityToken *common.Address
	DevWallet      *common.Address
	Followed       *common.Address

	GasMultiplier    decimal.Decimal
	MinimumLiquidity *big.Int

	// Rug-pull protection.
	PurchaseBalance        *big.Int
	BalanceCheckMultiplier decimal.Decimal
	ToxicDetection         bool
	ToxicSelectors         model.SelectorSet
	NonToxicSelectors      model.SelectorSet

	// Percentage gain and trailing stop.
	BuyPrice      *big.Int
	HighWaterMark *big.Int
	GainBps       int64
	FallPct       decimal.Decimal

	// Dev action.
	DevActionSelectors model.SelectorSet
	DevActionIgnore    model.SelectorSet
	DevActionSell      bool
	GasAction          int

	// Follow wallets.
	FollowWallets []common.Address
	FollowTokens  []common.Address
	FollowMaxGas  *model.GasOverride

	AutoMagic        AutoMagicOptions
	ListingSelectors model.SelectorSet
	Candidates       []LiquidityCandidate

	Decoder   Decoder
	Market    Market
	Confirmer Confirmer
}

// PinksaleFinalize is the launchpad's finalize() selector.
var PinksaleFinalize = model.Selector{0x4b, 0xb2, 0x78, 0xf3}

func (dc *Context) decode(tx *model.PendingTransaction) model.Call {
	if dc.Decoder == nil {
		return model.Call{Kind: model.CallUnknown}
	}
	return dc.Decoder.Decode(tx.Input)
}

func (dc *Context) outbid(tx *model.PendingTransaction, multiplier decimal.Decimal) *model.GasOverride {
	return model.GasPolicy{Style: tx.FeeStyle(), Multiplier: multiplierOrOne(multiplier)}.Outbid(tx)
}

// newVerdict starts a verdict for tx, or returns nil for contract creations,
// which no detector reacts to.
func (dc *Context) newVerdict(tx *model.PendingTransaction, kind model.TriggerKind) *model.Verdict {
	if tx == nil || tx.To == nil {
		return nil
	}
	return &model.Verdict{
		Valid:          true,
		Kind:           kind,
		TxHash:         tx.Hash,
		PurchaseToken:  copyAddress(dc.PurchaseToken),
		LiquidityToken: copyAddress(dc.LiquidityToken),
		Gas:            dc.outbid(tx, dc.GasMultiplier),
	}
}

func copyAddress(addr *common.Address) *common.Address {
	if addr == nil {
		return nil
	}
	out := *addr
	return &out
}

func sameAddress(a *common.Address, b common.Address) bool {
	return a != nil && *a == b
}

func findAddress(list []common.Address, target common.Address) (common.Address, bool) {
	for _, addr := range list {
		if addr == target {
			return addr, true
		}
	}
	return common.Address{}, false
}

func atLeast(value, minimum *big.Int) bool {
	if value == nil {
		return false
	}
	if minimum == nil {
		return true
	}
	return value.Cmp(minimum) >= 0
}

// ScanLiquidity picks, among candidates that form a pair with token, the one
// whose pooled liquidity is closest to its maximum without exceeding it.
// The ratio liquidity/maximum decides; ties keep the earlier candidate.
func ScanLiquidity(ctx context.Context, market Market, token common.Address, decimals uint8, candidates []LiquidityCandidate) *common.Address {
	if market == nil {
		return nil
	}
	unit := dex.Unit(decimals)
	best := new(big.Int)
	var chosen *common.Address
	for _, candidate := range candidates {
		if candidate.Maximum == nil || candidate.Maximum.Sign() <= 0 || candidate.Token == token {
			continue
		}
		if _, err := market.AmountsOut(ctx, unit, []common.Address{token, candidate.Token}); err != nil {
			continue
		}
		liquidity, err := market.PoolLiquidity(ctx, token, candidate.Token)
		if err != nil || liquidity.Cmp(candidate.Maximum) > 0 {
			continue
		}
		ratio := new(big.Int).Mul(liquidity, big.NewInt(1e18))
		ratio.Quo(ratio, candidate.Maximum)
		if ratio.Cmp(best) > 0 {
			best = ratio
			chosen = model.AddressPtr(candidate.Token)
		}
	}
	return chosen
}
