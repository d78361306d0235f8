package builder

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"

	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/model"
)

const defaultDeadline = 5 * time.Minute

// Config describes the router and addresses a Builder targets.
type Config struct {
	Router        common.Address
	WrappedNative common.Address
	Symbol        string
	Self          common.Address
	// Recipients receive bought tokens, rotating per round. Empty means Self.
	Recipients []common.Address
	Deadline   time.Duration
}

// Builder turns trading intents into unsigned router payloads.
type Builder struct {
	cfg       Config
	routerABI abi.ABI
	erc20ABI  abi.ABI
	now       func() time.Time
}

// New creates a Builder for cfg.
func New(cfg Config) (*Builder, error) {
	routerABI, err := dex.RouterABI(cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	erc20, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	return &Builder{cfg: cfg, routerABI: routerABI, erc20ABI: erc20, now: time.Now}, nil
}

// Recipient returns the address that receives tokens bought in round.
func (b *Builder) Recipient(round int) common.Address {
	if len(b.cfg.Recipients) == 0 {
		return b.cfg.Self
	}
	if round < 0 {
		round = 0
	}
	return b.cfg.Recipients[round%len(b.cfg.Recipients)]
}

// Buy spends amountIn of liquidity on purchase. A wrapped-native liquidity
// token is paid with the native currency.
func (b *Builder) Buy(round int, purchase, liquidity common.Address, amountIn *big.Int) (model.Payload, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return model.Payload{}, fmt.Errorf("buy amount must be positive")
	}
	path := []common.Address{liquidity, purchase}
	to := b.Recipient(round)
	deadline := b.deadline()
	label := fmt.Sprintf("buy round %d", round)

	if liquidity == b.cfg.WrappedNative {
		method := dex.NativeMethod("swapExactNATIVEForTokensSupportingFeeOnTransferTokens", b.cfg.Symbol)
		return b.routerCall(label, method, amountIn, new(big.Int), path, to, deadline)
	}
	return b.routerCall(label, "swapExactTokensForTokensSupportingFeeOnTransferTokens", nil, amountIn, new(big.Int), path, to, deadline)
}

// Sell swaps amountIn of purchase back into liquidity for the wallet itself.
func (b *Builder) Sell(purchase, liquidity common.Address, amountIn *big.Int) (model.Payload, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return model.Payload{}, fmt.Errorf("sell amount must be positive")
	}
	path := []common.Address{purchase, liquidity}
	deadline := b.deadline()

	method := "swapExactTokensForTokensSupportingFeeOnTransferTokens"
	if liquidity == b.cfg.WrappedNative {
		method = dex.NativeMethod("swapExactTokensForNATIVESupportingFeeOnTransferTokens", b.cfg.Symbol)
	}
	return b.routerCall("sell", method, nil, amountIn, new(big.Int), path, b.cfg.Self, deadline)
}

// Approve grants spender an unlimited allowance of token.
func (b *Builder) Approve(token, spender common.Address) (model.Payload, error) {
	data, err := b.erc20ABI.Pack("approve", spender, math.MaxBig256)
	if err != nil {
		return model.Payload{}, fmt.Errorf("pack approve: %w", err)
	}
	return model.Payload{Label: "approve", To: token, Data: data, Value: new(big.Int)}, nil
}

func (b *Builder) routerCall(label, method string, value *big.Int, args ...interface{}) (model.Payload, error) {
	data, err := b.routerABI.Pack(method, args...)
	if err != nil {
		return model.Payload{}, fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return model.Payload{Label: label, To: b.cfg.Router, Data: data, Value: new(big.Int).Set(value)}, nil
}

func (b *Builder) deadline() *big.Int {
	return big.NewInt(b.now().Add(b.cfg.Deadline).Unix())
}

// SellAmount picks how much of balance to sell: a fixed amount capped at the
// balance, else pct percent of it, else everything.
func SellAmount(balance *big.Int, pct decimal.Decimal, amount *big.Int) *big.Int {
	if balance == nil {
		return new(big.Int)
	}
	if amount != nil && amount.Sign() > 0 {
		if amount.Cmp(balance) > 0 {
			return new(big.Int).Set(balance)
		}
		return new(big.Int).Set(amount)
	}
	if pct.IsPositive() && pct.LessThan(decimal.NewFromInt(100)) {
		return decimal.NewFromBigInt(balance, 0).Mul(pct).Shift(-2).Floor().BigInt()
	}
	return new(big.Int).Set(balance)
}
