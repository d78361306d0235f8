package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPair is returned when the factory has no pair for two tokens.
var ErrNoPair = errors.New("pair does not exist")

// Quoter answers read-only router, factory and token queries.
type Quoter struct {
	caller     ethereum.ContractCaller
	router     common.Address
	routerABI  abi.ABI
	factoryABI abi.ABI
	erc20ABI   abi.ABI
	tokens     *TokenMetaCache
	symbol     string

	mu      sync.Mutex
	factory *common.Address
	wrapped *common.Address
}

// NewQuoter creates a quoter against the router at address router.
func NewQuoter(caller ethereum.ContractCaller, router common.Address, symbol string) (*Quoter, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	routerABI, err := RouterABI(symbol)
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	factoryABI, err := FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Quoter{
		caller:     caller,
		router:     router,
		routerABI:  routerABI,
		factoryABI: factoryABI,
		erc20ABI:   erc20,
		tokens:     NewTokenMetaCache(),
		symbol:     normalizeSymbol(symbol),
	}, nil
}

// AmountsOut quotes amountIn along path.
func (q *Quoter) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	values, err := callMethod(ctx, q.caller, q.router, q.routerABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts, err := asBigIntSlice(values[0])
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("getAmountsOut: got %d amounts for path of %d", len(amounts), len(path))
	}
	return amounts, nil
}

// Price returns what one whole token is worth in quote units.
func (q *Quoter) Price(ctx context.Context, token, quote common.Address) (*big.Int, error) {
	decimals, err := q.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	amounts, err := q.AmountsOut(ctx, Unit(decimals), []common.Address{token, quote})
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}

// Factory returns the router's factory, cached after the first call.
func (q *Quoter) Factory(ctx context.Context) (common.Address, error) {
	q.mu.Lock()
	cached := q.factory
	q.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	values, err := callMethod(ctx, q.caller, q.router, q.routerABI, "factory")
	if err != nil {
		return common.Address{}, err
	}
	factory, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("factory: %w", err)
	}

	q.mu.Lock()
	q.factory = &factory
	q.mu.Unlock()
	return factory, nil
}

// WrappedNative returns the router's wrapped native token.
func (q *Quoter) WrappedNative(ctx context.Context) (common.Address, error) {
	q.mu.Lock()
	cached := q.wrapped
	q.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	method := "W" + q.symbol
	values, err := callMethod(ctx, q.caller, q.router, q.routerABI, method)
	if err != nil {
		return common.Address{}, err
	}
	wrapped, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, err)
	}

	q.mu.Lock()
	q.wrapped = &wrapped
	q.mu.Unlock()
	return wrapped, nil
}

// GetPair returns the pair address for two tokens or ErrNoPair.
func (q *Quoter) GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	factory, err := q.Factory(ctx)
	if err != nil {
		return common.Address{}, err
	}
	values, err := callMethod(ctx, q.caller, factory, q.factoryABI, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("getPair: %w", err)
	}
	if pair == (common.Address{}) {
		return common.Address{}, ErrNoPair
	}
	return pair, nil
}

// PoolLiquidity returns how much of liquidityToken sits in the pair it forms
// with token.
func (q *Quoter) PoolLiquidity(ctx context.Context, token, liquidityToken common.Address) (*big.Int, error) {
	pair, err := q.GetPair(ctx, token, liquidityToken)
	if err != nil {
		return nil, err
	}
	return q.BalanceOf(ctx, liquidityToken, pair)
}

// BalanceOf returns owner's balance of token.
func (q *Quoter) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	values, err := callMethod(ctx, q.caller, token, q.erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Allowance returns what spender may move out of owner's token balance.
func (q *Quoter) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := callMethod(ctx, q.caller, token, q.erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Decimals returns the token's decimals, cached per token.
func (q *Quoter) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if meta, ok := q.tokens.Get(token); ok {
		return meta.Decimals, nil
	}
	values, err := callMethod(ctx, q.caller, token, q.erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	q.tokens.Set(token, tokenMetaWithDecimals(token, decimals))
	return decimals, nil
}

func callMethod(ctx context.Context, caller ethereum.ContractCaller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}
