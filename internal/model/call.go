package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CallKind is the recognized shape of router call data.
type CallKind int

const (
	CallUnknown CallKind = iota
	CallAddLiquidity
	CallAddLiquidityETH
	CallRemoveLiquidity
	CallRemoveLiquidityETH
	CallSwapExactTokensForTokens
	CallSwapExactTokensForETH
	CallSwapTokensForExactTokens
	CallSwapTokensForExactETH
	CallSwapExactETHForTokens
	CallSwapETHForExactTokens
)

var callKindNames = map[CallKind]string{
	CallUnknown:                  "unknown",
	CallAddLiquidity:             "addLiquidity",
	CallAddLiquidityETH:          "addLiquidityETH",
	CallRemoveLiquidity:          "removeLiquidity",
	CallRemoveLiquidityETH:       "removeLiquidityETH",
	CallSwapExactTokensForTokens: "swapExactTokensForTokens",
	CallSwapExactTokensForETH:    "swapExactTokensForETH",
	CallSwapTokensForExactTokens: "swapTokensForExactTokens",
	CallSwapTokensForExactETH:    "swapTokensForExactETH",
	CallSwapExactETHForTokens:    "swapExactETHForTokens",
	CallSwapETHForExactTokens:    "swapETHForExactTokens",
}

func (k CallKind) String() string {
	if name, ok := callKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsSwap reports whether the kind is one of the swap variants.
func (k CallKind) IsSwap() bool {
	return k >= CallSwapExactTokensForTokens && k <= CallSwapETHForExactTokens
}

// Call is a decoded router call. Only the fields relevant to Kind are set.
type Call struct {
	Kind     CallKind
	Method   string
	Selector Selector

	// Liquidity calls. For the ETH variants TokenB is unset and the native
	// side travels as transaction value.
	TokenA         common.Address
	TokenB         common.Address
	AmountADesired *big.Int
	AmountBDesired *big.Int
	AmountAMin     *big.Int
	AmountBMin     *big.Int
	Liquidity      *big.Int

	// Swaps. AmountIn is the exact input, or the maximum input for the
	// "for exact" variants.
	AmountIn  *big.Int
	AmountOut *big.Int
	Path      []common.Address
	Recipient common.Address
}

// IsSell reports whether the call sells the first token of its path.
func (c Call) IsSell() bool {
	switch c.Kind {
	case CallSwapExactTokensForTokens, CallSwapExactTokensForETH,
		CallSwapTokensForExactTokens, CallSwapTokensForExactETH:
		return true
	}
	return false
}

// IsBuy reports whether the call buys the last token of its path.
func (c Call) IsBuy() bool {
	switch c.Kind {
	case CallSwapExactETHForTokens, CallSwapETHForExactTokens, CallSwapExactTokensForTokens:
		return true
	}
	return false
}
