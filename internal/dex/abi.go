package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// routerABIJSON is the V2 router surface the bot decodes and builds. NATIVE is
// replaced with the chain's native symbol (ETH, BNB, AVAX, ...).
const routerABIJSON = `[
  {"inputs": [], "name": "factory", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "WNATIVE", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "amountIn", "type": "uint256"}, {"name": "path", "type": "address[]"}], "name": "getAmountsOut", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"name": "tokenA", "type": "address"}, {"name": "tokenB", "type": "address"},
    {"name": "amountADesired", "type": "uint256"}, {"name": "amountBDesired", "type": "uint256"},
    {"name": "amountAMin", "type": "uint256"}, {"name": "amountBMin", "type": "uint256"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "addLiquidity", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "token", "type": "address"}, {"name": "amountTokenDesired", "type": "uint256"},
    {"name": "amountTokenMin", "type": "uint256"}, {"name": "amountNATIVEMin", "type": "uint256"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "addLiquidityNATIVE", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"name": "tokenA", "type": "address"}, {"name": "tokenB", "type": "address"},
    {"name": "liquidity", "type": "uint256"}, {"name": "amountAMin", "type": "uint256"},
    {"name": "amountBMin", "type": "uint256"}, {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "removeLiquidity", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "tokenA", "type": "address"}, {"name": "tokenB", "type": "address"},
    {"name": "liquidity", "type": "uint256"}, {"name": "amountAMin", "type": "uint256"},
    {"name": "amountBMin", "type": "uint256"}, {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}, {"name": "approveMax", "type": "bool"},
    {"name": "v", "type": "uint8"}, {"name": "r", "type": "bytes32"}, {"name": "s", "type": "bytes32"}
  ], "name": "removeLiquidityWithPermit", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "token", "type": "address"}, {"name": "liquidity", "type": "uint256"},
    {"name": "amountTokenMin", "type": "uint256"}, {"name": "amountNATIVEMin", "type": "uint256"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "removeLiquidityNATIVE", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "token", "type": "address"}, {"name": "liquidity", "type": "uint256"},
    {"name": "amountTokenMin", "type": "uint256"}, {"name": "amountNATIVEMin", "type": "uint256"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"},
    {"name": "approveMax", "type": "bool"}, {"name": "v", "type": "uint8"},
    {"name": "r", "type": "bytes32"}, {"name": "s", "type": "bytes32"}
  ], "name": "removeLiquidityNATIVEWithPermit", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountIn", "type": "uint256"}, {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForTokens", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountIn", "type": "uint256"}, {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForTokensSupportingFeeOnTransferTokens", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountIn", "type": "uint256"}, {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForNATIVE", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountIn", "type": "uint256"}, {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForNATIVESupportingFeeOnTransferTokens", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountOut", "type": "uint256"}, {"name": "amountInMax", "type": "uint256"},
    {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapTokensForExactTokens", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountOut", "type": "uint256"}, {"name": "amountInMax", "type": "uint256"},
    {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapTokensForExactNATIVE", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountOutMin", "type": "uint256"}, {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactNATIVEForTokens", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"name": "amountOutMin", "type": "uint256"}, {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactNATIVEForTokensSupportingFeeOnTransferTokens", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"name": "amountOut", "type": "uint256"}, {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}
  ], "name": "swapNATIVEForExactTokens", "outputs": [], "stateMutability": "payable", "type": "function"}
]`

const factoryABIJSON = `[
  {"inputs": [{"name": "tokenA", "type": "address"}, {"name": "tokenB", "type": "address"}], "name": "getPair", "outputs": [{"name": "pair", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

var (
	routerABIMu    sync.Mutex
	routerABIs     = make(map[string]abi.ABI)
	factoryABI     abi.ABI
	factoryABIOnce sync.Once
	factoryABIErr  error
)

// RouterABI returns the parsed router ABI with native-currency method names
// spelled with symbol, e.g. swapExactETHForTokens for "ETH".
func RouterABI(symbol string) (abi.ABI, error) {
	symbol = normalizeSymbol(symbol)

	routerABIMu.Lock()
	defer routerABIMu.Unlock()
	if parsed, ok := routerABIs[symbol]; ok {
		return parsed, nil
	}
	parsed, err := abi.JSON(strings.NewReader(strings.ReplaceAll(routerABIJSON, "NATIVE", symbol)))
	if err != nil {
		return abi.ABI{}, err
	}
	routerABIs[symbol] = parsed
	return parsed, nil
}

// FactoryABI returns the parsed V2 factory ABI.
func FactoryABI() (abi.ABI, error) {
	factoryABIOnce.Do(func() {
		factoryABI, factoryABIErr = abi.JSON(strings.NewReader(factoryABIJSON))
	})
	return factoryABI, factoryABIErr
}

func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "ETH"
	}
	return symbol
}

// NativeMethod spells a router method template such as
// "swapExactNATIVEForTokens" with the native symbol.
func NativeMethod(template, symbol string) string {
	return strings.ReplaceAll(template, "NATIVE", normalizeSymbol(symbol))
}
