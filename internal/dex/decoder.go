package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"liquiditySniper/internal/model"
)

// CallDecoder turns router call data into a model.Call.
type CallDecoder struct {
	router abi.ABI
	kinds  map[string]model.CallKind
}

// NewCallDecoder builds a decoder for a router whose native-currency methods
// are spelled with symbol.
func NewCallDecoder(symbol string) (*CallDecoder, error) {
	parsed, err := RouterABI(symbol)
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	s := normalizeSymbol(symbol)
	names := []struct {
		name string
		kind model.CallKind
	}{
		{"addLiquidity", model.CallAddLiquidity},
		{"addLiquidity" + s, model.CallAddLiquidityETH},
		{"removeLiquidity", model.CallRemoveLiquidity},
		{"removeLiquidityWithPermit", model.CallRemoveLiquidity},
		{"removeLiquidity" + s, model.CallRemoveLiquidityETH},
		{"removeLiquidity" + s + "WithPermit", model.CallRemoveLiquidityETH},
		{"swapExactTokensForTokens", model.CallSwapExactTokensForTokens},
		{"swapExactTokensForTokensSupportingFeeOnTransferTokens", model.CallSwapExactTokensForTokens},
		{"swapExactTokensFor" + s, model.CallSwapExactTokensForETH},
		{"swapExactTokensFor" + s + "SupportingFeeOnTransferTokens", model.CallSwapExactTokensForETH},
		{"swapTokensForExactTokens", model.CallSwapTokensForExactTokens},
		{"swapTokensForExact" + s, model.CallSwapTokensForExactETH},
		{"swapExact" + s + "ForTokens", model.CallSwapExactETHForTokens},
		{"swapExact" + s + "ForTokensSupportingFeeOnTransferTokens", model.CallSwapExactETHForTokens},
		{"swap" + s + "ForExactTokens", model.CallSwapETHForExactTokens},
	}
	kinds := make(map[string]model.CallKind, len(names))
	for _, entry := range names {
		kinds[entry.name] = entry.kind
	}
	return &CallDecoder{router: parsed, kinds: kinds}, nil
}

// Decode never fails: anything that is not a recognized router call comes
// back as model.CallUnknown.
func (d *CallDecoder) Decode(data []byte) (call model.Call) {
	call = model.Call{Kind: model.CallUnknown}
	if len(data) < 4 {
		return call
	}
	copy(call.Selector[:], data[:4])

	defer func() {
		if r := recover(); r != nil {
			call = model.Call{Kind: model.CallUnknown, Selector: call.Selector}
		}
	}()

	method, err := d.router.MethodById(data[:4])
	if err != nil {
		return call
	}
	kind, ok := d.kinds[method.RawName]
	if !ok {
		return call
	}
	inputs, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(inputs) != len(method.Inputs) {
		return call
	}

	call.Method = method.RawName
	decoded, err := fillCall(call, kind, inputs)
	if err != nil {
		return model.Call{Kind: model.CallUnknown, Selector: call.Selector}
	}
	return decoded
}

func fillCall(call model.Call, kind model.CallKind, in []interface{}) (model.Call, error) {
	var err error
	call.Kind = kind
	switch kind {
	case model.CallAddLiquidity:
		if call.TokenA, err = asAddress(in[0]); err != nil {
			return call, err
		}
		if call.TokenB, err = asAddress(in[1]); err != nil {
			return call, err
		}
		if call.AmountADesired, err = asBigInt(in[2]); err != nil {
			return call, err
		}
		if call.AmountBDesired, err = asBigInt(in[3]); err != nil {
			return call, err
		}
		if call.AmountAMin, err = asBigInt(in[4]); err != nil {
			return call, err
		}
		if call.AmountBMin, err = asBigInt(in[5]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[6])
	case model.CallAddLiquidityETH:
		if call.TokenA, err = asAddress(in[0]); err != nil {
			return call, err
		}
		if call.AmountADesired, err = asBigInt(in[1]); err != nil {
			return call, err
		}
		if call.AmountAMin, err = asBigInt(in[2]); err != nil {
			return call, err
		}
		if call.AmountBMin, err = asBigInt(in[3]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[4])
	case model.CallRemoveLiquidity:
		if call.TokenA, err = asAddress(in[0]); err != nil {
			return call, err
		}
		if call.TokenB, err = asAddress(in[1]); err != nil {
			return call, err
		}
		if call.Liquidity, err = asBigInt(in[2]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[5])
	case model.CallRemoveLiquidityETH:
		if call.TokenA, err = asAddress(in[0]); err != nil {
			return call, err
		}
		if call.Liquidity, err = asBigInt(in[1]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[4])
	case model.CallSwapExactTokensForTokens, model.CallSwapExactTokensForETH:
		if call.AmountIn, err = asBigInt(in[0]); err != nil {
			return call, err
		}
		if call.AmountOut, err = asBigInt(in[1]); err != nil {
			return call, err
		}
		if call.Path, err = asAddressSlice(in[2]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[3])
	case model.CallSwapTokensForExactTokens, model.CallSwapTokensForExactETH:
		if call.AmountOut, err = asBigInt(in[0]); err != nil {
			return call, err
		}
		if call.AmountIn, err = asBigInt(in[1]); err != nil {
			return call, err
		}
		if call.Path, err = asAddressSlice(in[2]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[3])
	case model.CallSwapExactETHForTokens, model.CallSwapETHForExactTokens:
		if call.AmountOut, err = asBigInt(in[0]); err != nil {
			return call, err
		}
		if call.Path, err = asAddressSlice(in[1]); err != nil {
			return call, err
		}
		call.Recipient, err = asAddress(in[2])
	default:
		return call, fmt.Errorf("unsupported call kind %s", kind)
	}
	if err != nil {
		return call, err
	}
	if kind.IsSwap() && len(call.Path) < 2 {
		return call, fmt.Errorf("swap path too short")
	}
	return call, nil
}
