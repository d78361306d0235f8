package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquiditySniper/internal/model"
)

// LiquidityTokenSpec is a "token:minimum:maximum" entry. Amounts stay in
// human units until the token's decimals are known.
type LiquidityTokenSpec struct {
	Address common.Address
	Minimum string
	Maximum string
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseOptionalAddress returns nil for an empty input.
func ParseOptionalAddress(input string) (*common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if !common.IsHexAddress(input) {
		return nil, fmt.Errorf("invalid address: %s", input)
	}
	addr := common.HexToAddress(input)
	return &addr, nil
}

// ParseSelectors converts "0x12345678" method ids into selectors.
func ParseSelectors(inputs []string) (model.SelectorSet, error) {
	out := make(model.SelectorSet, 0, len(inputs))
	for _, input := range inputs {
		sel, err := model.ParseSelector(input)
		if err != nil {
			return nil, err
		}
		if !out.Contains(sel) {
			out = append(out, sel)
		}
	}
	return out, nil
}

// ParseLiquidityTokens parses "token:minimum:maximum" entries. Minimum and
// maximum are optional.
func ParseLiquidityTokens(inputs []string) ([]LiquidityTokenSpec, error) {
	out := make([]LiquidityTokenSpec, 0, len(inputs))
	for _, input := range inputs {
		parts := strings.Split(strings.TrimSpace(input), ":")
		if len(parts) > 3 || !common.IsHexAddress(parts[0]) {
			return nil, fmt.Errorf("invalid liquidity token %q: want token:minimum:maximum", input)
		}
		spec := LiquidityTokenSpec{Address: common.HexToAddress(parts[0])}
		if len(parts) > 1 {
			spec.Minimum = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			spec.Maximum = strings.TrimSpace(parts[2])
		}
		for _, amount := range []string{spec.Minimum, spec.Maximum} {
			if amount == "" {
				continue
			}
			if _, err := decimal.NewFromString(amount); err != nil {
				return nil, fmt.Errorf("invalid liquidity token amount %q: %w", amount, err)
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

// Gwei converts a gwei amount into wei, rounding down. Zero yields nil.
func Gwei(value decimal.Decimal) *big.Int {
	if !value.IsPositive() {
		return nil
	}
	return value.Shift(9).BigInt()
}
