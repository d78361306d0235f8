package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asAddressSlice(value interface{}) ([]common.Address, error) {
	switch v := value.(type) {
	case []common.Address:
		out := make([]common.Address, len(v))
		copy(out, v)
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported address slice type %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
	return v, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asBigIntSlice(value interface{}) ([]*big.Int, error) {
	v, ok := value.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported int slice type %T", value)
	}
	return v, nil
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

// FormatUnits renders value scaled down by decimals.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).StringFixed(int32(decimals))
}

// Unit returns 10^decimals.
func Unit(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// ParseUnits parses a decimal string such as "0.25" into base units,
// dropping digits beyond decimals.
func ParseUnits(text string, decimals uint8) (*big.Int, error) {
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", text)
	}
	return amount.Shift(int32(decimals)).BigInt(), nil
}
