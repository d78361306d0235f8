package dex

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MatchesBlacklist reads the call arguments of data as each known blacklist
// shape in turn and reports whether the call would block target. Shapes are
// tried in order and the first shape that names target decides.
func MatchesBlacklist(data []byte, target common.Address) bool {
	if len(data) <= 4 {
		return false
	}
	parsed, err := blacklistABIInstance()
	if err != nil {
		return false
	}
	args := data[4:]
	for _, mode := range blacklistModes {
		if hit, decided := matchBlacklistMode(parsed.Methods[mode], args, target); decided {
			return hit
		}
	}
	return false
}

func matchBlacklistMode(method abi.Method, args []byte, target common.Address) (hit bool, decided bool) {
	defer func() {
		if r := recover(); r != nil {
			hit, decided = false, false
		}
	}()

	inputs, err := method.Inputs.Unpack(args)
	if err != nil || len(inputs) == 0 {
		return false, false
	}

	switch method.RawName {
	case "blmode_i":
		addr, err := asAddress(inputs[0])
		if err == nil && addr == target {
			return true, true
		}
	case "blmode_ii":
		addr, err := asAddress(inputs[0])
		if err == nil && addr == target {
			flag, _ := asBool(inputs[1])
			return flag, true
		}
	case "blmode_iii":
		list, err := asAddressSlice(inputs[0])
		if err == nil && containsAddress(list, target) {
			return true, true
		}
		// Shape iii continues into the flag check of shape iv. It carries no
		// flag, so this never matches on its own.
		fallthrough
	case "blmode_iv":
		if len(inputs) < 2 {
			return false, false
		}
		flag, err := asBool(inputs[1])
		if err != nil || !flag {
			return false, false
		}
		list, err := asAddressSlice(inputs[0])
		if err == nil && containsAddress(list, target) {
			return true, true
		}
	}
	return false, false
}

func containsAddress(list []common.Address, target common.Address) bool {
	for _, addr := range list {
		if addr == target {
			return true
		}
	}
	return false
}
