package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Argument shapes a token contract may use to block holders. The method
// names are placeholders; only the argument layout is matched.
const blacklistABIJSON = `[
  {"inputs": [{"type": "address"}], "name": "blmode_i", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "bool"}], "name": "blmode_ii", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "address[]"}], "name": "blmode_iii", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "address[]"}, {"type": "bool"}], "name": "blmode_iv", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

var blacklistModes = []string{"blmode_i", "blmode_ii", "blmode_iii", "blmode_iv"}

var (
	blacklistABI     abi.ABI
	blacklistABIOnce sync.Once
	blacklistABIErr  error
)

func blacklistABIInstance() (abi.ABI, error) {
	blacklistABIOnce.Do(func() {
		blacklistABI, blacklistABIErr = abi.JSON(strings.NewReader(blacklistABIJSON))
	})
	return blacklistABI, blacklistABIErr
}
