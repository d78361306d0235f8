package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeStyle distinguishes legacy gas pricing from the fee-market pair.
type FeeStyle int

const (
	FeeLegacy FeeStyle = iota
	FeeMarket
)

func (s FeeStyle) String() string {
	if s == FeeMarket {
		return "fee_market"
	}
	return "legacy"
}

// PendingTransaction is a transaction observed in the mempool.
type PendingTransaction struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address
	Input     []byte
	Value     *big.Int
	Nonce     uint64
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// FeeStyle reports which fee fields the transaction carries.
func (tx *PendingTransaction) FeeStyle() FeeStyle {
	if tx.GasFeeCap != nil && tx.GasFeeCap.Sign() > 0 {
		return FeeMarket
	}
	return FeeLegacy
}

// Selector returns the 4-byte method id, or false when the input is too short.
func (tx *PendingTransaction) Selector() (Selector, bool) {
	var sel Selector
	if len(tx.Input) < 4 {
		return sel, false
	}
	copy(sel[:], tx.Input[:4])
	return sel, true
}

// SentTo reports whether the transaction targets addr.
func (tx *PendingTransaction) SentTo(addr common.Address) bool {
	return tx.To != nil && *tx.To == addr
}
