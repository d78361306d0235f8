package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Payload is an unsigned contract call ready for signing.
type Payload struct {
	Label string
	To    common.Address
	Data  []byte
	Value *big.Int
}
