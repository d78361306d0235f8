package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Mode selects which detector drives the buy side.
type Mode string

const (
	ModeListing       Mode = "listing"
	ModePinksale      Mode = "pinksale"
	ModeDevAction     Mode = "dev-action"
	ModeAutoMagic     Mode = "auto-magic"
	ModeFollowWallets Mode = "follow-wallets"
	ModeInstantBuy    Mode = "instant-buy"
	ModeInstantSell   Mode = "instant-sell"
	ModeApprove       Mode = "approve"
)

// Modes lists every supported mode.
var Modes = []Mode{
	ModeListing, ModePinksale, ModeDevAction, ModeAutoMagic,
	ModeFollowWallets, ModeInstantBuy, ModeInstantSell, ModeApprove,
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Continuous reports whether the mode starts a new cycle after one ends.
func (m Mode) Continuous() bool {
	return m == ModeAutoMagic || m == ModeFollowWallets
}

// Stage is the scheduler state.
type Stage int

const (
	StageIdle Stage = iota
	StageSearching
	StageTriggered
	StageBuying
	StageHolding
	StageSelling
	StageReset
	StageTerminated
)

var stageNames = [...]string{"idle", "searching", "triggered", "buying", "holding", "selling", "reset", "terminated"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// SessionState is everything one buy/sell cycle learns. Only the scheduler
// reads or writes it.
type SessionState struct {
	Mode   Mode
	Stage  Stage
	Cycle  int
	Paused bool
	// Latched is set once a verdict is accepted and cleared when the cycle
	// returns to a listening stage.
	Latched bool

	CurrentBlock uint64
	FeeMarket    bool

	PurchaseToken  *common.Address
	LiquidityToken *common.Address
	DevWallet      *common.Address
	Followed       *common.Address

	BuyRetries  int
	SellRetries int
	LastGas     *GasOverride

	BuyPrice      *big.Int
	HighWaterMark *big.Int
	GainBps       *big.Int
	Balance       *big.Int

	ArmedRugPull    bool
	ArmedGain       bool
	ArmedFollowSell bool

	DevSelectors   SelectorSet
	ToxicSelectors SelectorSet
}

// Round is one buy submission within a cycle.
type Round struct {
	Index   int
	Payload Payload
	Status  RoundStatus
	TxHash  common.Hash
	Gas     *GasOverride
}
