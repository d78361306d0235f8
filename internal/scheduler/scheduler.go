// Package scheduler drives one sniping cycle from an accepted verdict
// through buy rounds, holding and selling. All methods except New must run
// on the scheduler's loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquiditySniper/internal/coord"
	"liquiditySniper/internal/detect"
	"liquiditySniper/internal/loop"
	"liquiditySniper/internal/metrics"
	"liquiditySniper/internal/model"
	"liquiditySniper/internal/storage"
)

// Sender signs, submits and confirms payloads.
type Sender interface {
	Send(ctx context.Context, payload model.Payload, gas *model.GasOverride) (*types.Transaction, error)
	Wait(ctx context.Context, tx *types.Transaction) error
}

// Market is the read-only chain access the scheduler needs.
type Market interface {
	detect.Market
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Builder turns intents into unsigned payloads.
type Builder interface {
	Buy(round int, purchase, liquidity common.Address, amountIn *big.Int) (model.Payload, error)
	Sell(purchase, liquidity common.Address, amountIn *big.Int) (model.Payload, error)
	Approve(token, spender common.Address) (model.Payload, error)
}

// Settings are the static knobs of a run.
type Settings struct {
	RunID      string
	Mode       model.Mode
	SingleShot bool

	AntiRugPull   bool
	GainBps       int64
	FallPct       decimal.Decimal
	DevActionSell bool
	SellApprove   bool
	Spender       common.Address

	BuyAmount      string
	SellPercentage decimal.Decimal
	SellAmount     string

	RoundsToBuy        int
	RetryRounds        int
	WaitBeforeFirstBuy time.Duration
	DelayBetweenBuys   time.Duration
	RetryDelay         time.Duration
	BlocksDelay        uint64

	AutoGas       bool
	GasMultiplier decimal.Decimal
	GasPrice      *big.Int
	PriorityGas   *big.Int
	FeeMarket     bool

	PurchaseToken  *common.Address
	LiquidityToken *common.Address
	DevWallet      *common.Address
	DevSelectors   model.SelectorSet
	ToxicSelectors model.SelectorSet

	// Detect holds the static detector configuration; session fields are
	// overlaid by Snapshot.
	Detect detect.Context
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Loop    *loop.Loop
	Gate    *coord.Gate
	Sender  Sender
	Market  Market
	Builder Builder
	Journal storage.Journal
	Metrics *metrics.SniperMetrics
	Logger  *zap.Logger
}

// Scheduler owns the SessionState.
type Scheduler struct {
	Deps
	settings Settings
	self     common.Address

	state       model.SessionState
	epoch       uint64
	deferred    map[uint64]*model.Verdict
	attempt     *attempt
	sellPayload *model.Payload
	resume      model.Stage
	modeDets    []detect.Detector
}

// New creates a scheduler in the Idle stage.
func New(settings Settings, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Journal == nil {
		deps.Journal = storage.Nop{}
	}
	if settings.RoundsToBuy < 1 {
		settings.RoundsToBuy = 1
	}
	if !settings.GasMultiplier.IsPositive() {
		settings.GasMultiplier = decimal.NewFromInt(1)
	}
	s := &Scheduler{
		Deps:     deps,
		settings: settings,
		self:     settings.Detect.Self,
		deferred: make(map[uint64]*model.Verdict),
		modeDets: modeDetectors(settings.Mode),
	}
	s.state = s.freshState()
	s.state.FeeMarket = settings.FeeMarket
	return s
}

func modeDetectors(mode model.Mode) []detect.Detector {
	switch mode {
	case model.ModeListing:
		return []detect.Detector{detect.ListingAdd{}}
	case model.ModePinksale:
		return []detect.Detector{detect.Pinksale{}}
	case model.ModeDevAction:
		return []detect.Detector{detect.DevAction{}}
	case model.ModeAutoMagic:
		return []detect.Detector{detect.AutoMagic{}}
	case model.ModeFollowWallets:
		return []detect.Detector{detect.FollowWallet{}}
	case model.ModeInstantBuy:
		return []detect.Detector{detect.Instant{Kind: model.TriggerInstantBuy}}
	case model.ModeInstantSell:
		return []detect.Detector{detect.Instant{Kind: model.TriggerInstantSell}}
	default:
		return nil
	}
}

func (s *Scheduler) freshState() model.SessionState {
	return model.SessionState{
		Mode:           s.settings.Mode,
		Stage:          s.state.Stage,
		Cycle:          s.state.Cycle,
		CurrentBlock:   s.state.CurrentBlock,
		FeeMarket:      s.state.FeeMarket,
		PurchaseToken:  copyAddress(s.settings.PurchaseToken),
		LiquidityToken: copyAddress(s.settings.LiquidityToken),
		DevWallet:      copyAddress(s.settings.DevWallet),
		DevSelectors:   append(model.SelectorSet(nil), s.settings.DevSelectors...),
		ToxicSelectors: append(model.SelectorSet(nil), s.settings.ToxicSelectors...),
	}
}

// State returns a copy of the session state.
func (s *Scheduler) State() model.SessionState {
	return s.state
}

// Start leaves Idle. Approve and instant-sell modes do their setup first.
func (s *Scheduler) Start() {
	s.logger().Info("scheduler started", zap.String("mode", string(s.settings.Mode)))
	switch s.settings.Mode {
	case model.ModeApprove:
		s.state.Paused = true
		s.runApprove()
	case model.ModeInstantSell:
		s.state.Paused = true
		s.prepareInstantSell()
	default:
		s.setStage(model.StageSearching)
	}
}

// Epoch changes on every stage transition. Dispatch results computed under
// an older epoch are stale.
func (s *Scheduler) Epoch() uint64 {
	return s.epoch
}

// Listening reports whether pending transactions should be classified.
func (s *Scheduler) Listening() bool {
	return !s.state.Paused && !s.state.Latched
}

// Pause stops classification until the current verdict is handled.
func (s *Scheduler) Pause() {
	s.state.Paused = true
}

// Detectors returns the detectors for the current stage.
func (s *Scheduler) Detectors() []detect.Detector {
	switch s.state.Stage {
	case model.StageSearching:
		return s.modeDets
	case model.StageHolding:
		var dets []detect.Detector
		if s.state.ArmedFollowSell {
			dets = append(dets, detect.FollowWalletSell{})
		}
		if s.state.ArmedRugPull {
			dets = append(dets, detect.RugPull{})
		}
		if s.state.ArmedGain {
			dets = append(dets, detect.PercentageGain{})
		}
		return dets
	default:
		return nil
	}
}

// Snapshot returns the detector context for the current session.
func (s *Scheduler) Snapshot() *detect.Context {
	dc := s.settings.Detect
	dc.PurchaseToken = copyAddress(s.state.PurchaseToken)
	dc.LiquidityToken = copyAddress(s.state.LiquidityToken)
	dc.DevWallet = copyAddress(s.state.DevWallet)
	dc.Followed = copyAddress(s.state.Followed)
	dc.PurchaseBalance = copyBig(s.state.Balance)
	dc.BuyPrice = copyBig(s.state.BuyPrice)
	dc.HighWaterMark = copyBig(s.state.HighWaterMark)
	dc.GainBps = s.settings.GainBps
	dc.FallPct = s.settings.FallPct
	dc.DevActionSell = s.settings.DevActionSell
	dc.DevActionSelectors = append(model.SelectorSet(nil), s.state.DevSelectors...)
	dc.ToxicSelectors = append(model.SelectorSet(nil), s.state.ToxicSelectors...)
	return &dc
}

// ObserveFeeStyle switches static gas to the fee market once a fee-market
// transaction is seen.
func (s *Scheduler) ObserveFeeStyle(tx *model.PendingTransaction) {
	if s.state.FeeMarket || tx.FeeStyle() != model.FeeMarket {
		return
	}
	s.state.FeeMarket = true
	s.logger().Info("fee-market transaction observed, switching to fee-market gas")
}

// Fold merges what a detector learned into the session. It returns the
// observation's trailing-stop verdict when the price is at or below the stop
// of the session's current high-water mark.
func (s *Scheduler) Fold(epoch uint64, obs *detect.Observation) *model.Verdict {
	if obs == nil || epoch != s.epoch {
		return nil
	}
	if obs.DevSelector != nil && len(s.state.DevSelectors) == 0 {
		s.state.DevSelectors = model.SelectorSet{*obs.DevSelector}
		s.logger().Info("dev action selector learned", zap.String("selector", obs.DevSelector.String()))
	}
	if obs.ToxicSelector != nil && len(s.state.ToxicSelectors) == 0 {
		s.state.ToxicSelectors = model.SelectorSet{*obs.ToxicSelector}
		s.logger().Info("toxic selector learned", zap.String("selector", obs.ToxicSelector.String()))
	}
	if s.state.Stage != model.StageHolding || obs.Price == nil {
		return nil
	}

	// The detector compared against the mark of its snapshot; a later
	// observation may have raised it while this one waited for its receipt.
	var stop *model.Verdict
	if s.state.ArmedGain && obs.TrailingStop != nil {
		live := detect.EvaluateGain(s.state.BuyPrice, obs.Price, s.state.HighWaterMark, 0, s.settings.FallPct)
		if live.Kind == model.TriggerTrailingStop {
			stop = obs.TrailingStop
		}
	}

	hwm := obs.HighWaterMark
	if hwm == nil {
		hwm = obs.Price
	}
	if s.state.HighWaterMark == nil || hwm.Cmp(s.state.HighWaterMark) > 0 {
		s.state.HighWaterMark = new(big.Int).Set(hwm)
	}
	if obs.GainBps != nil && (s.state.GainBps == nil || obs.GainBps.Cmp(s.state.GainBps) != 0) {
		s.state.GainBps = new(big.Int).Set(obs.GainBps)
		s.Metrics.SetGainBps(obs.GainBps.Int64())
		s.logger().Info("price changed",
			zap.String("price", obs.Price.String()),
			zap.String("gain_pct", formatBps(obs.GainBps)),
		)
	}
	return stop
}

// Accept handles a verdict the dispatcher selected. The caller has already
// paused classification.
func (s *Scheduler) Accept(v *model.Verdict) {
	if v == nil || !v.Valid {
		s.resumeListening()
		return
	}
	s.state.Latched = true
	if v.TxHash != (common.Hash{}) {
		s.logger().Info("triggered", zap.String("kind", string(v.Kind)), zap.String("tx", v.TxHash.Hex()))
	}
	if v.Followed != nil {
		s.state.Followed = copyAddress(v.Followed)
	}
	if v.DevWallet != nil {
		s.state.DevWallet = copyAddress(v.DevWallet)
	}

	switch s.state.Stage {
	case model.StageSearching:
		if v.IsSell() {
			s.adoptTokens(v)
			s.sell(v)
			return
		}
		s.trigger(v)
	case model.StageHolding:
		if v.IsSell() {
			s.sell(v)
			return
		}
		s.resumeListening()
	default:
		s.logger().Warn("verdict ignored", zap.String("kind", string(v.Kind)), zap.String("stage", s.state.Stage.String()))
	}
}

// OnBlock records the current block and fires deferred buys that are due.
func (s *Scheduler) OnBlock(number uint64) {
	s.state.CurrentBlock = number
	for target, v := range s.deferred {
		if target > number {
			continue
		}
		delete(s.deferred, target)
		s.logger().Info("executing scheduled buy", zap.Uint64("block", number))
		s.startBuy(v)
	}
}

// HardStop asks every instance to exit and stops this one.
func (s *Scheduler) HardStop() {
	s.logger().Warn("hard stop requested")
	loop.Await(s.Loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Gate.RequestExit(ctx)
	}, func(_ struct{}, err error) {
		if err != nil {
			s.logger().Error("write exit request", zap.Error(err))
		}
		s.terminate(fmt.Errorf("%w: hard stop", model.ErrCoordinationLoss))
	})
}

// setStage moves the cycle forward. Stages only advance within a cycle;
// reset starts the next cycle and retreat is the single way back.
func (s *Scheduler) setStage(stage model.Stage) {
	prev := s.state.Stage
	s.state.Stage = stage
	s.epoch++
	s.Metrics.SetStage(prev.String(), stage.String())
	if prev != stage {
		s.logger().Debug("stage changed", zap.String("from", prev.String()), zap.String("to", stage.String()))
	}
}

// retreat returns a failed Selling cycle to the stage it listened in, so
// the armed sell detectors can fire again while sell retries remain.
func (s *Scheduler) retreat(stage model.Stage) {
	if s.state.Stage != model.StageSelling {
		s.logger().Warn("retreat outside selling ignored", zap.String("stage", s.state.Stage.String()))
		return
	}
	s.setStage(stage)
}

func (s *Scheduler) resumeListening() {
	s.state.Paused = false
	s.state.Latched = false
}

// finish ends a cycle: single-shot and one-off modes terminate, continuous
// modes reset and search again.
func (s *Scheduler) finish(reason error) {
	if s.settings.SingleShot || !s.settings.Mode.Continuous() {
		s.terminate(reason)
		return
	}
	if reason != nil {
		s.logger().Warn("cycle ended", zap.Error(reason))
	}
	s.reset()
}

func (s *Scheduler) reset() {
	s.setStage(model.StageReset)
	s.logger().Info("resetting for new tokens")
	s.state = s.freshState()
	s.state.Cycle++
	s.deferred = make(map[uint64]*model.Verdict)
	s.attempt = nil
	s.sellPayload = nil
	s.setStage(model.StageSearching)
}

func (s *Scheduler) terminate(reason error) {
	if s.state.Stage == model.StageTerminated {
		return
	}
	s.setStage(model.StageTerminated)
	s.state.Paused = true
	switch {
	case reason == nil:
		s.logger().Info("run finished")
	case errors.Is(reason, model.ErrCoordinationLoss):
		s.logger().Info("exiting as commanded by coordination record", zap.Error(reason))
	default:
		s.logger().Error("run terminated", zap.Error(reason))
	}
	s.Loop.Stop(reason)
}

// coordinationLost stops silently when err is a coordination loss and
// reports whether it did.
func (s *Scheduler) coordinationLost(err error) bool {
	if !errors.Is(err, model.ErrCoordinationLoss) {
		return false
	}
	s.terminate(err)
	return true
}

func (s *Scheduler) adoptTokens(v *model.Verdict) {
	if s.state.LiquidityToken == nil && v.LiquidityToken != nil {
		s.state.LiquidityToken = copyAddress(v.LiquidityToken)
	}
	if s.state.PurchaseToken == nil && v.PurchaseToken != nil {
		s.state.PurchaseToken = copyAddress(v.PurchaseToken)
	}
}

func (s *Scheduler) staticGas() *model.GasOverride {
	switch {
	case s.state.FeeMarket && s.settings.PriorityGas != nil:
		return &model.GasOverride{Style: model.FeeMarket, GasTipCap: new(big.Int).Set(s.settings.PriorityGas)}
	case s.settings.GasPrice != nil:
		return &model.GasOverride{Style: model.FeeLegacy, GasPrice: new(big.Int).Set(s.settings.GasPrice)}
	case s.settings.PriorityGas != nil:
		return &model.GasOverride{Style: model.FeeMarket, GasTipCap: new(big.Int).Set(s.settings.PriorityGas)}
	default:
		return nil
	}
}

func (s *Scheduler) verdictGas(v *model.Verdict) *model.GasOverride {
	if s.settings.AutoGas && v != nil && v.Gas != nil {
		return v.Gas
	}
	return s.staticGas()
}

func (s *Scheduler) journal(side string, round int, trigger model.TriggerKind, tx *types.Transaction, gas *model.GasOverride, status model.RoundStatus, reason error) {
	sub := model.Submission{
		Node:     s.Gate.Node(),
		RunID:    s.settings.RunID,
		Cycle:    s.state.Cycle,
		Side:     side,
		Round:    round,
		Status:   status,
		Trigger:  string(trigger),
		Recorded: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if tx != nil {
		sub.TxHash = tx.Hash().Hex()
	}
	if value := gas.Value(); value != nil {
		sub.Gas = value.String()
	}
	if reason != nil {
		sub.Reason = reason.Error()
	}
	s.Metrics.SubmissionInc(side, string(status))
	loop.Await(s.Loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Journal.PutSubmissions(ctx, []model.Submission{sub})
	}, func(_ struct{}, err error) {
		if err != nil {
			s.logger().Warn("journal write failed", zap.Error(err))
		}
	})
}

func (s *Scheduler) logger() *zap.Logger {
	return s.Logger.With(zap.Int("cycle", s.state.Cycle))
}

func copyAddress(addr *common.Address) *common.Address {
	if addr == nil {
		return nil
	}
	out := *addr
	return &out
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func formatBps(bps *big.Int) string {
	return new(big.Rat).SetFrac(bps, big.NewInt(100)).FloatString(2)
}
