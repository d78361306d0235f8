package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/loop"
	"liquiditySniper/internal/model"
)

const sideBuy = "buy"

// attempt is one pass of buy rounds: the initial rounds or one retry.
type attempt struct {
	verdict  *model.Verdict
	gas      *model.GasOverride
	target   int
	rounds   []model.Round
	finished int
	failed   int
}

type sendResult struct {
	payload model.Payload
	tx      *types.Transaction
}

func (s *Scheduler) trigger(v *model.Verdict) {
	s.adoptTokens(v)
	if s.state.PurchaseToken == nil || s.state.LiquidityToken == nil {
		s.logger().Warn("verdict without a token pair, still searching", zap.String("kind", string(v.Kind)))
		s.resumeListening()
		return
	}
	s.setStage(model.StageTriggered)

	if s.settings.BlocksDelay > 0 {
		target := s.state.CurrentBlock + s.settings.BlocksDelay
		s.deferred[target] = v
		s.logger().Info("buy scheduled", zap.Uint64("block", target))
		return
	}

	s.logger().Info("starting buys",
		zap.Duration("wait", s.settings.WaitBeforeFirstBuy),
		zap.Duration("delay", s.settings.DelayBetweenBuys),
		zap.Int("rounds", s.settings.RoundsToBuy),
	)
	epoch := s.epoch
	s.Loop.After(s.settings.WaitBeforeFirstBuy, func() {
		if s.epoch == epoch {
			s.startBuy(v)
		}
	})
}

func (s *Scheduler) startBuy(v *model.Verdict) {
	if s.state.Stage != model.StageTriggered {
		return
	}
	s.setStage(model.StageBuying)
	s.state.BuyRetries = 0
	s.launch(v, s.verdictGas(v), s.settings.RoundsToBuy)
}

func (s *Scheduler) launch(v *model.Verdict, gas *model.GasOverride, rounds int) {
	a := &attempt{verdict: v, gas: gas, target: rounds, rounds: make([]model.Round, rounds)}
	for i := range a.rounds {
		a.rounds[i] = model.Round{Index: i, Status: model.RoundPending, Gas: gas}
	}
	s.attempt = a
	s.state.LastGas = gas
	s.runRound(a, 0)
}

func (s *Scheduler) runRound(a *attempt, r int) {
	if s.attempt != a || s.state.Stage != model.StageBuying {
		return
	}
	purchase, liquidity := *s.state.PurchaseToken, *s.state.LiquidityToken
	gas := a.gas
	loop.Await(s.Loop, func(ctx context.Context) (sendResult, error) {
		if err := s.Gate.Check(ctx); err != nil {
			return sendResult{}, err
		}
		payload, err := s.buildBuy(ctx, r, purchase, liquidity)
		if err != nil {
			return sendResult{}, fmt.Errorf("build buy: %w", err)
		}
		tx, err := s.Sender.Send(ctx, payload, gas)
		if err != nil {
			return sendResult{payload: payload}, err
		}
		if err := s.Gate.Claim(ctx); err != nil {
			return sendResult{payload: payload, tx: tx}, err
		}
		return sendResult{payload: payload, tx: tx}, nil
	}, func(res sendResult, err error) {
		s.onRoundSent(a, r, res, err)
	})
}

func (s *Scheduler) onRoundSent(a *attempt, r int, res sendResult, err error) {
	if s.coordinationLost(err) {
		return
	}
	if s.attempt != a {
		return
	}
	a.rounds[r].Payload = res.payload
	if r+1 < a.target {
		s.Loop.After(s.settings.DelayBetweenBuys, func() { s.runRound(a, r+1) })
	}

	if err != nil && res.tx == nil {
		s.logger().Warn("buy round failed to send", zap.Int("round", r), zap.Error(err))
		s.journal(sideBuy, r, a.verdict.Kind, nil, a.gas, model.RoundFailed, err)
		s.finishRound(a, r, model.RoundFailed)
		return
	}
	if err != nil {
		s.logger().Warn("coordination record not updated", zap.Error(err))
	}

	tx := res.tx
	a.rounds[r].TxHash = tx.Hash()
	s.logger().Info("sent buy transaction", zap.Int("round", r), zap.String("tx", tx.Hash().Hex()))
	loop.Await(s.Loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Sender.Wait(ctx, tx)
	}, func(_ struct{}, err error) {
		status := model.RoundExecuted
		if err != nil {
			status = model.RoundFailed
			s.logger().Warn("buy transaction failed", zap.Int("round", r), zap.String("tx", tx.Hash().Hex()), zap.Error(err))
		}
		s.journal(sideBuy, r, a.verdict.Kind, tx, a.gas, status, err)
		s.finishRound(a, r, status)
	})
}

func (s *Scheduler) finishRound(a *attempt, r int, status model.RoundStatus) {
	if s.attempt != a {
		return
	}
	a.rounds[r].Status = status
	a.finished++
	if status == model.RoundFailed {
		a.failed++
	}
	if a.finished == a.target {
		s.evaluate(a)
	}
}

// evaluate runs once every round of an attempt has an outcome.
func (s *Scheduler) evaluate(a *attempt) {
	if a.failed == 0 {
		s.logger().Info("buy transactions successful", zap.Int("rounds", a.target))
		s.attempt = nil
		s.onBuySuccess(a.verdict)
		return
	}

	s.logger().Warn("buy rounds failed", zap.Int("failed", a.failed), zap.Int("rounds", a.target))
	if s.state.BuyRetries >= s.settings.RetryRounds {
		s.attempt = nil
		s.finish(fmt.Errorf("%w after %d retries", model.ErrRetriesExhausted, s.state.BuyRetries))
		return
	}
	s.state.BuyRetries++

	gas := s.state.LastGas.Scaled(s.settings.GasMultiplier)
	fields := []zap.Field{
		zap.Int("retry", s.state.BuyRetries),
		zap.Int("rounds", a.failed),
		zap.Duration("after", s.settings.RetryDelay),
	}
	if value := gas.Value(); value != nil {
		fields = append(fields, zap.String("gas_gwei", dex.FormatUnits(value, 9)))
	}
	s.logger().Info("retrying failed rounds", fields...)

	v, failed := a.verdict, a.failed
	s.attempt = nil
	epoch := s.epoch
	s.Loop.After(s.settings.RetryDelay, func() {
		if s.epoch == epoch && s.state.Stage == model.StageBuying {
			s.launch(v, gas, failed)
		}
	})
}

func (s *Scheduler) buildBuy(ctx context.Context, round int, purchase, liquidity common.Address) (model.Payload, error) {
	amount, err := s.units(ctx, liquidity, s.settings.BuyAmount)
	if err != nil {
		return model.Payload{}, err
	}
	return s.Builder.Buy(round, purchase, liquidity, amount)
}

// units converts a human amount of token into base units.
func (s *Scheduler) units(ctx context.Context, token common.Address, amount string) (*big.Int, error) {
	if amount == "" {
		return nil, errors.New("amount not configured")
	}
	decimals, err := s.Market.Decimals(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}
	return dex.ParseUnits(amount, decimals)
}
