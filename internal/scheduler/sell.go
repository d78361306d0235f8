package scheduler

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquiditySniper/internal/builder"
	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/loop"
	"liquiditySniper/internal/model"
)

const (
	sideSell    = "sell"
	sideApprove = "approve"
)

type holding struct {
	balance  *big.Int
	price    *big.Int
	payload  *model.Payload
	approved *types.Transaction
}

func (s *Scheduler) armed() (rug, gain, followSell bool) {
	return s.settings.AntiRugPull, s.settings.GainBps > 0, s.settings.Mode == model.ModeFollowWallets
}

func (s *Scheduler) onBuySuccess(v *model.Verdict) {
	rug, gain, followSell := s.armed()
	if !rug && !gain && !followSell && !s.settings.SellApprove {
		s.finish(nil)
		return
	}

	purchase, liquidity := *s.state.PurchaseToken, *s.state.LiquidityToken
	gas, logger := s.staticGas(), s.logger()
	loop.Await(s.Loop, func(ctx context.Context) (holding, error) {
		return s.prepareHolding(ctx, logger, purchase, liquidity, gain, gas)
	}, func(h holding, err error) {
		if h.approved != nil {
			s.journal(sideApprove, 0, v.Kind, h.approved, nil, model.RoundExecuted, nil)
		}
		if err != nil {
			s.finish(fmt.Errorf("prepare sell stage: %w", err))
			return
		}
		s.state.Balance = h.balance
		s.sellPayload = h.payload
		if !rug && !gain && !followSell {
			s.finish(nil)
			return
		}
		if gain {
			s.state.BuyPrice = h.price
			s.state.HighWaterMark = copyBig(h.price)
			s.logger().Info("price at buy", zap.String("price", h.price.String()),
				zap.String("target_gain_pct", formatBps(big.NewInt(s.settings.GainBps))))
		}
		s.state.ArmedRugPull, s.state.ArmedGain, s.state.ArmedFollowSell = rug, gain, followSell
		s.setStage(model.StageHolding)
		s.resumeListening()
		s.logger().Info("holding, listening for sell trigger",
			zap.Bool("rug_pull", rug), zap.Bool("gain", gain), zap.Bool("follow_sell", followSell))
	})
}

// prepareHolding approves the router if needed, reads the balance and
// prebuilds the sell payload.
func (s *Scheduler) prepareHolding(ctx context.Context, logger *zap.Logger, purchase, liquidity common.Address, quote bool, gas *model.GasOverride) (holding, error) {
	var h holding
	balance, err := s.Market.BalanceOf(ctx, purchase, s.self)
	if err != nil {
		return h, fmt.Errorf("balance: %w", err)
	}
	h.balance = balance
	decimals, err := s.Market.Decimals(ctx, purchase)
	if err == nil {
		logger.Info("balance after buy", zap.String("token", purchase.Hex()), zap.String("amount", dex.FormatUnits(balance, decimals)))
	}

	if h.approved, err = s.ensureAllowance(ctx, purchase, balance, gas); err != nil {
		return h, err
	}
	if balance.Sign() > 0 {
		if h.payload, err = s.buildSell(ctx, purchase, liquidity, balance); err != nil {
			return h, err
		}
	}
	if quote {
		if h.price, err = s.Market.Price(ctx, purchase, liquidity); err != nil {
			return h, fmt.Errorf("price at buy: %w", err)
		}
	}
	return h, nil
}

func (s *Scheduler) ensureAllowance(ctx context.Context, token common.Address, need *big.Int, gas *model.GasOverride) (*types.Transaction, error) {
	allowance, err := s.Market.Allowance(ctx, token, s.self, s.settings.Spender)
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	if allowance.Cmp(need) >= 0 && need.Sign() > 0 {
		return nil, nil
	}
	payload, err := s.Builder.Approve(token, s.settings.Spender)
	if err != nil {
		return nil, err
	}
	tx, err := s.Sender.Send(ctx, payload, gas)
	if err != nil {
		return nil, fmt.Errorf("send approve: %w", err)
	}
	if err := s.Sender.Wait(ctx, tx); err != nil {
		return tx, fmt.Errorf("approve: %w", err)
	}
	return tx, nil
}

func (s *Scheduler) buildSell(ctx context.Context, purchase, liquidity common.Address, balance *big.Int) (*model.Payload, error) {
	var fixed *big.Int
	if s.settings.SellAmount != "" {
		amount, err := s.units(ctx, purchase, s.settings.SellAmount)
		if err != nil {
			return nil, err
		}
		fixed = amount
	}
	payload, err := s.Builder.Sell(purchase, liquidity, builder.SellAmount(balance, s.settings.SellPercentage, fixed))
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// sell submits the prebuilt sell, building it first when there is none.
func (s *Scheduler) sell(v *model.Verdict) {
	if s.state.PurchaseToken == nil || s.state.LiquidityToken == nil {
		s.logger().Warn("sell trigger without a token pair", zap.String("kind", string(v.Kind)))
		s.resumeListening()
		return
	}
	s.resume = model.StageSearching
	if s.state.Stage == model.StageHolding {
		s.resume = model.StageHolding
	}
	s.setStage(model.StageSelling)
	switch v.Kind {
	case model.TriggerRugPull, model.TriggerBlacklist, model.TriggerToxicID, model.TriggerDevSell:
		s.logger().Warn("rug pull detected", zap.String("kind", string(v.Kind)), zap.String("tx", v.TxHash.Hex()))
	case model.TriggerFollowSell:
		s.logger().Info("sell from followed wallet", zap.String("tx", v.TxHash.Hex()))
	}

	purchase, liquidity := *s.state.PurchaseToken, *s.state.LiquidityToken
	payload := s.sellPayload
	gas, approveGas, logger := s.verdictGas(v), s.staticGas(), s.logger()
	loop.Await(s.Loop, func(ctx context.Context) (*types.Transaction, error) {
		if payload == nil {
			balance, err := s.Market.BalanceOf(ctx, purchase, s.self)
			if err != nil {
				return nil, fmt.Errorf("balance: %w", err)
			}
			if _, err := s.ensureAllowance(ctx, purchase, balance, approveGas); err != nil {
				return nil, err
			}
			if payload, err = s.buildSell(ctx, purchase, liquidity, balance); err != nil {
				return nil, err
			}
		}
		tx, err := s.Sender.Send(ctx, *payload, gas)
		if err != nil {
			return nil, err
		}
		logger.Info("sent sell transaction", zap.String("tx", tx.Hash().Hex()))
		return tx, s.Sender.Wait(ctx, tx)
	}, func(tx *types.Transaction, err error) {
		s.onSold(v, tx, gas, err)
	})
}

func (s *Scheduler) onSold(v *model.Verdict, tx *types.Transaction, gas *model.GasOverride, err error) {
	if err == nil {
		s.journal(sideSell, 0, v.Kind, tx, gas, model.RoundExecuted, nil)
		s.logger().Info("sell transaction successful")
		s.state.ArmedRugPull, s.state.ArmedGain, s.state.ArmedFollowSell = false, false, false
		s.finish(nil)
		return
	}

	s.journal(sideSell, 0, v.Kind, tx, gas, model.RoundFailed, err)
	s.logger().Warn("sell failed", zap.Error(err))
	if s.settings.Mode == model.ModeInstantSell || s.state.SellRetries >= s.settings.RetryRounds {
		s.terminate(fmt.Errorf("%w: %v", model.ErrSellFailed, err))
		return
	}
	s.state.SellRetries++
	s.retreat(s.resume)
	s.resumeListening()
	s.logger().Info("listening for trigger", zap.Int("sell_retries", s.state.SellRetries))
}

// ManualSell sells immediately once the token pair is known.
func (s *Scheduler) ManualSell() {
	if s.state.PurchaseToken == nil || s.state.LiquidityToken == nil {
		s.logger().Warn("manual sell ignored, wait till a token pair is known")
		return
	}
	switch s.state.Stage {
	case model.StageSearching, model.StageTriggered, model.StageHolding:
	default:
		s.logger().Warn("manual sell ignored", zap.String("stage", s.state.Stage.String()))
		return
	}
	s.logger().Info("manual sell requested")
	if s.state.Stage == model.StageTriggered {
		s.deferred = make(map[uint64]*model.Verdict)
	}
	s.Pause()
	s.state.Latched = true
	s.sell(&model.Verdict{
		Valid:          true,
		Kind:           model.TriggerManualSell,
		PurchaseToken:  copyAddress(s.state.PurchaseToken),
		LiquidityToken: copyAddress(s.state.LiquidityToken),
	})
}

func (s *Scheduler) runApprove() {
	token := *s.state.PurchaseToken
	gas := s.staticGas()
	s.setStage(model.StageBuying)
	loop.Await(s.Loop, func(ctx context.Context) (*types.Transaction, error) {
		payload, err := s.Builder.Approve(token, s.settings.Spender)
		if err != nil {
			return nil, err
		}
		tx, err := s.Sender.Send(ctx, payload, gas)
		if err != nil {
			return nil, err
		}
		return tx, s.Sender.Wait(ctx, tx)
	}, func(tx *types.Transaction, err error) {
		if err != nil {
			s.journal(sideApprove, 0, "", tx, nil, model.RoundFailed, err)
			s.terminate(fmt.Errorf("approve: %w", err))
			return
		}
		s.journal(sideApprove, 0, "", tx, nil, model.RoundExecuted, nil)
		s.logger().Info("approve successful", zap.String("token", token.Hex()), zap.String("spender", s.settings.Spender.Hex()))
		s.terminate(nil)
	})
}

func (s *Scheduler) prepareInstantSell() {
	purchase, liquidity := *s.state.PurchaseToken, *s.state.LiquidityToken
	gas, logger := s.staticGas(), s.logger()
	loop.Await(s.Loop, func(ctx context.Context) (holding, error) {
		return s.prepareHolding(ctx, logger, purchase, liquidity, false, gas)
	}, func(h holding, err error) {
		if err == nil && h.payload == nil {
			err = fmt.Errorf("no %s balance to sell", purchase.Hex())
		}
		if err != nil {
			s.terminate(fmt.Errorf("prepare instant sell: %w", err))
			return
		}
		s.state.Balance = h.balance
		s.sellPayload = h.payload
		s.setStage(model.StageSearching)
		s.resumeListening()
	})
}
