package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquiditySniper/internal/model"
)

var coordBackends = map[string]bool{"file": true, "redis": true, "postgres": true, "memory": true}

// Validate checks that every setting the selected mode needs is present.
// Every error wraps model.ErrConfig.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return configErr("rpc is required")
	}
	if !common.IsHexAddress(c.Router) {
		return configErr("router must be an address, got %q", c.Router)
	}
	if len(c.PrivateKeys) == 0 {
		return configErr("private-keys is required")
	}
	if !c.IncludeSender && len(c.PrivateKeys) == 1 {
		return configErr("either turn on include-sender or list other recipients in private-keys")
	}
	if !c.Mode.Valid() {
		return configErr("unknown mode %q", c.Mode)
	}
	if c.RoundsToBuy < 1 {
		return configErr("rounds-to-buy must be at least 1")
	}
	if c.RetryRounds < 0 {
		return configErr("retry-rounds must not be negative")
	}
	hundred := decimal.NewFromInt(100)
	if !c.GasMultiplier.IsPositive() {
		return configErr("gas-multiplier must be positive")
	}
	if c.SellPercentage.IsNegative() || c.SellPercentage.GreaterThan(hundred) {
		return configErr("sell-percentage must be within 0..100")
	}
	if c.SellOnGain.IsNegative() || c.SellThresholdFall.IsNegative() || c.SellThresholdFall.GreaterThanOrEqual(hundred) {
		return configErr("sell-on-gain and sell-threshold-fall must be non-negative and the fall below 100")
	}
	for name, value := range map[string]decimal.Decimal{
		"balance-check-multiplier": c.BalanceCheckMultiplier,
		"gas-price":                c.GasPrice,
		"priority-gas":             c.PriorityGas,
		"follow-max-gas":           c.FollowMaxGas,
	} {
		if value.IsNegative() {
			return configErr("%s must not be negative", name)
		}
	}
	if !coordBackends[c.CoordBackend] {
		return configErr("unknown coord-backend %q", c.CoordBackend)
	}
	if c.CoordBackend == "redis" && c.RedisAddr == "" {
		return configErr("redis-addr is required for the redis coord backend")
	}
	if (c.CoordBackend == "postgres" || c.JournalBackend == "postgres") && c.PgDSN == "" {
		return configErr("pg-dsn is required for postgres backends")
	}
	if c.JournalBackend != "jsonl" && c.JournalBackend != "postgres" && c.JournalBackend != "none" {
		return configErr("unknown journal-backend %q", c.JournalBackend)
	}

	for name, value := range map[string]string{
		"wrapped":         c.WrappedNative,
		"purchase-token":  c.PurchaseToken,
		"liquidity-token": c.LiquidityToken,
		"sell-token":      c.SellToken,
		"dev-wallet":      c.DevWallet,
	} {
		if value != "" && !common.IsHexAddress(value) {
			return configErr("%s must be an address, got %q", name, value)
		}
	}
	for name, values := range map[string][]string{
		"follow-wallets":       c.FollowWallets,
		"follow-action-tokens": c.FollowActionTokens,
	} {
		if _, err := ParseAddresses(values); err != nil {
			return configErr("%s: %v", name, err)
		}
	}
	for name, values := range map[string][]string{
		"dev-action-ids":        c.DevActionIDs,
		"dev-action-ignore-ids": c.DevActionIgnoreIDs,
		"listing-ids":           c.ListingIDs,
		"toxic-ids":             c.ToxicIDs,
		"non-toxic-ids":         c.NonToxicIDs,
	} {
		if _, err := ParseSelectors(values); err != nil {
			return configErr("%s: %v", name, err)
		}
	}
	if _, err := ParseLiquidityTokens(c.LiquidityTokens); err != nil {
		return configErr("liquidity-tokens: %v", err)
	}
	for name, value := range map[string]string{
		"minimum-liquidity": c.MinimumLiquidity,
		"buy-amount":        c.BuyAmount,
		"sell-amount":       c.SellAmount,
	} {
		if value == "" {
			continue
		}
		if amount, err := decimal.NewFromString(value); err != nil || amount.IsNegative() {
			return configErr("%s must be a non-negative number, got %q", name, value)
		}
	}
	if c.ApproveTo != "router" && !common.IsHexAddress(c.ApproveTo) {
		return configErr("approve-to must be \"router\" or an address, got %q", c.ApproveTo)
	}

	return c.validateMode()
}

func (c Config) validateMode() error {
	require := func(name, value string) error {
		if strings.TrimSpace(value) == "" {
			return configErr("%s is required in %s mode", name, c.Mode)
		}
		return nil
	}
	requireList := func(name string, values []string) error {
		if len(values) == 0 {
			return configErr("%s is required in %s mode", name, c.Mode)
		}
		return nil
	}

	var checks []error
	switch c.Mode {
	case model.ModeListing:
		checks = []error{require("purchase-token", c.PurchaseToken), require("liquidity-token", c.LiquidityToken), require("buy-amount", c.BuyAmount)}
	case model.ModePinksale:
		checks = []error{require("purchase-token", c.PurchaseToken), require("liquidity-token", c.LiquidityToken), require("dev-wallet", c.DevWallet), require("buy-amount", c.BuyAmount)}
	case model.ModeDevAction:
		checks = []error{require("purchase-token", c.PurchaseToken), require("dev-wallet", c.DevWallet), requireList("liquidity-tokens", c.LiquidityTokens)}
		if !c.DevActionSell {
			checks = append(checks, require("buy-amount", c.BuyAmount))
		}
	case model.ModeAutoMagic:
		checks = []error{requireList("liquidity-tokens", c.LiquidityTokens), require("buy-amount", c.BuyAmount)}
		if !c.AutoMagicLiquidityAdd && !c.AutoMagicMethodID && !c.AutoMagicPinksale {
			checks = append(checks, configErr("auto-magic mode needs at least one of auto-magic-liquidity-add, auto-magic-method-id, auto-magic-pinksale"))
		}
	case model.ModeFollowWallets:
		checks = []error{requireList("follow-wallets", c.FollowWallets), requireList("follow-action-tokens", c.FollowActionTokens), require("buy-amount", c.BuyAmount)}
	case model.ModeInstantBuy:
		checks = []error{require("purchase-token", c.PurchaseToken), require("liquidity-token", c.LiquidityToken), require("buy-amount", c.BuyAmount)}
	case model.ModeInstantSell:
		checks = []error{require("sell-token", c.SellToken), require("liquidity-token", c.LiquidityToken)}
	case model.ModeApprove:
		checks = []error{require("purchase-token", c.PurchaseToken)}
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func configErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrConfig, fmt.Sprintf(format, args...))
}
